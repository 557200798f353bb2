package dao

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/twmsh/trackfusion/internal/model"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return &DB{conn: sqlx.NewDb(sqlDB, "postgres"), executor: NewExecutor(1)}, mock
}

func TestInsertFaceTrack(t *testing.T) {
	db, mock := newMockDB(t)
	dao := NewTrackDAO(db)

	tr := &model.Track{
		ID:         "T1",
		SourceID:   "cam-1",
		CapturedAt: time.Now(),
		Detections: []model.Detection{{Index: 1, Quality: 0.9}},
		FaceProps:  &model.FaceProps{Age: 30, Gender: 1},
	}

	mock.ExpectExec("INSERT INTO face_tracks").
		WithArgs("T1", "cam-1", sqlmock.AnyArg(), "1:0.9", 30, 1, 0, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := dao.InsertFaceTrack(context.Background(), tr)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateFaceJudgementAlarmed(t *testing.T) {
	db, mock := newMockDB(t)
	dao := NewTrackDAO(db)

	snap := &model.Snapshot{
		TrackID: "T2",
		Matched: true,
		Judged:  true,
		Alarmed: true,
		MatchPerson: &model.MatchPerson{
			PersonID: "P1",
			Score:    92.5,
		},
	}

	mock.ExpectExec("UPDATE face_tracks SET").
		WithArgs("T2", 1, 1, 1, "P1", 92.5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := dao.UpdateFaceJudgement(context.Background(), snap)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
