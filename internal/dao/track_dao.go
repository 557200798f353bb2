package dao

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/twmsh/trackfusion/internal/model"
)

// TrackDAO persists face and vehicle track rows. All mutations issued by a
// single coalescer handler activation should be wrapped in one transaction
// (spec.md §4.D); InsertFaceTrack/UpdateFaceTrack and their vehicle
// counterparts each run as a single statement inside Do, which is
// sufficient here because a handler activation issues at most one
// insert-or-update per batch.
type TrackDAO struct {
	db *DB
}

// NewTrackDAO wraps a DB for track row access.
func NewTrackDAO(db *DB) *TrackDAO { return &TrackDAO{db: db} }

// InsertFaceTrack performs the first save for a face track.
func (t *TrackDAO) InsertFaceTrack(ctx context.Context, tr *model.Track) error {
	imgIDs := EncodeImgIDs(tr.Detections)
	var age, gender, glasses, moveDir int
	if tr.FaceProps != nil {
		age, gender, glasses, moveDir = tr.FaceProps.Age, tr.FaceProps.Gender, tr.FaceProps.Glasses, tr.FaceProps.MoveDirection
	}
	return t.db.Do(ctx, func(conn *sqlx.DB) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO face_tracks (track_id, source_id, captured_at, img_ids, age, gender, glasses, move_direction)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (track_id) DO UPDATE SET
				img_ids = EXCLUDED.img_ids,
				age = EXCLUDED.age, gender = EXCLUDED.gender,
				glasses = EXCLUDED.glasses, move_direction = EXCLUDED.move_direction
		`, tr.ID, tr.SourceID, tr.CapturedAt, imgIDs, age, gender, glasses, moveDir)
		return err
	})
}

// UpdateFaceTrack performs an incremental save (new detections or
// background change) for an already-persisted face track.
func (t *TrackDAO) UpdateFaceTrack(ctx context.Context, tr *model.Track) error {
	imgIDs := EncodeImgIDs(tr.Detections)
	return t.db.Do(ctx, func(conn *sqlx.DB) error {
		_, err := conn.ExecContext(ctx, `
			UPDATE face_tracks SET img_ids = $2 WHERE track_id = $1
		`, tr.ID, imgIDs)
		return err
	})
}

// UpdateFaceJudgement writes the matched/judged/alarmed + best-match fields
// after the judgement pipeline (spec.md §4.F) in a single statement.
func (t *TrackDAO) UpdateFaceJudgement(ctx context.Context, snap *model.Snapshot) error {
	var mostPerson string
	var mostScore float64
	if snap.MatchPerson != nil {
		mostPerson = snap.MatchPerson.PersonID
		mostScore = snap.MatchPerson.Score
	}
	return t.db.Do(ctx, func(conn *sqlx.DB) error {
		_, err := conn.ExecContext(ctx, `
			UPDATE face_tracks SET matched=$2, judged=$3, alarmed=$4, most_person=$5, most_score=$6
			WHERE track_id=$1
		`, snap.TrackID, boolToInt(snap.Matched), boolToInt(snap.Judged), boolToInt(snap.Alarmed), mostPerson, mostScore)
		return err
	})
}

// InsertVehicleTrack performs the first save for a vehicle track.
func (t *TrackDAO) InsertVehicleTrack(ctx context.Context, tr *model.Track) error {
	imgIDs := EncodeVehicleImgIDs(tr.Detections)
	var plateText, color, brand string
	if tr.PlateInfo != nil {
		plateText = tr.PlateInfo.Text
	}
	if tr.VehicleProps != nil {
		color, brand = tr.VehicleProps.Color, tr.VehicleProps.Brand
	}
	return t.db.Do(ctx, func(conn *sqlx.DB) error {
		_, err := conn.ExecContext(ctx, `
			INSERT INTO car_tracks (track_id, source_id, captured_at, img_ids, plate_text, color, brand)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (track_id) DO UPDATE SET
				img_ids = EXCLUDED.img_ids, plate_text = EXCLUDED.plate_text,
				color = EXCLUDED.color, brand = EXCLUDED.brand
		`, tr.ID, tr.SourceID, tr.CapturedAt, imgIDs, plateText, color, brand)
		return err
	})
}

// UpdateVehicleTrack performs an incremental save for a vehicle track.
func (t *TrackDAO) UpdateVehicleTrack(ctx context.Context, tr *model.Track) error {
	imgIDs := EncodeVehicleImgIDs(tr.Detections)
	return t.db.Do(ctx, func(conn *sqlx.DB) error {
		_, err := conn.ExecContext(ctx, `
			UPDATE car_tracks SET img_ids = $2 WHERE track_id = $1
		`, tr.ID, imgIDs)
		return err
	})
}

// UpdateVehicleJudgement writes judgement results for a vehicle track.
func (t *TrackDAO) UpdateVehicleJudgement(ctx context.Context, snap *model.Snapshot) error {
	var mostCOI string
	var mostScore float64
	if snap.MatchVOI != nil {
		mostCOI = snap.MatchVOI.VOIPlate
		mostScore = 1.0
	}
	return t.db.Do(ctx, func(conn *sqlx.DB) error {
		_, err := conn.ExecContext(ctx, `
			UPDATE car_tracks SET matched=$2, judged=$3, alarmed=$4, most_coi=$5, most_score=$6
			WHERE track_id=$1
		`, snap.TrackID, boolToInt(snap.Matched), boolToInt(snap.Judged), boolToInt(snap.Alarmed), mostCOI, mostScore)
		return err
	})
}

type faceTrackRow struct {
	TrackID    string    `db:"track_id"`
	SourceID   string    `db:"source_id"`
	CapturedAt time.Time `db:"captured_at"`
	ImgIDs     string    `db:"img_ids"`
	Matched    int       `db:"matched"`
	Judged     int       `db:"judged"`
	Alarmed    int       `db:"alarmed"`
	MostPerson string    `db:"most_person"`
	MostScore  float64   `db:"most_score"`
}

type vehicleTrackRow struct {
	TrackID    string    `db:"track_id"`
	SourceID   string    `db:"source_id"`
	CapturedAt time.Time `db:"captured_at"`
	ImgIDs     string    `db:"img_ids"`
	PlateText  string    `db:"plate_text"`
	Matched    int       `db:"matched"`
	Judged     int       `db:"judged"`
	Alarmed    int       `db:"alarmed"`
	MostCOI    string    `db:"most_coi"`
	MostScore  float64   `db:"most_score"`
}

// LoadRecentFaceTracks returns the most recently captured face tracks, newest
// first, used to seed the dashboard window at startup (spec.md §4.H).
func (t *TrackDAO) LoadRecentFaceTracks(ctx context.Context, limit int) ([]model.Snapshot, error) {
	var rows []faceTrackRow
	err := t.db.Do(ctx, func(conn *sqlx.DB) error {
		return conn.SelectContext(ctx, &rows, `
			SELECT track_id, source_id, captured_at, img_ids, matched, judged, alarmed, most_person, most_score
			FROM face_tracks ORDER BY captured_at DESC LIMIT $1
		`, limit)
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Snapshot, len(rows))
	for i, r := range rows {
		snap := model.Snapshot{
			TrackID: r.TrackID, Kind: model.KindFace, SourceID: r.SourceID,
			CapturedAt: r.CapturedAt, ImgIDs: r.ImgIDs,
			Matched: r.Matched != 0, Judged: r.Judged != 0, Alarmed: r.Alarmed != 0,
		}
		if r.MostPerson != "" {
			snap.MatchPerson = &model.MatchPerson{PersonID: r.MostPerson, Score: r.MostScore}
		}
		out[i] = snap
	}
	return out, nil
}

// LoadRecentVehicleTracks returns the most recently captured vehicle tracks,
// newest first.
func (t *TrackDAO) LoadRecentVehicleTracks(ctx context.Context, limit int) ([]model.Snapshot, error) {
	var rows []vehicleTrackRow
	err := t.db.Do(ctx, func(conn *sqlx.DB) error {
		return conn.SelectContext(ctx, &rows, `
			SELECT track_id, source_id, captured_at, img_ids, plate_text, matched, judged, alarmed, most_coi, most_score
			FROM car_tracks ORDER BY captured_at DESC LIMIT $1
		`, limit)
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Snapshot, len(rows))
	for i, r := range rows {
		snap := model.Snapshot{
			TrackID: r.TrackID, Kind: model.KindVehicle, SourceID: r.SourceID,
			CapturedAt: r.CapturedAt, ImgIDs: r.ImgIDs,
			PlateInfo: &model.PlateInfo{Text: r.PlateText},
			Matched:   r.Matched != 0, Judged: r.Judged != 0, Alarmed: r.Alarmed != 0,
		}
		if r.MostCOI != "" {
			snap.MatchVOI = &model.MatchVOI{VOIPlate: r.MostCOI}
		}
		out[i] = snap
	}
	return out, nil
}

// CountFaceTracks returns total and alarmed face-track counts, used to seed
// the dashboard counters at startup (spec.md §4.H).
func (t *TrackDAO) CountFaceTracks(ctx context.Context) (total, alarmed int64, err error) {
	err = t.db.Do(ctx, func(conn *sqlx.DB) error {
		if e := conn.GetContext(ctx, &total, `SELECT count(*) FROM face_tracks`); e != nil {
			return e
		}
		return conn.GetContext(ctx, &alarmed, `SELECT count(*) FROM face_tracks WHERE alarmed=1`)
	})
	return
}

// CountVehicleTracks returns total and alarmed vehicle-track counts.
func (t *TrackDAO) CountVehicleTracks(ctx context.Context) (total, alarmed int64, err error) {
	err = t.db.Do(ctx, func(conn *sqlx.DB) error {
		if e := conn.GetContext(ctx, &total, `SELECT count(*) FROM car_tracks`); e != nil {
			return e
		}
		return conn.GetContext(ctx, &alarmed, `SELECT count(*) FROM car_tracks WHERE alarmed=1`)
	})
	return
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ErrNotFound is returned when a lookup finds no row.
var ErrNotFound = sql.ErrNoRows

func wrapNotFound(err error) error {
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w", ErrNotFound)
	}
	return err
}
