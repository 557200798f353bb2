package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/twmsh/trackfusion/internal/model"
)

type fakeTracks struct {
	faceTotal, faceAlarm int64
	carTotal, carAlarm   int64
	faceRows, carRows    []model.Snapshot
}

func (f fakeTracks) CountFaceTracks(ctx context.Context) (int64, int64, error) {
	return f.faceTotal, f.faceAlarm, nil
}
func (f fakeTracks) CountVehicleTracks(ctx context.Context) (int64, int64, error) {
	return f.carTotal, f.carAlarm, nil
}
func (f fakeTracks) LoadRecentFaceTracks(ctx context.Context, limit int) ([]model.Snapshot, error) {
	return f.faceRows, nil
}
func (f fakeTracks) LoadRecentVehicleTracks(ctx context.Context, limit int) ([]model.Snapshot, error) {
	return f.carRows, nil
}

func TestSeedMergesAndTrimsToCapacity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tracks := fakeTracks{
		faceTotal: 10, faceAlarm: 2, carTotal: 5, carAlarm: 1,
		faceRows: []model.Snapshot{
			{TrackID: "F1", Kind: model.KindFace, CapturedAt: now.Add(3 * time.Second)},
			{TrackID: "F2", Kind: model.KindFace, CapturedAt: now.Add(1 * time.Second)},
		},
		carRows: []model.Snapshot{
			{TrackID: "C1", Kind: model.KindVehicle, CapturedAt: now.Add(2 * time.Second)},
		},
	}

	w := New(2)
	require.NoError(t, w.Seed(context.Background(), tracks))

	counters, items := w.Snapshot()
	require.Equal(t, Counters{TotalFaceCount: 10, TotalFaceAlarm: 2, TotalCarCount: 5, TotalCarAlarm: 1}, counters)
	require.Len(t, items, 2)
	require.Equal(t, "C1", items[0].TrackID)
	require.Equal(t, "F1", items[1].TrackID)
}

func TestPushUpdatesCountersAndTrimsWindow(t *testing.T) {
	w := New(2)

	w.Push(&model.Snapshot{TrackID: "T1", Kind: model.KindFace, Alarmed: true})
	counters := w.Push(&model.Snapshot{TrackID: "T2", Kind: model.KindVehicle})
	w.Push(&model.Snapshot{TrackID: "T3", Kind: model.KindFace})

	require.Equal(t, int64(1), counters.TotalFaceCount)
	require.Equal(t, int64(1), counters.TotalFaceAlarm)
	require.Equal(t, int64(1), counters.TotalCarCount)

	_, items := w.Snapshot()
	require.Len(t, items, 2)
	require.Equal(t, "T2", items[0].TrackID)
	require.Equal(t, "T3", items[1].TrackID)
}
