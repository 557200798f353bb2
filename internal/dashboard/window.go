// Package dashboard maintains the live ring-window + counters described in
// spec.md §4.H and publishes them to WebSocket clients per spec.md §6's
// delivered protocol.
package dashboard

import (
	"context"
	"sort"
	"sync"

	"github.com/twmsh/trackfusion/internal/model"
)

// Counters are the four running totals the dashboard reports alongside the
// window on every message.
type Counters struct {
	TotalFaceCount int64
	TotalFaceAlarm int64
	TotalCarCount  int64
	TotalCarAlarm  int64
}

// Tracks is the subset of internal/dao.TrackDAO the window seeds from.
type Tracks interface {
	CountFaceTracks(ctx context.Context) (total, alarmed int64, err error)
	CountVehicleTracks(ctx context.Context) (total, alarmed int64, err error)
	LoadRecentFaceTracks(ctx context.Context, limit int) ([]model.Snapshot, error)
	LoadRecentVehicleTracks(ctx context.Context, limit int) ([]model.Snapshot, error)
}

// Window is a bounded ring of the most recent judged snapshots plus running
// counters, guarded by a single mutex since writes (one per judged track)
// are far less frequent than dashboard-side reads.
type Window struct {
	mu       sync.Mutex
	capacity int
	items    []*model.Snapshot // oldest first, trimmed to capacity
	counters Counters
}

// New creates an empty window of the given capacity.
func New(capacity int) *Window {
	return &Window{capacity: capacity}
}

// Seed loads starting counters and window contents from the database, per
// spec.md §4.H: counters come from count(*)/count(alarmed=1), the window
// from the most recent `capacity` face+vehicle tracks merged by capture
// timestamp.
func (w *Window) Seed(ctx context.Context, tracks Tracks) error {
	faceTotal, faceAlarm, err := tracks.CountFaceTracks(ctx)
	if err != nil {
		return err
	}
	carTotal, carAlarm, err := tracks.CountVehicleTracks(ctx)
	if err != nil {
		return err
	}

	faceRows, err := tracks.LoadRecentFaceTracks(ctx, w.capacity)
	if err != nil {
		return err
	}
	carRows, err := tracks.LoadRecentVehicleTracks(ctx, w.capacity)
	if err != nil {
		return err
	}

	merged := make([]*model.Snapshot, 0, len(faceRows)+len(carRows))
	for i := range faceRows {
		merged = append(merged, &faceRows[i])
	}
	for i := range carRows {
		merged = append(merged, &carRows[i])
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].CapturedAt.Before(merged[j].CapturedAt)
	})
	if len(merged) > w.capacity {
		merged = merged[len(merged)-w.capacity:]
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.counters = Counters{
		TotalFaceCount: faceTotal, TotalFaceAlarm: faceAlarm,
		TotalCarCount: carTotal, TotalCarAlarm: carAlarm,
	}
	w.items = merged
	return nil
}

// Push appends a newly judged snapshot, updates counters, and trims the
// window to capacity. Returns a snapshot of the new counters for the
// caller to publish alongside the tail.
func (w *Window) Push(snap *model.Snapshot) Counters {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch snap.Kind {
	case model.KindFace:
		w.counters.TotalFaceCount++
		if snap.Alarmed {
			w.counters.TotalFaceAlarm++
		}
	case model.KindVehicle:
		w.counters.TotalCarCount++
		if snap.Alarmed {
			w.counters.TotalCarAlarm++
		}
	}

	w.items = append(w.items, snap)
	if len(w.items) > w.capacity {
		w.items = w.items[len(w.items)-w.capacity:]
	}
	return w.counters
}

// Snapshot returns the current counters and a copy of the window contents,
// newest last, for a newly-connected client's initial message.
func (w *Window) Snapshot() (Counters, []*model.Snapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	items := make([]*model.Snapshot, len(w.items))
	copy(items, w.items)
	return w.counters, items
}
