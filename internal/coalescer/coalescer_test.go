package coalescer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/twmsh/trackfusion/internal/model"
)

// fakePolicy is a minimal in-memory Policy used to exercise Coalescer's
// dispatch/drain/timer machinery without touching imagestore or dao.
type fakePolicy struct {
	readyDelay time.Duration
	clearDelay time.Duration
	countMin   int

	mu          sync.Mutex
	inserts     int
	updates     int
	concurrent  int32
	maxConcurrent int32
}

func (f *fakePolicy) Kind() model.TrackKind      { return model.KindFace }
func (f *fakePolicy) ReadyDelay() time.Duration  { return f.readyDelay }
func (f *fakePolicy) ClearDelay() time.Duration  { return f.clearDelay }

func (f *fakePolicy) IsReady(track *model.Track, timerFired bool) bool {
	if timerFired {
		return true
	}
	return len(track.Detections) >= f.countMin
}

func (f *fakePolicy) WriteImages(track *model.Track, wpOld int) error {
	cur := atomic.AddInt32(&f.concurrent, 1)
	defer atomic.AddInt32(&f.concurrent, -1)
	for {
		max := atomic.LoadInt32(&f.maxConcurrent)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxConcurrent, max, cur) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	wp := wpOld
	for i := wpOld; i < len(track.Detections); i++ {
		wp = track.Detections[i].Index
	}
	track.WP = wp
	return nil
}

func (f *fakePolicy) InsertRow(ctx context.Context, track *model.Track) error {
	f.mu.Lock()
	f.inserts++
	f.mu.Unlock()
	return nil
}

func (f *fakePolicy) UpdateRow(ctx context.Context, track *model.Track) error {
	f.mu.Lock()
	f.updates++
	f.mu.Unlock()
	return nil
}

func (f *fakePolicy) BuildSnapshot(track *model.Track, camera *model.Camera) *model.Snapshot {
	return &model.Snapshot{TrackID: track.ID, Kind: track.Kind}
}

type fakeCameras struct{}

func (fakeCameras) GetCamera(ctx context.Context, sourceID string) (*model.Camera, error) {
	return &model.Camera{CameraID: sourceID, Name: "cam-" + sourceID}, nil
}

func newTestCoalescer(t *testing.T, policy Policy) (*Coalescer, chan *model.Snapshot) {
	t.Helper()
	out := make(chan *model.Snapshot, 16)
	log := logrus.NewEntry(logrus.New())
	c := New(policy, fakeCameras{}, out, log)
	c.Start()
	t.Cleanup(c.Stop)
	return c, out
}

func notif(id string, detections int) *model.TrackNotification {
	dets := make([]model.Detection, detections)
	for i := range dets {
		dets[i] = model.Detection{Quality: 0.9}
	}
	return &model.TrackNotification{
		ID:         id,
		Kind:       model.KindFace,
		SourceID:   "cam-1",
		CapturedAt: time.Now(),
		Detections: dets,
	}
}

func TestReadinessAndPublishOnce(t *testing.T) {
	policy := &fakePolicy{readyDelay: time.Hour, clearDelay: time.Hour, countMin: 1}
	c, out := newTestCoalescer(t, policy)

	c.Dispatch(notif("T1", 1))

	select {
	case snap := <-out:
		require.Equal(t, "T1", snap.TrackID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a published snapshot")
	}

	// A second append must not cause a second publication.
	c.Dispatch(notif("T1", 1))
	select {
	case snap := <-out:
		t.Fatalf("unexpected second publication: %+v", snap)
	case <-time.After(200 * time.Millisecond):
	}

	policy.mu.Lock()
	defer policy.mu.Unlock()
	require.Equal(t, 1, policy.inserts)
	require.Equal(t, 1, policy.updates)
}

func TestIncrementalArrivalBeforeReadiness(t *testing.T) {
	policy := &fakePolicy{readyDelay: 50 * time.Millisecond, clearDelay: time.Hour, countMin: 10}
	c, out := newTestCoalescer(t, policy)

	c.Dispatch(notif("T2", 1))
	time.Sleep(10 * time.Millisecond)
	c.Dispatch(notif("T2", 3))

	select {
	case snap := <-out:
		require.Equal(t, "T2", snap.TrackID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected readiness timer to trigger publication")
	}
}

func TestSerialPerTrackID(t *testing.T) {
	policy := &fakePolicy{readyDelay: time.Hour, clearDelay: time.Hour, countMin: 1000}
	c, _ := newTestCoalescer(t, policy)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Dispatch(notif("T3", 1))
		}()
	}
	wg.Wait()
	time.Sleep(100 * time.Millisecond)

	require.LessOrEqual(t, atomic.LoadInt32(&policy.maxConcurrent), int32(1))
}

func TestWritePointerMonotonic(t *testing.T) {
	policy := &fakePolicy{readyDelay: time.Hour, clearDelay: time.Hour, countMin: 1000}
	c, _ := newTestCoalescer(t, policy)

	c.Dispatch(notif("T4", 2))
	time.Sleep(20 * time.Millisecond)
	c.Dispatch(notif("T4", 3))
	time.Sleep(20 * time.Millisecond)

	c.mu.Lock()
	e, ok := c.entries["T4"]
	c.mu.Unlock()
	require.True(t, ok)
	require.Equal(t, 5, e.track.WP)
}

func TestClearEvictsTrack(t *testing.T) {
	policy := &fakePolicy{readyDelay: time.Hour, clearDelay: 30 * time.Millisecond, countMin: 1000}
	c, _ := newTestCoalescer(t, policy)

	c.Dispatch(notif("T5", 1))
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, ok := c.entries["T5"]
		return !ok
	}, time.Second, 5*time.Millisecond)
}
