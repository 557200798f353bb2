package coalescer

import (
	"sync"

	"github.com/twmsh/trackfusion/internal/model"
)

// eventKind distinguishes the three inputs a per-ID handler activation can
// fold into a batch, per spec.md §4.B's state table.
type eventKind int

const (
	eventAppend eventKind = iota
	eventReadinessTimeout
	eventClear
)

// event is one buffered input to an entry's drain loop.
type event struct {
	kind  eventKind
	notif *model.TrackNotification
}

// entry is the (buffer, running-flag) pair spec.md §4.B describes: "each
// active ID owns a (buffer, running-flag) pair guarded by a short critical
// section". One entry exists per live track ID.
type entry struct {
	id string

	mu      sync.Mutex
	buffer  []event
	running bool

	track *model.Track
}

func newEntry(id string, kind model.TrackKind) *entry {
	return &entry{
		id: id,
		track: &model.Track{
			ID:   id,
			Kind: kind,
		},
	}
}

// push appends ev to the buffer and reports whether the caller must spawn
// a drain goroutine (true only on the buffer's 0→1 transition while idle).
func (e *entry) push(ev event) (spawn bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffer = append(e.buffer, ev)
	if e.running {
		return false
	}
	e.running = true
	return true
}

// takeBatch atomically swaps out the current buffer for processing.
func (e *entry) takeBatch() []event {
	e.mu.Lock()
	defer e.mu.Unlock()
	batch := e.buffer
	e.buffer = nil
	return batch
}

// tryStop clears the running flag if no events arrived while the last
// batch was being processed; returns false (and leaves running=true) if
// the buffer is non-empty, meaning the drain loop must take another pass —
// this is the "re-check under the lock before exiting" spec.md describes.
func (e *entry) tryStop() (stopped bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.buffer) > 0 {
		return false
	}
	e.running = false
	return true
}
