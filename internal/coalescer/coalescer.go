package coalescer

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/twmsh/trackfusion/internal/delayqueue"
	"github.com/twmsh/trackfusion/internal/model"
)

const (
	timerKindReady = "ready"
	timerKindClean = "clean"

	// fired channel buffer; generous enough that a burst of simultaneous
	// deadlines never blocks the delay queue's single consumer goroutine.
	firedBuffer = 4096
)

// Coalescer owns one Policy's worth of live track state: the per-ID
// (buffer, running-flag) entries, the readiness/clean delay queue, and the
// downstream snapshot channel.
type Coalescer struct {
	policy  Policy
	cameras CameraLookup
	out     chan<- *model.Snapshot
	log     *logrus.Entry

	mu      sync.Mutex
	entries map[string]*entry

	timers *delayqueue.DelayQueue[string]

	wg sync.WaitGroup
}

// New constructs a Coalescer for one track kind. policy owns its own
// imagestore.Store and dao.TrackDAO (see FacePolicy/VehiclePolicy).
func New(policy Policy, cameras CameraLookup, out chan<- *model.Snapshot, log *logrus.Entry) *Coalescer {
	return &Coalescer{
		policy:  policy,
		cameras: cameras,
		out:     out,
		log:     log,
		entries: make(map[string]*entry),
		timers:  delayqueue.New[string](firedBuffer),
	}
}

// Start runs the delay-queue consumer loop and the timer-fired dispatch
// loop in background goroutines.
func (c *Coalescer) Start() {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.timers.Run()
	}()
	go func() {
		defer c.wg.Done()
		c.consumeTimers()
	}()
}

// Stop terminates the delay queue; in-flight drain goroutines finish their
// current batch and exit naturally.
func (c *Coalescer) Stop() {
	c.timers.Stop()
	c.wg.Wait()
}

func (c *Coalescer) consumeTimers() {
	for f := range c.timers.Fired() {
		switch f.Kind {
		case timerKindReady:
			c.dispatch(f.Key, event{kind: eventReadinessTimeout})
		case timerKindClean:
			c.dispatch(f.Key, event{kind: eventClear})
		}
	}
}

// Dispatch routes one notification to its track ID's serial handler,
// creating the entry (and arming both timers) on first intake — spec.md
// §4.B's "dispatch(id, event) appends to buffer and, only if not running,
// spawns a drain task".
func (c *Coalescer) Dispatch(n *model.TrackNotification) {
	c.dispatch(n.ID, event{kind: eventAppend, notif: n})
}

func (c *Coalescer) dispatch(id string, ev event) {
	c.mu.Lock()
	e, ok := c.entries[id]
	firstIntake := false
	if !ok {
		if ev.kind != eventAppend {
			// stray timer fire for an already-evicted (or never-seen) ID
			c.mu.Unlock()
			return
		}
		e = newEntry(id, c.policy.Kind())
		c.entries[id] = e
		firstIntake = true
	}
	c.mu.Unlock()

	if firstIntake {
		now := time.Now()
		c.timers.Schedule(id, timerKindReady, now.Add(c.policy.ReadyDelay()))
		c.timers.Schedule(id, timerKindClean, now.Add(c.policy.ClearDelay()))
	}

	if spawn := e.push(ev); spawn {
		go c.drain(e)
	}
}

// drain repeatedly takes the full buffer, processes it, and re-checks
// under the lock before exiting — spec.md §4.B's keyed serial execution
// strategy, never holding a lock across I/O.
func (c *Coalescer) drain(e *entry) {
	for {
		batch := e.takeBatch()
		evicted := c.processBatch(e, batch)
		if evicted {
			c.mu.Lock()
			delete(c.entries, e.id)
			c.mu.Unlock()
			return
		}
		if stopped := e.tryStop(); stopped {
			return
		}
	}
}
