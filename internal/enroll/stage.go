package enroll

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/twmsh/trackfusion/internal/model"
)

// StageEvent is one worker's report of completed work within a stage
// (spec.md §4.J "each worker emits StageEvent{stage, worker, succ, fail}
// to a single collector channel").
type StageEvent struct {
	Stage int
	Worker int
	Succ   int
	Fail   int
}

// StageTracker is the single collector that folds StageEvents into the
// three stages' running counters and propagates completion forward
// (spec.md §4.J "Stage statistics").
type StageTracker struct {
	log *logrus.Entry

	mu     sync.Mutex
	stages [3]model.StageProgress

	events chan StageEvent
	done   chan struct{}
}

var stageLabels = [3]string{"detect", "create", "save"}

// NewStageTracker seeds stage 0's target count (the number of files the
// scan accepted) and starts the collector loop.
func NewStageTracker(detectCount int, log *logrus.Entry) *StageTracker {
	t := &StageTracker{
		log:    log,
		events: make(chan StageEvent, 256),
		done:   make(chan struct{}),
	}
	for i := range t.stages {
		t.stages[i] = model.StageProgress{StageID: i, Label: stageLabels[i]}
	}
	t.stages[0].Count = detectCount
	if detectCount == 0 {
		t.forceDoneFrom(0)
	}
	return t
}

// Events returns the channel workers report StageEvents on.
func (t *StageTracker) Events() chan<- StageEvent { return t.events }

// Done reports when every stage has reached its done state.
func (t *StageTracker) Done() <-chan struct{} { return t.done }

// Snapshot returns a copy of the current per-stage progress.
func (t *StageTracker) Snapshot() [3]model.StageProgress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stages
}

// Run drains events until every stage is done, logging progress once a
// second (spec.md §4.J "Prints progress each second; on all-stages-done,
// signals program exit").
func (t *StageTracker) Run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	allDone := t.allStagesDone()
	for !allDone {
		select {
		case ev, ok := <-t.events:
			if !ok {
				return
			}
			allDone = t.apply(ev)
		case <-ticker.C:
			t.logProgress()
		}
	}
	t.logProgress()
	close(t.done)
}

func (t *StageTracker) apply(ev StageEvent) (allDone bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := &t.stages[ev.Stage]
	s.Touch += ev.Succ + ev.Fail
	s.Succ += ev.Succ
	s.Fail += ev.Fail

	// A stage's Count is only final once the stage before it is done, so
	// completion is checked in stage order and cascades forward.
	for i := ev.Stage; i < len(t.stages); i++ {
		st := &t.stages[i]
		if st.Done || (i > 0 && !t.stages[i-1].Done) || st.Touch < st.Count {
			break
		}
		st.Done = true
		if next := i + 1; next < len(t.stages) {
			t.stages[next].Count = st.Succ
			if st.Succ == 0 {
				t.forceDoneFromLocked(next)
			}
		}
	}

	return t.allStagesDoneLocked()
}

func (t *StageTracker) allStagesDone() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allStagesDoneLocked()
}

func (t *StageTracker) allStagesDoneLocked() bool {
	for i := range t.stages {
		if !t.stages[i].Done {
			return false
		}
	}
	return true
}

// forceDoneFrom marks every stage from idx onward as done with a zero
// target — used when an earlier stage produced no successes at all
// (spec.md §4.J "If stage.succ = 0, all subsequent stages are
// force-done").
func (t *StageTracker) forceDoneFrom(idx int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.forceDoneFromLocked(idx)
}

func (t *StageTracker) forceDoneFromLocked(idx int) {
	for i := idx; i < len(t.stages); i++ {
		t.stages[i].Count = 0
		t.stages[i].Done = true
	}
}

func (t *StageTracker) logProgress() {
	t.mu.Lock()
	snap := t.stages
	t.mu.Unlock()

	for _, s := range snap {
		t.log.WithFields(logrus.Fields{
			"stage": s.Label, "count": s.Count, "touch": s.Touch,
			"succ": s.Succ, "fail": s.Fail, "done": s.Done,
		}).Info("enrollment progress")
	}
}
