// Package eventbus fans judged snapshots out to a dynamic set of named
// subscribers (spec.md §4.G): the dashboard publisher is the only
// subscriber today, but the shape allows more without touching judgement.
package eventbus

import (
	"sync"

	"github.com/twmsh/trackfusion/internal/model"
	"github.com/twmsh/trackfusion/internal/queue"
)

// Bus clones every input item to each currently registered subscriber
// queue. There is no back-pressure: a slow subscriber's queue simply
// grows, per spec.md §4.G.
type Bus struct {
	mu   sync.Mutex
	subs map[string]*queue.Queue[*model.Snapshot]
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string]*queue.Queue[*model.Snapshot])}
}

// Subscribe returns the named subscriber's output queue, creating it if
// this is the first call for that name.
func (b *Bus) Subscribe(name string) *queue.Queue[*model.Snapshot] {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.subs[name]
	if !ok {
		q = queue.New[*model.Snapshot]()
		b.subs[name] = q
	}
	return q
}

// Run drains in, pushing a clone of each item to every registered
// subscriber, until in is closed.
func (b *Bus) Run(in <-chan *model.Snapshot) {
	for snap := range in {
		b.publish(snap)
	}
	b.closeAll()
}

func (b *Bus) publish(snap *model.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.subs {
		clone := *snap
		q.Push(&clone)
	}
}

func (b *Bus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.subs {
		q.Close()
	}
}
