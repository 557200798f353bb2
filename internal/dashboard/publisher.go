package dashboard

import (
	"github.com/twmsh/trackfusion/internal/model"
	"github.com/twmsh/trackfusion/internal/queue"
)

// Publisher drains a bus subscription queue and updates the window/hub for
// each arriving judged snapshot (spec.md §4.H's "increment message").
type Publisher struct {
	window *Window
	hub    *Hub
	in     *queue.Queue[*model.Snapshot]
}

// NewPublisher wires in (typically an eventbus.Bus subscription) to window
// and hub.
func NewPublisher(window *Window, hub *Hub, in *queue.Queue[*model.Snapshot]) *Publisher {
	return &Publisher{window: window, hub: hub, in: in}
}

// Run drains in until it's closed (shutdown).
func (p *Publisher) Run() {
	for {
		snap, ok := p.in.Pop()
		if !ok {
			return
		}
		counters := p.window.Push(snap)
		p.hub.Broadcast(toMessage(counters, []*model.Snapshot{snap}))
	}
}
