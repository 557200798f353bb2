package dashboard

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/twmsh/trackfusion/internal/model"
	"github.com/twmsh/trackfusion/internal/queue"
)

func TestPublisherRunUpdatesWindowFromQueue(t *testing.T) {
	window := New(10)
	hub := NewHub(window, logrus.NewEntry(logrus.New()))
	in := queue.New[*model.Snapshot]()
	p := NewPublisher(window, hub, in)

	go p.Run()

	in.Push(&model.Snapshot{TrackID: "T1", Kind: model.KindFace})
	require.Eventually(t, func() bool {
		_, items := window.Snapshot()
		return len(items) == 1
	}, time.Second, 10*time.Millisecond)

	in.Close()
}
