package eventbus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/twmsh/trackfusion/internal/model"
)

func TestSubscribeReturnsSameQueueForSameName(t *testing.T) {
	b := New()
	q1 := b.Subscribe("dashboard")
	q2 := b.Subscribe("dashboard")
	require.Same(t, q1, q2)
}

func TestPublishFansOutToEverySubscriber(t *testing.T) {
	b := New()
	qa := b.Subscribe("a")
	qb := b.Subscribe("b")

	in := make(chan *model.Snapshot, 1)
	in <- &model.Snapshot{TrackID: "T1"}
	close(in)

	b.Run(in)

	gotA, ok := qa.Pop()
	require.True(t, ok)
	require.Equal(t, "T1", gotA.TrackID)

	gotB, ok := qb.Pop()
	require.True(t, ok)
	require.Equal(t, "T1", gotB.TrackID)

	require.NotSame(t, gotA, gotB, "each subscriber must get its own clone")
}

func TestRunClosesAllSubscriberQueuesWhenInputCloses(t *testing.T) {
	b := New()
	q := b.Subscribe("a")

	in := make(chan *model.Snapshot)
	close(in)
	b.Run(in)

	_, ok := q.Pop()
	require.False(t, ok)
}

