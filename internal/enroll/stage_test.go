package enroll

import (
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestStageTrackerHappyPath(t *testing.T) {
	tr := NewStageTracker(2, newTestLog())
	go tr.Run()

	tr.Events() <- StageEvent{Stage: 0, Worker: 0, Succ: 1, Fail: 0}
	tr.Events() <- StageEvent{Stage: 0, Worker: 0, Succ: 1, Fail: 0}
	tr.Events() <- StageEvent{Stage: 1, Worker: 0, Succ: 2, Fail: 0}
	tr.Events() <- StageEvent{Stage: 2, Worker: 0, Succ: 2, Fail: 0}

	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("tracker did not reach done")
	}

	snap := tr.Snapshot()
	assert.True(t, snap[0].Done)
	assert.True(t, snap[1].Done)
	assert.True(t, snap[2].Done)
	assert.Equal(t, 2, snap[1].Count)
	assert.Equal(t, 2, snap[2].Count)
}

func TestStageTrackerForceDoneOnZeroSuccess(t *testing.T) {
	tr := NewStageTracker(5, newTestLog())
	go tr.Run()

	tr.Events() <- StageEvent{Stage: 0, Worker: 0, Succ: 0, Fail: 5}

	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("tracker did not reach done")
	}

	snap := tr.Snapshot()
	assert.True(t, snap[0].Done)
	assert.True(t, snap[1].Done)
	assert.True(t, snap[2].Done)
	assert.Equal(t, 0, snap[1].Count)
}

func TestStageTrackerZeroFiles(t *testing.T) {
	tr := NewStageTracker(0, newTestLog())
	go tr.Run()

	select {
	case <-tr.Done():
	case <-time.After(time.Second):
		t.Fatal("tracker with zero files never finished")
	}
}

func TestParsePersonPropsDecodesSex(t *testing.T) {
	cfg := Config{
		FilenameRegex: regexp.MustCompile(`^(.+)_(男|女)_(\d+)$`),
		CaptureGroups: []string{"name", "sex", "idcard"},
	}
	props, err := ParsePersonProps(cfg, "张三_男_110101199001011234.jpg")
	require.NoError(t, err)
	assert.Equal(t, "张三", props.Name)
	assert.Equal(t, 1, props.Sex)
	assert.Equal(t, "110101199001011234", props.IDCard)
}
