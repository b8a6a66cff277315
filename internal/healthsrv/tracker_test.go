package healthsrv

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerStartFinish(t *testing.T) {
	tr := NewTracker("component-manager", 0)

	tr.Start("req-1", "set", nil)
	op := tr.Get("req-1")
	require.NotNil(t, op)
	assert.Equal(t, StatusRunning, op.Status)

	tr.Finish("req-1", nil)
	op = tr.Get("req-1")
	require.NotNil(t, op)
	assert.Equal(t, StatusCompleted, op.Status)
	assert.NotEmpty(t, op.Duration)
}

func TestTrackerFinishWithError(t *testing.T) {
	tr := NewTracker("component-manager", 0)
	tr.Start("req-1", "delete", nil)
	tr.Finish("req-1", errors.New("boom"))

	op := tr.Get("req-1")
	require.NotNil(t, op)
	assert.Equal(t, StatusFailed, op.Status)
	assert.Equal(t, "boom", op.Error)
}

func TestTrackerTrack(t *testing.T) {
	tr := NewTracker("shard-manager", 0)

	err := tr.Track("req-2", "incr", func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, tr.Get("req-2").Status)

	err = tr.Track("req-3", "incr", func() error { return errors.New("fail") })
	assert.Error(t, err)
	assert.Equal(t, StatusFailed, tr.Get("req-3").Status)
}

func TestTrackerEviction(t *testing.T) {
	tr := NewTracker("svc", 2)
	tr.Start("a", "k", nil)
	tr.Start("b", "k", nil)
	tr.Start("c", "k", nil)

	assert.Nil(t, tr.Get("a"))
	assert.NotNil(t, tr.Get("b"))
	assert.NotNil(t, tr.Get("c"))
	assert.Len(t, tr.List(), 2)
}

func TestTrackerStats(t *testing.T) {
	tr := NewTracker("svc", 0)
	tr.Start("a", "set", nil)
	tr.Finish("a", nil)
	tr.Start("b", "set", nil)
	tr.Finish("b", errors.New("x"))
	tr.Start("c", "new", nil)

	stats := tr.StatsSnapshot()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[StatusCompleted])
	assert.Equal(t, 1, stats.ByStatus[StatusFailed])
	assert.Equal(t, 1, stats.ByStatus[StatusRunning])
	assert.Equal(t, 2, stats.ByKind["set"])
}
