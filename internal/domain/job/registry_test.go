package job

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gittidev/vibe-socket-test/internal/testutil"
)

func TestRegistry_TryStartRejectsDuplicate(t *testing.T) {
	reg := NewRegistry()

	require.True(t, reg.TryStart("patient-1", "job-a"))
	assert.False(t, reg.TryStart("patient-1", "job-b"))
	assert.True(t, reg.TryStart("patient-2", "job-c"))
	assert.Equal(t, 2, reg.Len())

	state, ok := reg.Status("patient-1")
	require.True(t, ok)
	assert.Equal(t, "job-a", state.JobID)
	assert.Equal(t, "patient-1", state.SubjectKey)
}

func TestRegistry_FinishAllowsRestart(t *testing.T) {
	reg := NewRegistry()
	fixed := testutil.TestTime()
	reg.now = testutil.FixedTimeFunc(fixed)

	require.True(t, reg.TryStart("patient-1", "job-a"))
	reg.Finish("patient-1")

	_, ok := reg.Status("patient-1")
	assert.False(t, ok)

	require.True(t, reg.TryStart("patient-1", "job-b"))
	state, ok := reg.Status("patient-1")
	require.True(t, ok)
	assert.Equal(t, fixed, state.StartedAt)
}

func TestRegistry_FinishUnknownKey(t *testing.T) {
	reg := NewRegistry()
	reg.Finish("missing")
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_ConcurrentTryStartSingleWinner(t *testing.T) {
	reg := NewRegistry()

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if reg.TryStart("patient-42", "job") {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
}
