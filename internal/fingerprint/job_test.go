package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	job := NewJob(7, "/segments/segment_00007.wav")

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, 7, job.SegmentIndex)
	assert.Equal(t, "/segments/segment_00007.wav", job.FilePath)
	assert.Equal(t, StatusQueued, job.GetStatus())
	assert.False(t, job.IsTerminal())
	assert.False(t, job.CreatedAt.IsZero())
}

func TestJob_Lifecycle(t *testing.T) {
	t.Run("queued to completed", func(t *testing.T) {
		job := NewJob(0, "segment_00000.wav")

		require.NoError(t, job.Start())
		assert.Equal(t, StatusRunning, job.GetStatus())
		assert.False(t, job.StartedAt.IsZero())

		require.NoError(t, job.Complete("dejavu-42"))
		assert.Equal(t, StatusCompleted, job.GetStatus())
		assert.Equal(t, "dejavu-42", job.RemoteID)
		assert.True(t, job.IsTerminal())
		assert.False(t, job.CompletedAt.IsZero())
	})

	t.Run("queued to failed", func(t *testing.T) {
		job := NewJob(0, "segment_00000.wav")

		require.NoError(t, job.Fail("context cancelled"))
		assert.Equal(t, StatusFailed, job.GetStatus())
		assert.Equal(t, "context cancelled", job.Error)
		assert.True(t, job.IsTerminal())
	})

	t.Run("running to failed", func(t *testing.T) {
		job := NewJob(0, "segment_00000.wav")

		require.NoError(t, job.Start())
		require.NoError(t, job.Fail("server error"))
		assert.Equal(t, StatusFailed, job.GetStatus())
	})
}

func TestJob_InvalidTransitions(t *testing.T) {
	t.Run("complete without start", func(t *testing.T) {
		job := NewJob(0, "segment_00000.wav")
		assert.ErrorIs(t, job.Complete("x"), ErrInvalidTransition)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		job := NewJob(0, "segment_00000.wav")
		require.NoError(t, job.Start())
		require.NoError(t, job.Complete("x"))

		assert.ErrorIs(t, job.Start(), ErrInvalidTransition)
		assert.ErrorIs(t, job.Fail("too late"), ErrInvalidTransition)
	})
}

func TestJob_Clone(t *testing.T) {
	job := NewJob(3, "segment_00003.wav")
	require.NoError(t, job.Start())

	clone := job.Clone()
	assert.Equal(t, job.ID, clone.ID)
	assert.Equal(t, job.SegmentIndex, clone.SegmentIndex)
	assert.Equal(t, StatusRunning, clone.Status)

	// Mutating the clone must not touch the original.
	clone.Status = StatusFailed
	assert.Equal(t, StatusRunning, job.GetStatus())
}
