package scheduler_test

import (
	"sync/atomic"
	"testing"
	"time"

	"depotbook/src/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduledTask(t *testing.T) {
	t.Run("Runs until cancelled", func(t *testing.T) {
		var runs int32
		task, err := scheduler.NewScheduledTask("@every 1s", func() {
			atomic.AddInt32(&runs, 1)
		})
		require.NoError(t, err)

		assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) > 0 }, 3*time.Second, 50*time.Millisecond)
		task.Cancel()

		after := atomic.LoadInt32(&runs)
		time.Sleep(1200 * time.Millisecond)
		assert.Equal(t, after, atomic.LoadInt32(&runs))
	})

	t.Run("Invalid schedule", func(t *testing.T) {
		_, err := scheduler.NewScheduledTask("every now and then", func() {})
		assert.Error(t, err)
	})
}
