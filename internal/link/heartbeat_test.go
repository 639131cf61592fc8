// ABOUTME: Tests for the liveness heartbeat ticker.
// ABOUTME: Validates single-ticker ownership across restarts and stop-on-error.

package link

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeartbeat_FiresRepeatedly(t *testing.T) {
	hb := newHeartbeat(10*time.Millisecond, testLogger())
	defer hb.halt()

	var ticks atomic.Int64
	hb.start(func() error {
		ticks.Add(1)
		return nil
	})

	require.Eventually(t, func() bool {
		return ticks.Load() >= 3
	}, 2*time.Second, time.Millisecond)
	assert.True(t, hb.running())
}

func TestHeartbeat_HaltStopsTicking(t *testing.T) {
	hb := newHeartbeat(10*time.Millisecond, testLogger())

	var ticks atomic.Int64
	hb.start(func() error {
		ticks.Add(1)
		return nil
	})
	require.Eventually(t, func() bool {
		return ticks.Load() >= 1
	}, 2*time.Second, time.Millisecond)

	hb.halt()
	assert.False(t, hb.running())

	n := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, ticks.Load(), "ticker kept firing after halt")

	// halt is idempotent.
	hb.halt()
}

func TestHeartbeat_RestartReplacesPriorTicker(t *testing.T) {
	hb := newHeartbeat(10*time.Millisecond, testLogger())
	defer hb.halt()

	var first, second atomic.Int64
	hb.start(func() error {
		first.Add(1)
		return nil
	})
	hb.start(func() error {
		second.Add(1)
		return nil
	})

	require.Eventually(t, func() bool {
		return second.Load() >= 3
	}, 2*time.Second, time.Millisecond)

	// The first ticker was stopped by the restart; at most one tick could
	// have slipped in before it.
	assert.LessOrEqual(t, first.Load(), int64(1))
}

func TestHeartbeat_SendErrorStopsLoop(t *testing.T) {
	hb := newHeartbeat(10*time.Millisecond, testLogger())
	defer hb.halt()

	var ticks atomic.Int64
	hb.start(func() error {
		ticks.Add(1)
		return errors.New("socket gone")
	})

	require.Eventually(t, func() bool {
		return ticks.Load() == 1
	}, 2*time.Second, time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), ticks.Load(), "loop kept running after a send error")
}
