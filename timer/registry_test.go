package timer_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/balancednetwork/xcall-tracker/logging"
	"github.com/balancednetwork/xcall-tracker/timer"
)

func TestRegistryStartAndStop(t *testing.T) {
	t.Parallel()
	r := timer.NewRegistry(logging.New())

	var ticks int64
	r.Start("job", 5*time.Millisecond, func() {
		atomic.AddInt64(&ticks, 1)
	})
	require.True(t, r.Active("job"))

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&ticks) >= 2
	}, time.Second, time.Millisecond)

	r.Stop("job")
	require.False(t, r.Active("job"))

	seen := atomic.LoadInt64(&ticks)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, seen, atomic.LoadInt64(&ticks))
}

func TestRegistryRestartReplacesTimer(t *testing.T) {
	t.Parallel()
	r := timer.NewRegistry(logging.New())

	var first, second int64
	r.Start("job", time.Millisecond, func() {
		atomic.AddInt64(&first, 1)
	})
	r.Start("job", time.Millisecond, func() {
		atomic.AddInt64(&second, 1)
	})

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&second) >= 2
	}, time.Second, time.Millisecond)

	r.Stop("job")
	firstSeen := atomic.LoadInt64(&first)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, firstSeen, atomic.LoadInt64(&first))
}

func TestRegistryStopAll(t *testing.T) {
	t.Parallel()
	r := timer.NewRegistry(logging.New())

	r.Start("a", time.Hour, func() {})
	r.Start("b", time.Hour, func() {})
	require.True(t, r.Active("a"))
	require.True(t, r.Active("b"))

	r.StopAll()
	require.False(t, r.Active("a"))
	require.False(t, r.Active("b"))
}

func TestRegistryStopUnknownID(t *testing.T) {
	t.Parallel()
	r := timer.NewRegistry(logging.New())
	r.Stop("missing")
}
