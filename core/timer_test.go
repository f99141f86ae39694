package core

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerPeriodicFiresRepeatedly(t *testing.T) {
	tm := NewTimer()
	var count int32
	h, err := tm.Periodic(10*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	require.NoError(t, err)

	time.Sleep(55 * time.Millisecond)
	require.NoError(t, tm.Cancel(h))
	require.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(3))
}

func TestTimerCancelStopsFurtherCallbacks(t *testing.T) {
	tm := NewTimer()
	var count int32
	h, err := tm.Periodic(10*time.Millisecond, func() { atomic.AddInt32(&count, 1) })
	require.NoError(t, err)

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, tm.Cancel(h))
	after := atomic.LoadInt32(&count)
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, after, atomic.LoadInt32(&count))
}

func TestTimerCancelUnknownHandleIsInvalidHandle(t *testing.T) {
	tm := NewTimer()
	require.Equal(t, ErrInvalidHandle, tm.Cancel(TimerHandle(999)))
}

func TestTimerPeriodicRejectsZeroPeriod(t *testing.T) {
	tm := NewTimer()
	_, err := tm.Periodic(0, func() {})
	require.Equal(t, ErrInvalidParameter, err)
}
