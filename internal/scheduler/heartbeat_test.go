package scheduler

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const interval = 180 * time.Second

func newTestHeartbeat(t *testing.T) (*Heartbeat, *clock.Mock, chan Tick) {
	t.Helper()
	mock := clock.NewMock()
	ticks := make(chan Tick, 16)
	h := New(interval, func(tk Tick) { ticks <- tk }, WithClock(mock))
	t.Cleanup(h.Stop)
	return h, mock, ticks
}

func waitTick(t *testing.T, ticks <-chan Tick) Tick {
	t.Helper()
	select {
	case tk := <-ticks:
		return tk
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tick")
		return Tick{}
	}
}

func assertNoTick(t *testing.T, ticks <-chan Tick) {
	t.Helper()
	select {
	case tk := <-ticks:
		t.Fatalf("unexpected tick %d", tk.Ordinal)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestStartDoesNotFireImmediately(t *testing.T) {
	h, mock, ticks := newTestHeartbeat(t)
	require.NoError(t, h.Start())

	mock.Add(interval - time.Millisecond)
	assertNoTick(t, ticks)

	mock.Add(time.Millisecond)
	tk := waitTick(t, ticks)
	assert.Equal(t, uint64(1), tk.Ordinal)
	assert.Equal(t, interval, tk.Interval)
}

func TestTicksAreOrdered(t *testing.T) {
	h, mock, ticks := newTestHeartbeat(t)
	require.NoError(t, h.Start())

	var last Tick
	for i := 1; i <= 3; i++ {
		mock.Add(interval)
		tk := waitTick(t, ticks)
		assert.Equal(t, uint64(i), tk.Ordinal)
		assert.False(t, tk.Time.Before(last.Time))
		last = tk
	}

	st := h.Status()
	assert.True(t, st.Running)
	assert.Equal(t, uint64(3), st.TicksEmitted)
	assert.Equal(t, last.Time, st.LastTick)
	assert.Equal(t, interval, st.Interval)
}

func TestStartTwiceFails(t *testing.T) {
	h, _, _ := newTestHeartbeat(t)
	require.NoError(t, h.Start())
	assert.ErrorIs(t, h.Start(), ErrAlreadyRunning)
}

func TestStopIsIdempotentAndHaltsTicks(t *testing.T) {
	h, mock, ticks := newTestHeartbeat(t)

	h.Stop() // stop before start is a no-op
	require.NoError(t, h.Start())
	mock.Add(interval)
	waitTick(t, ticks)

	h.Stop()
	h.Stop()
	assert.False(t, h.Status().Running)

	mock.Add(3 * interval)
	assertNoTick(t, ticks)
}

func TestRestartContinuesOrdinals(t *testing.T) {
	h, mock, ticks := newTestHeartbeat(t)

	require.NoError(t, h.Start())
	mock.Add(interval)
	assert.Equal(t, uint64(1), waitTick(t, ticks).Ordinal)
	h.Stop()

	require.NoError(t, h.Start())
	mock.Add(interval - time.Millisecond)
	assertNoTick(t, ticks)
	mock.Add(time.Millisecond)
	assert.Equal(t, uint64(2), waitTick(t, ticks).Ordinal)
}

func TestHandlerCallsNeverOverlap(t *testing.T) {
	mock := clock.NewMock()
	var (
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	done := make(chan struct{}, 16)
	h := New(interval, func(Tick) {
		mu.Lock()
		active++
		if active > maxSeen {
			maxSeen = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		done <- struct{}{}
	}, WithClock(mock))
	defer h.Stop()

	require.NoError(t, h.Start())
	for i := 0; i < 3; i++ {
		mock.Add(interval)
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not run")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, maxSeen)
}

func TestStopWaitsForTickInFlight(t *testing.T) {
	mock := clock.NewMock()
	entered := make(chan struct{})
	release := make(chan struct{})
	h := New(interval, func(Tick) {
		close(entered)
		<-release
	}, WithClock(mock))

	require.NoError(t, h.Start())
	mock.Add(interval)
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("handler did not run")
	}

	stopped := make(chan struct{})
	go func() {
		h.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a tick was being handled")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the tick finished")
	}
	assert.False(t, h.Status().Running)
}

func TestStatusReportsIntervalInMilliseconds(t *testing.T) {
	h, _, _ := newTestHeartbeat(t)
	st := h.Status()
	assert.Equal(t, int64(180_000), st.IntervalMs)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"intervalMs":180000`)
	assert.NotContains(t, string(data), `"interval":`)
}
