// Package scheduler provides the Heartbeat: a restartable fixed-interval
// ticker that drives block minting independently of request traffic. The
// heartbeat owns no domain state; it only emits ordered ticks to the handler
// supplied at construction.
package scheduler

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"xyron.node/xyn/internal/logger"
	"xyron.node/xyn/internal/types"
)

// ErrAlreadyRunning is returned by Start when the heartbeat is already running.
var ErrAlreadyRunning = errors.New("heartbeat already running")

// Tick is a single heartbeat notification.
type Tick struct {
	Ordinal  uint64
	Time     time.Time
	Interval time.Duration
}

// Handler receives ticks. Ticks are delivered one at a time, never
// concurrently, even across a Stop/Start cycle.
type Handler func(Tick)

// Option configures a Heartbeat.
type Option func(*Heartbeat)

// WithClock substitutes the time source, mainly for tests.
func WithClock(c clock.Clock) Option {
	return func(h *Heartbeat) { h.clock = c }
}

// WithLogger attaches a status logger.
func WithLogger(l *logger.Logger) Option {
	return func(h *Heartbeat) { h.logger = l }
}

// Heartbeat emits a tick every interval while running.
type Heartbeat struct {
	interval time.Duration
	handler  Handler
	clock    clock.Clock
	logger   *logger.Logger

	mu       sync.Mutex
	running  bool
	stop     chan struct{}
	done     chan struct{}
	ticks    uint64
	lastTick time.Time

	// dispatchMu serializes handler calls between an old loop still
	// finishing a tick and a freshly started one.
	dispatchMu sync.Mutex
}

// New constructs a stopped Heartbeat.
func New(interval time.Duration, handler Handler, opts ...Option) *Heartbeat {
	h := &Heartbeat{
		interval: interval,
		handler:  handler,
		clock:    clock.New(),
		logger:   logger.New(16, nil),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start begins emitting ticks. The first tick fires one full interval after
// Start; there is no immediate fire.
func (h *Heartbeat) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return ErrAlreadyRunning
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	ticker := h.clock.Ticker(h.interval)
	h.stop = stop
	h.done = done
	h.running = true

	go h.loop(ticker, stop, done)

	h.logger.Infof("Started: %s cycle. Status: %s", h.interval, types.StatusActive)
	return nil
}

// Stop halts future ticks and returns once a tick already being handled has
// finished; that tick is not cancelled. Stop is idempotent and must not be
// called from the handler.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	close(h.stop)
	done := h.done
	h.stop, h.done = nil, nil
	h.running = false
	h.mu.Unlock()

	<-done
	h.logger.Infof("Stopped. Status: %s", types.StatusIdle)
}

// Status returns a snapshot of the heartbeat without side effects.
func (h *Heartbeat) Status() types.HeartbeatStatus {
	h.mu.Lock()
	defer h.mu.Unlock()

	return types.HeartbeatStatus{
		Running:      h.running,
		Interval:     h.interval,
		IntervalMs:   h.interval.Milliseconds(),
		TicksEmitted: h.ticks,
		LastTick:     h.lastTick,
	}
}

func (h *Heartbeat) loop(ticker *clock.Ticker, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			tick, ok := h.next(stop)
			if !ok {
				return
			}
			h.dispatchMu.Lock()
			h.handler(tick)
			h.dispatchMu.Unlock()
		}
	}
}

// next claims the next ordinal, unless the loop was stopped while the
// ticker fired.
func (h *Heartbeat) next(stop chan struct{}) (Tick, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-stop:
		return Tick{}, false
	default:
	}

	h.ticks++
	h.lastTick = h.clock.Now()
	return Tick{
		Ordinal:  h.ticks,
		Time:     h.lastTick,
		Interval: h.interval,
	}, true
}
