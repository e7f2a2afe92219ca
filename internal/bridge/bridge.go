// Package bridge turns a request/response exchange with the external
// signature authority into a single blocking call. Each call opens its own
// stream session, writes one JSON request, waits for exactly one JSON
// response and closes the session. Calls that exceed the configured timeout
// fail with ErrTimeout and their registry entry is removed, so late replies
// are dropped with the session.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"xyron.node/xyn/internal/logger"
)

// Observer is notified after every Validate call.
type Observer interface {
	ObserveAuthorityRequest(outcome string, elapsed time.Duration)
}

// Config holds the connection settings of a Bridge.
type Config struct {
	Network       string
	Address       string
	Timeout       time.Duration
	HealthTimeout time.Duration
	// Prefix every accepted signature must begin with.
	Prefix string
}

// Bridge correlates authority requests with their responses.
type Bridge struct {
	cfg      Config
	dialer   net.Dialer
	logger   *logger.Logger
	observer Observer

	counter atomic.Uint64

	mu      sync.Mutex
	pending map[string]*pendingRequest
}

type pendingRequest struct {
	id       string
	deadline time.Time
	result   chan result
}

type result struct {
	resp *Response
	err  error
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger attaches a logger.
func WithLogger(l *logger.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithObserver attaches a metrics observer.
func WithObserver(o Observer) Option {
	return func(b *Bridge) { b.observer = o }
}

// New creates a Bridge. Zero timeouts fall back to 5s and 1s.
func New(cfg Config, opts ...Option) *Bridge {
	if cfg.Network == "" {
		cfg.Network = "unix"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = time.Second
	}
	b := &Bridge{
		cfg:     cfg,
		logger:  logger.New(16, nil),
		pending: make(map[string]*pendingRequest),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Validate asks the authority to confirm message from participantID. It
// returns the authority's response only when it is verified and carries a
// signature with the configured prefix.
func (b *Bridge) Validate(ctx context.Context, participantID, message string) (*Response, error) {
	start := time.Now()
	resp, id, err := b.validate(ctx, participantID, message)
	if b.observer != nil {
		b.observer.ObserveAuthorityRequest(Outcome(err), time.Since(start))
	}
	if err != nil {
		b.logger.Warningf("Validation %s failed for %s: %v", id, participantID, err)
		return nil, err
	}
	return resp, nil
}

func (b *Bridge) validate(ctx context.Context, participantID, message string) (*Response, string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	id := b.nextID()
	req := b.register(ctx, id)
	defer b.remove(id)

	conn, err := b.dialer.DialContext(ctx, b.cfg.Network, b.cfg.Address)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, id, fail(ErrTimeout, id, err)
		}
		return nil, id, fail(ErrTransport, id, errors.Wrapf(err, "dial %s %s", b.cfg.Network, b.cfg.Address))
	}
	defer conn.Close()

	go roundTrip(conn, Request{ParticipantID: participantID, Message: message, RequestID: id}, req.result)

	select {
	case res := <-req.result:
		if res.err != nil {
			return nil, id, fail(kindOf(res.err), id, res.err)
		}
		if !res.resp.Accepted(b.cfg.Prefix) {
			return nil, id, fail(ErrInvalidResponse, id, nil)
		}
		return res.resp, id, nil
	case <-ctx.Done():
		// Closing the session unblocks roundTrip; its result lands in the
		// buffered channel and is discarded.
		conn.Close()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, id, fail(ErrTimeout, id, ctx.Err())
		}
		return nil, id, fail(ErrTransport, id, ctx.Err())
	}
}

func roundTrip(conn net.Conn, req Request, out chan<- result) {
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		out <- result{err: errors.Wrap(err, "write request")}
		return
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		out <- result{err: errors.Wrap(err, "read response")}
		return
	}
	out <- result{resp: &resp}
}

// kindOf separates session failures from undecodable payloads.
func kindOf(err error) error {
	cause := errors.Cause(err)
	var netErr net.Error
	if cause == io.EOF || errors.As(cause, &netErr) {
		return ErrTransport
	}
	return ErrProtocol
}

// HealthCheck reports whether the authority accepts connections within the
// health timeout.
func (b *Bridge) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.HealthTimeout)
	defer cancel()

	conn, err := b.dialer.DialContext(ctx, b.cfg.Network, b.cfg.Address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Pending returns the number of in-flight requests.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Bridge) register(ctx context.Context, id string) *pendingRequest {
	deadline, _ := ctx.Deadline()
	req := &pendingRequest{id: id, deadline: deadline, result: make(chan result, 1)}

	b.mu.Lock()
	b.pending[id] = req
	b.mu.Unlock()
	return req
}

func (b *Bridge) remove(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// nextID returns tx_<unix ms>_<counter>_<8 hex>. The counter alone keeps ids
// unique for the life of the process.
func (b *Bridge) nextID() string {
	n := b.counter.Add(1)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("tx_%d_%d_%s", time.Now().UnixMilli(), n, suffix)
}
