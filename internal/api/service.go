package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/yasserelgammal/rate-limiter/limiter"
	rlstore "github.com/yasserelgammal/rate-limiter/store"

	"xyron.node/xyn/internal/bridge"
	"xyron.node/xyn/internal/index"
	"xyron.node/xyn/internal/logger"
	"xyron.node/xyn/internal/types"
)

// Authority is the validation round trip to the signature authority.
type Authority interface {
	Validate(ctx context.Context, participantID, message string) (*bridge.Response, error)
	HealthCheck(ctx context.Context) bool
}

// Ledger is the part of the ledger engine the API exposes.
type Ledger interface {
	Admit(participant, message, signature string) types.AdmitOutcome
	Stats() types.Stats
	History(limit int) ([]types.Block, error)
	BlockAt(height uint64) (types.Block, error)
}

// Heartbeat reports scheduler status.
type Heartbeat interface {
	Status() types.HeartbeatStatus
}

// Participants looks up indexed participant history.
type Participants interface {
	Participant(id string) (index.ParticipantSummary, error)
}

// Observer receives request-level metrics.
type Observer interface {
	ObserveAdmission(types.AdmitOutcome)
	ObserveHTTP(route string, code int)
}

// Options tune request validation.
type Options struct {
	MinWalletLen       int
	MaxMessageLen      int
	RateLimitPerMinute int
	RateLimitBurst     int
}

// Service handles API requests
type Service struct {
	ledger       Ledger
	authority    Authority
	heartbeat    Heartbeat
	participants Participants
	observer     Observer
	logger       *logger.Logger
	opts         Options
	limiter      *limiter.TokenBucket
	started      time.Time
}

// NewService creates a new API service. participants and observer may be nil.
func NewService(ledger Ledger, authority Authority, heartbeat Heartbeat, participants Participants, observer Observer, l *logger.Logger, opts Options) *Service {
	if opts.MinWalletLen <= 0 {
		opts.MinWalletLen = 10
	}
	if opts.MaxMessageLen <= 0 {
		opts.MaxMessageLen = 160
	}

	s := &Service{
		ledger:       ledger,
		authority:    authority,
		heartbeat:    heartbeat,
		participants: participants,
		observer:     observer,
		logger:       l,
		opts:         opts,
		started:      time.Now(),
	}

	if opts.RateLimitPerMinute > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = opts.RateLimitPerMinute
		}
		s.limiter, _ = limiter.NewTokenBucket(
			limiter.Config{
				Rate:     int64(opts.RateLimitPerMinute),
				Duration: time.Minute,
				Burst:    int64(burst),
			},
			rlstore.NewMemoryStore(time.Minute),
		)
	}
	return s
}

// Middleware tags every response with an X-Request-ID and counts it.
func (s *Service) Middleware(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		if s.observer != nil {
			s.observer.ObserveHTTP(route, rec.status)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// allow reports whether key may make another rate-limited request.
func (s *Service) allow(key string) bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow(key)
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response carrying a status tag
func (s *Service) writeError(w http.ResponseWriter, status int, message, pip string) {
	s.writeJSON(w, status, map[string]string{"status": "error", "message": message, "pip": pip})
}
