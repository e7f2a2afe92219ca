// Package metrics exposes Prometheus instrumentation for the node. Metrics
// implements ledger.Listener and bridge.Observer so it can be attached
// without the instrumented packages importing Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"xyron.node/xyn/internal/types"
)

const namespace = "xyn"

// Metrics holds the node's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Height          prometheus.Gauge
	Supply          prometheus.Gauge
	HalvingEpoch    prometheus.Gauge
	BlocksMinted    *prometheus.CounterVec
	Participants    prometheus.Histogram
	MessagesMinted  prometheus.Counter
	AuthorityCalls  *prometheus.CounterVec
	AuthorityTiming prometheus.Histogram
	Admissions      *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Height: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ledger_height", Help: "Committed block height.",
		}),
		Supply: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ledger_supply", Help: "Tokens minted so far.",
		}),
		HalvingEpoch: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "ledger_halving_epoch", Help: "Last observed halving epoch.",
		}),
		BlocksMinted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "blocks_minted_total", Help: "Blocks minted, by activity.",
		}, []string{"activity"}),
		Participants: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "block_participants", Help: "Participants per minted block.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
		MessagesMinted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_minted_total", Help: "Messages inscribed into blocks.",
		}),
		AuthorityCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "authority_requests_total", Help: "Authority validation requests, by outcome.",
		}, []string{"outcome"}),
		AuthorityTiming: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "authority_request_seconds", Help: "Authority round-trip latency.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		Admissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "admissions_total", Help: "Ledger admissions, by result.",
		}, []string{"result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests, by route and status.",
		}, []string{"route", "code"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetState primes the ledger gauges, typically at startup.
func (m *Metrics) SetState(st types.LedgerState) {
	m.Height.Set(float64(st.Height))
	m.Supply.Set(st.Supply.Float64())
	m.HalvingEpoch.Set(float64(st.LastHalvingEpoch))
}

// BlockMinted implements ledger.Listener.
func (m *Metrics) BlockMinted(b types.Block) {
	activity := "idle"
	if b.Header.HadActivity {
		activity = "active"
	}
	m.BlocksMinted.WithLabelValues(activity).Inc()
	m.Height.Set(float64(b.Header.Height))
	m.Supply.Set(b.Header.Supply.Float64())
	m.Participants.Observe(float64(b.Header.ParticipantCount))
	m.MessagesMinted.Add(float64(b.Vault.MessageCount))
}

// HalvingReached implements ledger.Listener.
func (m *Metrics) HalvingReached(ev types.HalvingEvent) {
	m.HalvingEpoch.Set(float64(ev.ToEpoch))
}

// ObserveAuthorityRequest implements bridge.Observer.
func (m *Metrics) ObserveAuthorityRequest(outcome string, elapsed time.Duration) {
	m.AuthorityCalls.WithLabelValues(outcome).Inc()
	m.AuthorityTiming.Observe(elapsed.Seconds())
}

// ObserveAdmission counts an admit outcome.
func (m *Metrics) ObserveAdmission(out types.AdmitOutcome) {
	result := "admitted"
	if !out.Admitted {
		result = "rejected"
	}
	m.Admissions.WithLabelValues(result).Inc()
}

// ObserveHTTP counts a served request.
func (m *Metrics) ObserveHTTP(route string, code int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
