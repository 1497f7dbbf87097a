package api

import (
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/racharron/abd/internal/config"
	"github.com/racharron/abd/internal/world"
)

// Metrics with bounded cardinality (labels are fixed enums only)
var (
	// World metrics
	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "abd_step_duration_seconds",
		Help:    "Time spent in one world step",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	stepAdvance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "abd_step_advance_ratio",
		Help:    "Simulated time advanced per step as a fraction of the step size",
		Buckets: []float64{0.01, 0.1, 0.25, 0.5, 0.75, 0.99, 1},
	})

	featureCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "abd_features",
		Help: "Features submitted to the broad phase",
	})

	candidatePairs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "abd_candidate_pairs",
		Help: "Candidate pairs found by the broad phase in the last step",
	})

	islandCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "abd_islands_interacting",
		Help: "Islands with at least one candidate pair in the last step",
	})

	contactsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "abd_contacts_total",
		Help: "Contacts reported by the narrow phase",
	})

	toiQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "abd_toi_queries_total",
		Help: "Time of impact queries by primitive pair",
	}, []string{"kind", "source"}) // Bounded: query kinds x {"world", "api"}

	// Event log metrics
	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_total",
		Help: "Total events logged",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_dropped_total",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // Loopback only unless ALLOW_DEBUG_EXTERNAL=true
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// ObservabilityFromConfig maps the debug configuration.
func ObservabilityFromConfig(cfg config.DebugConfig) ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:       cfg.Enabled,
		ListenAddr:    cfg.Addr,
		BasicAuthUser: cfg.User,
		BasicAuthPass: cfg.Password,
	}
}

// isLoopback reports whether addr binds to a loopback host.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// NewDebugMux builds the debug handler: pprof, /metrics and /health.
func NewDebugMux(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass, "debug")(mux)
	}
	return mux
}

// StartDebugServer starts the internal observability server
// CRITICAL: This MUST bind to loopback to prevent pprof-based DoS
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if !isLoopback(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Println("⚠️ Debug server forced to localhost for security")
		cfg.ListenAddr = config.DefaultDebug().Addr
	}

	handler := NewDebugMux(cfg)

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.ListenAndServe(cfg.ListenAddr, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}

// RecordStep records world step metrics. It is meant to be wired to
// world.World.OnStep.
func RecordStep(stats world.StepStats, stepSize float64) {
	stepDuration.Observe(stats.Duration.Seconds())
	if stepSize > 0 {
		stepAdvance.Observe(stats.Advanced / stepSize)
	}
	featureCount.Set(float64(stats.Features))
	candidatePairs.Set(float64(stats.Pairs))
	islandCount.Set(float64(stats.Interacting))
	contactsTotal.Add(float64(stats.Contacts))
	for kind, n := range stats.Queries {
		toiQueries.WithLabelValues(kind, "world").Add(float64(n))
	}
}

// RecordTOIQuery counts a query served by the HTTP API
func RecordTOIQuery(kind string) {
	toiQueries.WithLabelValues(kind, "api").Inc()
}

// eventLogSeen holds the last counters pushed to Prometheus.
var eventLogSeen struct {
	sync.Mutex
	total, dropped uint64
}

// UpdateEventLogStats advances the event log counters to the given totals
func UpdateEventLogStats(total, dropped uint64) {
	eventLogSeen.Lock()
	defer eventLogSeen.Unlock()

	if total > eventLogSeen.total {
		eventLogTotal.Add(float64(total - eventLogSeen.total))
		eventLogSeen.total = total
	}
	if dropped > eventLogSeen.dropped {
		eventLogDropped.Add(float64(dropped - eventLogSeen.dropped))
		eventLogSeen.dropped = dropped
	}
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}
