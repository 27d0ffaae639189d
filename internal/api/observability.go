package api

import (
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marble-royale/internal/game"
)

// Metrics with bounded cardinality (no per-fighter labels)
var (
	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marble_frame_duration_seconds",
		Help:    "Time spent simulating one frame",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
	})

	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marble_ticks_total",
		Help: "Simulation ticks run by the frame loop",
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marble_render_duration_seconds",
		Help:    "Time spent rendering a frame image",
		Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	aliveFighters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marble_alive_fighters",
		Help: "Fighters still alive in the current battle",
	})

	marbleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marble_marbles",
		Help: "Marbles in the arena, clones included",
	})

	projectileCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marble_projectiles",
		Help: "Projectiles in flight",
	})

	particleCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marble_particles",
		Help: "Live particles",
	})

	// kind is an event type name, a closed set
	battleEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marble_battle_events_total",
		Help: "Battle events by kind",
	}, []string{"kind"})

	ultimatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marble_ultimates_total",
		Help: "Ultimates activated",
	})

	battlesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marble_battles_started_total",
		Help: "Battles created from a loaded roster",
	})

	battlesFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marble_battles_finished_total",
		Help: "Battles that produced a winner",
	})

	// reason: rate_limit, origin, auth, ws_total_limit, ws_ip_limit
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter, origin or auth check",
	}, []string{"reason"})

	// endpoint is the chi route pattern, not the raw URL
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket broadcasts sent",
	})
)

// GameMetrics feeds the battle gauges and counters. It is both the engine's
// frame observer and an event sink on the world.
type GameMetrics struct{}

// NewGameMetrics returns the collector; the metrics themselves are global.
func NewGameMetrics() *GameMetrics {
	return &GameMetrics{}
}

// ObserveFrame implements game.FrameObserver
func (GameMetrics) ObserveFrame(stats game.FrameStats) {
	frameDuration.Observe(stats.Duration.Seconds())
	ticksTotal.Add(float64(stats.Ticks))
	aliveFighters.Set(float64(stats.Alive))
	marbleCount.Set(float64(stats.Marbles))
	projectileCount.Set(float64(stats.Projectiles))
	particleCount.Set(float64(stats.Particles))
}

// Emit implements game.EventSink. It never drops.
func (GameMetrics) Emit(ev game.Event) bool {
	battleEvents.WithLabelValues(ev.Type.String()).Inc()
	switch ev.Type {
	case game.EventTypeStart:
		battlesStarted.Inc()
	case game.EventTypeUltimate:
		ultimatesTotal.Inc()
	case game.EventTypeFinish:
		battlesFinished.Inc()
	}
	return true
}

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // Loopback only unless ALLOW_DEBUG_EXTERNAL=true
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
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

// NewDebugHandler serves pprof, /metrics and /health.
func NewDebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the observability server in the background.
// Non-loopback addresses are forced back to 127.0.0.1:6060 unless
// ALLOW_DEBUG_EXTERNAL=true, since pprof can be used to load the process.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if !isLoopback(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Printf("⚠️ Debug server address %s forced to localhost", cfg.ListenAddr)
		cfg.ListenAddr = DefaultObservabilityConfig().ListenAddr
	}

	handler := NewDebugHandler(cfg)
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

// basicAuthMiddleware adds basic authentication to the handler
func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordRender records render timing for metrics
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// RecordConnectionRejected increments the rejection counter
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
