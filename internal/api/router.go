package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"marble-royale/internal/game"
	"marble-royale/internal/roster"
	"marble-royale/internal/session"
)

// BattleService is the part of the session the API drives.
// *session.Session implements it; tests use a mock.
type BattleService interface {
	Start(ctx context.Context, ids []string) error
	Stop() error
	Skip() (string, error)
	SetSpeed(n int) (int, error)
	Status() session.Status
	Snapshot() (*game.Snapshot, error)
	Events(since uint64) ([]game.Event, error)
	Standings() ([]game.StandingEntry, error)
	FramePNG() ([]byte, error)
	AudioWAV(d time.Duration) ([]byte, error)
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Battle: mockBattle,
//	    RateLimitConfig: &api.RateLimitConfig{
//	        RequestsPerSecond: 1000, // High limit for tests
//	        Burst:             1000,
//	    },
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Battle is the session (required)
	Battle BattleService

	// Roster lists the selectable fighters. Optional; /api/roster is
	// empty without it.
	Roster roster.Lister

	// Admin guards the battle controls. Nil or an empty token leaves them open.
	Admin *AdminGuard

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *IPRateLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins defaults to DefaultOrigins.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the dependencies of the handler functions.
type routerHandlers struct {
	battle BattleService
	roster roster.Lister
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// It has no side effects beyond creating a rate limiter when none is
// given: no listeners are opened, so it is safe with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if len(corsOrigins) == 0 {
		corsOrigins = DefaultOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	h := &routerHandlers{
		battle: cfg.Battle,
		roster: cfg.Roster,
	}
	admin := cfg.Admin
	if admin == nil {
		admin = NewAdminGuard("")
	}

	r.Route("/api", func(r chi.Router) {
		// Battle state
		r.Get("/battle", h.handleGetBattle)
		r.Get("/battle/snapshot", h.handleGetSnapshot)
		r.Get("/battle/events", h.handleGetEvents)
		r.Get("/battle/standings", h.handleGetStandings)
		r.Get("/battle/frame.png", h.handleGetFrame)
		r.Get("/battle/audio.wav", h.handleGetAudio)

		// Battle controls
		r.Group(func(r chi.Router) {
			r.Use(admin.Middleware)
			r.Post("/battle", h.handleStartBattle)
			r.Post("/battle/speed", h.handleSetSpeed)
			r.Post("/battle/skip", h.handleSkip)
			r.Post("/battle/stop", h.handleStop)
		})

		// Catalog
		r.Get("/roster", h.handleGetRoster)
		r.Get("/skills", h.handleGetSkills)

		// Operator login
		r.Post("/admin/login", admin.HandleLogin)
		r.Post("/admin/logout", admin.HandleLogout)
		r.Get("/admin/status", admin.HandleStatus)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/api/battle", http.StatusFound)
	})

	return r
}

// metricsMiddleware records latency per route pattern so raw URLs never
// become label values.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
