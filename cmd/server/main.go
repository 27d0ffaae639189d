package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"marble-royale/internal/api"
	"marble-royale/internal/config"
	"marble-royale/internal/game"
	"marble-royale/internal/roster"
	"marble-royale/internal/session"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🎮 ================================")
	log.Println("🎮  MARBLE ROYALE")
	log.Println("🎮 ================================")

	appConfig := config.Load()
	serverCfg := appConfig.Server
	log.Printf("🎮 Config: %dx%d arena, %d FPS, at least %d fighters, %d marbles max",
		appConfig.Arena.Width, appConfig.Arena.Height, appConfig.Arena.FPS,
		appConfig.Battle.MinParticipants, appConfig.Limits.MaxMarbles)

	source, lister, err := buildRosterSource(appConfig.Roster)
	if err != nil {
		log.Fatalf("❌ No roster source: %v", err)
	}

	// Start debug server
	debugCfg := api.DefaultObservabilityConfig()
	debugCfg.ListenAddr = serverCfg.DebugAddr
	debugCfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	debugCfg.BasicAuthPass = os.Getenv("DEBUG_PASS")
	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		if err := api.StartDebugServer(debugCfg); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	metrics := api.NewGameMetrics()

	// server is set before any battle starts. Broadcast never blocks, so it
	// is safe under the engine lock.
	var server *api.Server
	sess := session.New(session.Config{
		App:      appConfig,
		Source:   source,
		Observer: metrics,
		Sinks:    []game.EventSink{metrics},
		OnFinish: func(winnerID, winnerName string) {
			log.Printf("🏆 %s (%s) wins", winnerName, winnerID)
			if server != nil {
				server.Hub().Broadcast("battle:finish", map[string]string{
					"winnerId":   winnerID,
					"winnerName": winnerName,
				})
			}
		},
	})

	admin := api.NewAdminGuard(serverCfg.AdminToken)
	if admin.Enabled() {
		log.Println("🔐 Battle controls require ADMIN_TOKEN")
	} else {
		log.Println("⚠️ Battle controls are open (set ADMIN_TOKEN to protect them)")
	}

	server = api.NewServer(api.RouterConfig{
		Battle:      sess,
		Roster:      lister,
		Admin:       admin,
		CORSOrigins: serverCfg.CORSOrigins,
	})

	// Optional battle at boot, in share-list form
	if share := os.Getenv("AUTOSTART"); share != "" {
		ids := roster.ParseShareList(share)
		ctx, cancel := context.WithTimeout(context.Background(), appConfig.Roster.FetchTimeout)
		if err := sess.Start(ctx, ids); err != nil {
			log.Printf("⚠️ Autostart failed: %s", session.UserMessage(err, appConfig.Battle.MinParticipants))
		}
		cancel()
	}

	addr := ":" + strconv.Itoa(serverCfg.Port)
	go func() {
		log.Printf("🌐 API server on http://localhost%s", addr)
		log.Printf("📱 Battle feed: ws://localhost%s/ws", addr)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ Shutdown: %v", err)
	}
	sess.Close()
	log.Println("👋 Goodbye!")
}

// buildRosterSource chains the YAML roster in front of the optional HTTP
// metrics endpoint. At least one of them must be configured.
func buildRosterSource(cfg config.RosterConfig) (roster.Source, roster.Lister, error) {
	var chain roster.Chain

	if cfg.Path != "" {
		fs, err := roster.NewFileSource(cfg.Path)
		switch {
		case err == nil:
			chain = append(chain, fs)
			log.Printf("📋 Roster file: %s", cfg.Path)
		case errors.Is(err, os.ErrNotExist) && cfg.SourceURL != "":
			log.Printf("💡 Roster file %s not found, using %s only", cfg.Path, cfg.SourceURL)
		default:
			return nil, nil, err
		}
	}
	if cfg.SourceURL != "" {
		chain = append(chain, roster.NewHTTPSource(cfg.SourceURL, cfg.FetchTimeout))
		log.Printf("📡 Metrics endpoint: %s", cfg.SourceURL)
	}

	if len(chain) == 0 {
		return nil, nil, errors.New("set ROSTER_PATH or ROSTER_SOURCE_URL")
	}
	return chain, chain, nil
}
