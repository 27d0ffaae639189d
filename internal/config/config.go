// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for arena, battle and server settings.
//
// IMPORTANT: When changing tuning values, only modify this file.
// All other parts of the codebase should reference these values.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// ArenaConfig holds the simulated arena dimensions and the frame callback rate.
// The render pipeline uses the same values for its canvas.
type ArenaConfig struct {
	Width  int // Arena width in pixels
	Height int // Arena height in pixels
	FPS    int // Frame callbacks per second (ticks per frame = speed multiplier)
}

// DefaultArena returns the default arena configuration.
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		Width:  1280,
		Height: 720,
		FPS:    60,
	}
}

// ArenaFromEnv returns arena configuration with environment variable overrides.
func ArenaFromEnv() ArenaConfig {
	cfg := DefaultArena()

	if w := getEnvInt("ARENA_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("ARENA_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	if fps := getEnvInt("ARENA_FPS", 0); fps > 0 {
		cfg.FPS = fps
	}

	return cfg
}

// =============================================================================
// BATTLE TUNING
// =============================================================================

// BattleConfig holds the balance knobs of the simulation core.
type BattleConfig struct {
	AbsorptionRate     float64 // Fraction of victim maxHp granted to the killer
	SpeedMultiplier    int     // Ticks per frame at normal speed
	MaxSpeedMultiplier int     // Upper bound accepted from the UI
	FastForwardCap     int     // Hard tick cap for the skip-to-end loop
	MinParticipants    int     // Fewer fighters than this aborts the battle
	Seed               int64   // 0 = time based

	SlowMoStride int // One tick every N frames while slow-mo is active
	SlowMoFrames int // Slow-mo window length in frames
	CutInFrames  int // Full-freeze cinematic length in frames

	BasePairCooldown  int     // Ticks between damage exchanges of one ordered pair
	MinPairCooldown   int     // Floor for the shrinking pair cooldown
	FreezeSpeedFactor float64 // Deep-freeze speed cap as a fraction of the unbuffed cap
	MaxRadiusFraction float64 // Largest marble radius as a fraction of min(width, height)
}

// DefaultBattle returns the default battle tuning.
func DefaultBattle() BattleConfig {
	return BattleConfig{
		AbsorptionRate:     0.3,
		SpeedMultiplier:    1,
		MaxSpeedMultiplier: 8,
		FastForwardCap:     200_000,
		MinParticipants:    2,
		SlowMoStride:       3,
		SlowMoFrames:       45,
		CutInFrames:        75,
		BasePairCooldown:   24,
		MinPairCooldown:    6,
		FreezeSpeedFactor:  0.12,
		MaxRadiusFraction:  0.18,
	}
}

// BattleFromEnv returns battle tuning with environment variable overrides.
func BattleFromEnv() BattleConfig {
	cfg := DefaultBattle()

	if v := getEnvFloat("BATTLE_ABSORPTION_RATE", -1); v >= 0 {
		cfg.AbsorptionRate = v
	}
	if v := getEnvInt("BATTLE_SPEED", 0); v > 0 {
		cfg.SpeedMultiplier = v
	}
	if v := getEnvInt("BATTLE_FAST_FORWARD_CAP", 0); v > 0 {
		cfg.FastForwardCap = v
	}
	if v := getEnvInt("BATTLE_MIN_PARTICIPANTS", 0); v > 1 {
		cfg.MinParticipants = v
	}
	if v := getEnvInt("BATTLE_SEED", 0); v != 0 {
		cfg.Seed = int64(v)
	}
	if v := getEnvInt("BATTLE_CUTIN_FRAMES", 0); v > 0 {
		cfg.CutInFrames = v
	}

	return cfg
}

// =============================================================================
// RESOURCE LIMITS
// =============================================================================

// ResourceLimits caps the ephemeral queues so a runaway effect can't grow them.
type ResourceLimits struct {
	MaxMarbles      int // Fighters plus summoned clones
	MaxProjectiles  int
	MaxParticles    int
	MaxRings        int
	MaxTexts        int
	MaxSlashes      int
	MaxEventHistory int // In-memory battle log length
	KillFeedSize    int // Rolling kill banner queue
}

// DefaultLimits returns the default resource limits.
func DefaultLimits() ResourceLimits {
	return ResourceLimits{
		MaxMarbles:      64,
		MaxProjectiles:  64,
		MaxParticles:    400,
		MaxRings:        24,
		MaxTexts:        48,
		MaxSlashes:      24,
		MaxEventHistory: 512,
		KillFeedSize:    5,
	}
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int
	DebugAddr    string
	CORSOrigins  []string
	EventLogPath string
	AdminToken   string // Empty leaves battle controls open
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:         3000,
		DebugAddr:    "127.0.0.1:6060",
		EventLogPath: "battle-events.jsonl",
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	cfg.EventLogPath = getEnvString("EVENT_LOG_PATH", cfg.EventLogPath)
	cfg.DebugAddr = getEnvString("DEBUG_ADDR", cfg.DebugAddr)
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	return cfg
}

// =============================================================================
// ASSET CONFIGURATION
// =============================================================================

// AssetConfig controls portrait preloading and the sound cue bank.
type AssetConfig struct {
	PortraitTimeout      time.Duration
	MaxConcurrentFetches int
	PortraitSize         int // Decoded portraits are cropped to this diameter
	SoundDir             string
	FontPath             string // Optional TTF; system fonts then the bundled face otherwise
}

// DefaultAssets returns the default asset configuration.
func DefaultAssets() AssetConfig {
	return AssetConfig{
		PortraitTimeout:      5 * time.Second,
		MaxConcurrentFetches: 4,
		PortraitSize:         128,
		SoundDir:             "assets/sfx",
	}
}

// AssetsFromEnv returns asset configuration with environment variable overrides.
func AssetsFromEnv() AssetConfig {
	cfg := DefaultAssets()

	if v := getEnvInt("PORTRAIT_TIMEOUT_MS", 0); v > 0 {
		cfg.PortraitTimeout = time.Duration(v) * time.Millisecond
	}
	if v := getEnvInt("PORTRAIT_FETCHES", 0); v > 0 {
		cfg.MaxConcurrentFetches = v
	}
	cfg.SoundDir = getEnvString("SFX_DIR", cfg.SoundDir)
	cfg.FontPath = getEnvString("FONT_PATH", cfg.FontPath)

	return cfg
}

// =============================================================================
// ROSTER CONFIGURATION
// =============================================================================

// RosterConfig points at the source of fighter metrics.
type RosterConfig struct {
	Path         string // YAML roster file
	SourceURL    string // Optional HTTP metrics endpoint, "%s" is replaced by the id
	FetchTimeout time.Duration
}

// DefaultRoster returns the default roster configuration.
func DefaultRoster() RosterConfig {
	return RosterConfig{
		Path:         "roster.yaml",
		FetchTimeout: 8 * time.Second,
	}
}

// RosterFromEnv returns roster configuration with environment variable overrides.
func RosterFromEnv() RosterConfig {
	cfg := DefaultRoster()
	cfg.Path = getEnvString("ROSTER_PATH", cfg.Path)
	cfg.SourceURL = getEnvString("ROSTER_SOURCE_URL", cfg.SourceURL)
	return cfg
}

// =============================================================================
// AUDIO CONFIGURATION
// =============================================================================

// AudioConfig holds cue mixer settings.
type AudioConfig struct {
	SampleRate int     // Audio sample rate in Hz
	Volume     float64 // Master volume (0.0 to 1.0)
	Enabled    bool
}

// DefaultAudio returns the default audio configuration.
func DefaultAudio() AudioConfig {
	return AudioConfig{
		SampleRate: 44100,
		Volume:     0.3,
		Enabled:    true,
	}
}

// AudioFromEnv returns audio configuration with environment variable overrides.
func AudioFromEnv() AudioConfig {
	cfg := DefaultAudio()

	if v := getEnvFloat("SFX_VOLUME", -1); v >= 0 {
		cfg.Volume = v
	}
	if os.Getenv("SFX_ENABLED") == "false" {
		cfg.Enabled = false
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Arena  ArenaConfig
	Battle BattleConfig
	Limits ResourceLimits
	Server ServerConfig
	Assets AssetConfig
	Roster RosterConfig
	Audio  AudioConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Arena:  ArenaFromEnv(),
		Battle: BattleFromEnv(),
		Limits: DefaultLimits(),
		Server: ServerFromEnv(),
		Assets: AssetsFromEnv(),
		Roster: RosterFromEnv(),
		Audio:  AudioFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
