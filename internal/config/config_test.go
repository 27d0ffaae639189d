package config

import (
	"testing"
	"time"
)

// TestDefaults verifies the defaults hold the documented tuning values
func TestDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Arena.Width != 1280 || cfg.Arena.Height != 720 {
		t.Errorf("Expected 1280x720 arena, got %dx%d", cfg.Arena.Width, cfg.Arena.Height)
	}
	if cfg.Battle.AbsorptionRate != 0.3 {
		t.Errorf("Expected absorption rate 0.3, got %f", cfg.Battle.AbsorptionRate)
	}
	if cfg.Battle.FreezeSpeedFactor != 0.12 {
		t.Errorf("Expected freeze factor 0.12, got %f", cfg.Battle.FreezeSpeedFactor)
	}
	if cfg.Battle.MinPairCooldown > cfg.Battle.BasePairCooldown {
		t.Error("Min pair cooldown should not exceed the base cooldown")
	}
	if cfg.Limits.KillFeedSize <= 0 {
		t.Error("Kill feed must hold at least one entry")
	}
}

// TestEnvOverrides verifies environment variables take precedence
func TestEnvOverrides(t *testing.T) {
	t.Setenv("ARENA_WIDTH", "800")
	t.Setenv("ARENA_FPS", "30")
	t.Setenv("BATTLE_ABSORPTION_RATE", "0.5")
	t.Setenv("BATTLE_SEED", "42")
	t.Setenv("PORTRAIT_TIMEOUT_MS", "250")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("SFX_ENABLED", "false")

	cfg := Load()

	if cfg.Arena.Width != 800 {
		t.Errorf("Expected width 800, got %d", cfg.Arena.Width)
	}
	if cfg.Arena.FPS != 30 {
		t.Errorf("Expected FPS 30, got %d", cfg.Arena.FPS)
	}
	if cfg.Battle.AbsorptionRate != 0.5 {
		t.Errorf("Expected absorption 0.5, got %f", cfg.Battle.AbsorptionRate)
	}
	if cfg.Battle.Seed != 42 {
		t.Errorf("Expected seed 42, got %d", cfg.Battle.Seed)
	}
	if cfg.Assets.PortraitTimeout != 250*time.Millisecond {
		t.Errorf("Expected 250ms timeout, got %v", cfg.Assets.PortraitTimeout)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.example" {
		t.Errorf("Unexpected CORS origins: %v", cfg.Server.CORSOrigins)
	}
	if cfg.Audio.Enabled {
		t.Error("Audio should be disabled by SFX_ENABLED=false")
	}
}

// TestInvalidEnvIgnored verifies malformed values fall back to defaults
func TestInvalidEnvIgnored(t *testing.T) {
	t.Setenv("ARENA_HEIGHT", "tall")
	t.Setenv("BATTLE_MIN_PARTICIPANTS", "1")

	cfg := Load()

	if cfg.Arena.Height != 720 {
		t.Errorf("Malformed height should keep default, got %d", cfg.Arena.Height)
	}
	if cfg.Battle.MinParticipants != 2 {
		t.Errorf("A single participant is never a valid minimum, got %d", cfg.Battle.MinParticipants)
	}
}
