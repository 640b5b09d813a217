package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.WindowSize != 300*time.Second {
		t.Errorf("expected 300s window, got %v", cfg.WindowSize)
	}
	if cfg.DecayHalfLife != 120*time.Second {
		t.Errorf("expected 120s half-life, got %v", cfg.DecayHalfLife)
	}
	if cfg.MaxPositionSizePct != 10 {
		t.Errorf("expected 10%% max position size, got %v", cfg.MaxPositionSizePct)
	}
	if cfg.InitialCapital != 1000 {
		t.Errorf("expected 1000 initial capital, got %v", cfg.InitialCapital)
	}
	if cfg.TickInterval != 30*time.Second {
		t.Errorf("expected 30s tick interval, got %v", cfg.TickInterval)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MAX_DAILY_LOSS_PCT", "2.5")
	t.Setenv("TRACKED_TOKENS", "tokenA, tokenB ,tokenC")
	t.Setenv("TICK_INTERVAL_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.MaxDailyLossPct != 2.5 {
		t.Errorf("expected 2.5, got %v", cfg.MaxDailyLossPct)
	}
	if len(cfg.TrackedTokens) != 3 || cfg.TrackedTokens[1] != "tokenB" {
		t.Errorf("expected trimmed 3-token list, got %v", cfg.TrackedTokens)
	}
	if cfg.TickInterval != 5*time.Second {
		t.Errorf("expected 5s tick interval, got %v", cfg.TickInterval)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  string
	}{
		{"decay rate of one", "DECAY_RATE", "1"},
		{"negative slippage", "SLIPPAGE_PCT", "-1"},
		{"zero capital", "INITIAL_CAPITAL", "0"},
		{"oversized position limit", "MAX_POSITION_SIZE_PCT", "150"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := Load(); err == nil {
				t.Errorf("expected validation error for %s=%s", tc.key, tc.val)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	if got := maskSecret(""); got != "(not set)" {
		t.Errorf("expected (not set), got %q", got)
	}
	if got := maskSecret("short"); got != "****" {
		t.Errorf("expected ****, got %q", got)
	}
	if got := maskSecret("abcd1234efgh5678"); got != "abcd****5678" {
		t.Errorf("expected abcd****5678, got %q", got)
	}
}
