package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/iwoov/shellmaster/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()
	if cfg.DefaultPort != 22 {
		t.Errorf("DefaultPort: got %d, want 22", cfg.DefaultPort)
	}
	if cfg.ConnectTimeout != 30*time.Second {
		t.Errorf("ConnectTimeout: got %v, want 30s", cfg.ConnectTimeout)
	}
	if cfg.ReconnectAttempts != 5 {
		t.Errorf("ReconnectAttempts: got %d, want 5", cfg.ReconnectAttempts)
	}
	if cfg.ParallelSFTPChannels != 4 {
		t.Errorf("ParallelSFTPChannels: got %d, want 4", cfg.ParallelSFTPChannels)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("SHELLMASTER_RECONNECT_ATTEMPTS", "9")
	defer os.Unsetenv("SHELLMASTER_RECONNECT_ATTEMPTS")

	cfg := config.Load()
	if cfg.ReconnectAttempts != 9 {
		t.Errorf("ReconnectAttempts: got %d, want 9", cfg.ReconnectAttempts)
	}
}
