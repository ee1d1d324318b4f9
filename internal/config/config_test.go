package config

import (
	"reflect"
	"testing"
	"time"
)

var configKeys = []string{
	"PORT", "LOG_LEVEL", "SYMBOLS",
	"EXPIRATION_INTERVAL", "WEBHOOK_TIMEOUT", "VWAP_WINDOW",
	"READ_TIMEOUT", "WRITE_TIMEOUT", "IDLE_TIMEOUT", "SHUTDOWN_TIMEOUT",
}

// clearEnv empties every config variable so a test starts from defaults.
// t.Setenv restores the prior values when the test finishes.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if !reflect.DeepEqual(cfg.Symbols, DefaultSymbols) {
		t.Errorf("Symbols = %v, want %v", cfg.Symbols, DefaultSymbols)
	}
	if cfg.ExpirationInterval != time.Second {
		t.Errorf("ExpirationInterval = %v, want 1s", cfg.ExpirationInterval)
	}
	if cfg.VWAPWindow != 5*time.Minute {
		t.Errorf("VWAPWindow = %v, want 5m", cfg.VWAPWindow)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SYMBOLS", "GOLDZ26, SILVH27 ,COPPM28")
	t.Setenv("EXPIRATION_INTERVAL", "250ms")
	t.Setenv("VWAP_WINDOW", "1m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %s, want debug", cfg.LogLevel)
	}
	want := []string{"GOLDZ26", "SILVH27", "COPPM28"}
	if !reflect.DeepEqual(cfg.Symbols, want) {
		t.Errorf("Symbols = %v, want %v", cfg.Symbols, want)
	}
	if cfg.ExpirationInterval != 250*time.Millisecond {
		t.Errorf("ExpirationInterval = %v, want 250ms", cfg.ExpirationInterval)
	}
	if cfg.VWAPWindow != time.Minute {
		t.Errorf("VWAPWindow = %v, want 1m", cfg.VWAPWindow)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad port", "PORT", "not-a-number"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad duration", "EXPIRATION_INTERVAL", "fast"},
		{"bad webhook timeout", "WEBHOOK_TIMEOUT", "5"},
		{"symbols all blank", "SYMBOLS", " , ,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("Load must fail with %s=%q", tt.key, tt.value)
			}
		})
	}
}
