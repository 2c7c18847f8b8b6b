package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Listen != ":8090" {
		t.Errorf("Listen = %q, want :8090", cfg.Listen)
	}
	if cfg.MaxBodyBytes != 1_000_000 {
		t.Errorf("MaxBodyBytes = %d, want 1000000", cfg.MaxBodyBytes)
	}
	if cfg.HeartbeatSeconds != 15 {
		t.Errorf("HeartbeatSeconds = %d, want 15", cfg.HeartbeatSeconds)
	}
	if cfg.SubscriberBuffer != 16 {
		t.Errorf("SubscriberBuffer = %d, want 16", cfg.SubscriberBuffer)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "goosd.yaml")
	data := `
listen: ":9999"
heartbeat_seconds: 5
retention:
  event_logs_days: 3
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Listen != ":9999" {
		t.Errorf("Listen = %q, want :9999", cfg.Listen)
	}
	if cfg.HeartbeatSeconds != 5 {
		t.Errorf("HeartbeatSeconds = %d, want 5", cfg.HeartbeatSeconds)
	}
	if cfg.Retention.EventLogsDays != 3 {
		t.Errorf("EventLogsDays = %d, want 3", cfg.Retention.EventLogsDays)
	}
	// Unset fields keep defaults.
	if cfg.MaxBodyBytes != 1_000_000 {
		t.Errorf("MaxBodyBytes = %d, want default", cfg.MaxBodyBytes)
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("listen: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }},
		{"zero body cap", func(c *Config) { c.MaxBodyBytes = 0 }},
		{"negative heartbeat", func(c *Config) { c.HeartbeatSeconds = -1 }},
		{"zero buffer", func(c *Config) { c.SubscriberBuffer = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestHeartbeatInterval(t *testing.T) {
	cfg := Config{HeartbeatSeconds: 15}
	if got := cfg.HeartbeatInterval(); got != 15*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 15s", got)
	}
}
