package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Sync.CheckInterval != 3600 {
		t.Errorf("check interval = %d, want 3600", cfg.Sync.CheckInterval)
	}
	if cfg.Sync.MaxRetries != 5 {
		t.Errorf("max retries = %d, want 5", cfg.Sync.MaxRetries)
	}
	if cfg.Sync.BackoffMultiplier != 2.0 {
		t.Errorf("backoff multiplier = %g, want 2.0", cfg.Sync.BackoffMultiplier)
	}
	if cfg.Cleanup.EnableRemovalCleanup {
		t.Error("removal cleanup enabled by default")
	}
	if cfg.Cleanup.RemovalGracePeriod != 604800 {
		t.Errorf("grace period = %d, want 604800", cfg.Cleanup.RemovalGracePeriod)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
sync:
  check_interval: 300
  max_retries: 3
  backoff_multiplier: 1.5
  download_command: ["/usr/local/bin/fetch", "{imdb_id}"]
  download_timeout: 900
cleanup:
  enable_removal_cleanup: true
  removal_grace_period: 86400
webhooks:
  - url: https://example.com/hook
    secret: hunter2
    events: [job_completed]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Sync.CheckInterval != 300 {
		t.Errorf("check interval = %d", cfg.Sync.CheckInterval)
	}
	if cfg.Sync.DownloadTimeout != 900 {
		t.Errorf("download timeout = %d", cfg.Sync.DownloadTimeout)
	}
	if len(cfg.Sync.DownloadCommand) != 2 || cfg.Sync.DownloadCommand[0] != "/usr/local/bin/fetch" {
		t.Errorf("download command = %v", cfg.Sync.DownloadCommand)
	}
	if !cfg.Cleanup.EnableRemovalCleanup || cfg.Cleanup.RemovalGracePeriod != 86400 {
		t.Errorf("cleanup = %+v", cfg.Cleanup)
	}
	if len(cfg.Webhooks) != 1 || cfg.Webhooks[0].Secret != "hunter2" {
		t.Errorf("webhooks = %+v", cfg.Webhooks)
	}

	// Unset fields keep their defaults.
	if cfg.Sync.RetryInterval != 3600 {
		t.Errorf("retry interval = %d, want default 3600", cfg.Sync.RetryInterval)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a mapping")

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MOVIESYNC_PORT", "7070")
	t.Setenv("MOVIESYNC_STATE_DIR", "/var/lib/movie-sync")
	t.Setenv("MOVIESYNC_CHECK_INTERVAL", "120")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Storage.StateDir != "/var/lib/movie-sync" {
		t.Errorf("state dir = %s", cfg.Storage.StateDir)
	}
	if cfg.Sync.CheckInterval != 120 {
		t.Errorf("check interval = %d", cfg.Sync.CheckInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"missing state dir", func(c *Config) { c.Storage.StateDir = "" }, "state directory"},
		{"zero check interval", func(c *Config) { c.Sync.CheckInterval = 0 }, "check interval"},
		{"negative retries", func(c *Config) { c.Sync.MaxRetries = -1 }, "max retries"},
		{"sub-1 multiplier", func(c *Config) { c.Sync.BackoffMultiplier = 0.5 }, "multiplier"},
		{"negative grace", func(c *Config) { c.Cleanup.RemovalGracePeriod = -1 }, "grace period"},
		{"webhook without url", func(c *Config) { c.Webhooks = []WebhookTarget{{Secret: "s"}} }, "url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWebhookTargetWants(t *testing.T) {
	all := WebhookTarget{URL: "https://example.com"}
	if !all.Wants("job_completed") {
		t.Error("empty event list should subscribe to everything")
	}

	filtered := WebhookTarget{URL: "https://example.com", Events: []string{"job_failed"}}
	if filtered.Wants("job_completed") || !filtered.Wants("job_failed") {
		t.Error("event filter not honored")
	}
}
