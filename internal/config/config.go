package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Storage  StorageConfig   `yaml:"storage"`
	Sync     SyncConfig      `yaml:"sync"`
	Cleanup  CleanupConfig   `yaml:"cleanup"`
	Webhooks []WebhookTarget `yaml:"webhooks"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// Timeouts are in seconds.
	ReadTimeout  int `yaml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout"`
}

type StorageConfig struct {
	StateDir      string `yaml:"state_dir"`
	HistoryDBPath string `yaml:"history_db_path"`
	DownloadDir   string `yaml:"download_directory"`
	TorrentDir    string `yaml:"torrent_directory"`
	WatchlistFile string `yaml:"watchlist_file"`
}

type SyncConfig struct {
	// CheckInterval is the watchlist poll interval in seconds.
	CheckInterval int `yaml:"check_interval"`
	// RetryInterval is the base backoff interval in seconds.
	RetryInterval     int     `yaml:"retry_interval"`
	MaxRetries        int     `yaml:"max_retries"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	// DownloadCommand is the external fetch command invoked per movie.
	// Placeholders {id}, {title}, {year} and {imdb_id} are substituted.
	DownloadCommand []string `yaml:"download_command"`
	// DownloadTimeout bounds one acquisition attempt, in seconds.
	DownloadTimeout int `yaml:"download_timeout"`
}

type CleanupConfig struct {
	EnableRemovalCleanup bool `yaml:"enable_removal_cleanup"`
	// RemovalGracePeriod is the delay in seconds between a movie entering
	// the removed queue and its eligibility for deletion.
	RemovalGracePeriod int `yaml:"removal_grace_period"`
	// CheckInterval is the reaper tick in seconds.
	CheckInterval int `yaml:"check_interval"`
	// CompletedRetentionDays prunes completed entries older than this.
	// Zero disables pruning.
	CompletedRetentionDays int `yaml:"completed_retention_days"`
}

type WebhookTarget struct {
	URL    string   `yaml:"url"`
	Secret string   `yaml:"secret"`
	Events []string `yaml:"events"`
}

// Wants reports whether the target subscribed to the given event.
// An empty event list subscribes to everything.
func (t WebhookTarget) Wants(event string) bool {
	if len(t.Events) == 0 {
		return true
	}
	for _, e := range t.Events {
		if e == event {
			return true
		}
	}
	return false
}

func defaults() *Config {
	home, _ := os.UserHomeDir()
	stateDir := filepath.Join(home, ".movie-sync")

	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Storage: StorageConfig{
			StateDir:      stateDir,
			HistoryDBPath: filepath.Join(stateDir, "history.db"),
			DownloadDir:   filepath.Join(home, "Downloads"),
			TorrentDir:    filepath.Join(stateDir, "torrents"),
			WatchlistFile: filepath.Join(stateDir, "watchlist.json"),
		},
		Sync: SyncConfig{
			CheckInterval:     3600,
			RetryInterval:     3600,
			MaxRetries:        5,
			BackoffMultiplier: 2.0,
			DownloadTimeout:   1800,
		},
		Cleanup: CleanupConfig{
			EnableRemovalCleanup:   false,
			RemovalGracePeriod:     604800,
			CheckInterval:          3600,
			CompletedRetentionDays: 0,
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MOVIESYNC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("MOVIESYNC_STATE_DIR"); v != "" {
		cfg.Storage.StateDir = v
	}

	if v := os.Getenv("MOVIESYNC_DOWNLOAD_DIR"); v != "" {
		cfg.Storage.DownloadDir = v
	}

	if v := os.Getenv("MOVIESYNC_CHECK_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.CheckInterval = n
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Storage.StateDir == "" {
		return fmt.Errorf("state directory is required")
	}

	if c.Storage.HistoryDBPath == "" {
		return fmt.Errorf("history database path is required")
	}

	if c.Sync.CheckInterval < 1 {
		return fmt.Errorf("check interval must be at least 1 second")
	}

	if c.Sync.RetryInterval < 1 {
		return fmt.Errorf("retry interval must be at least 1 second")
	}

	if c.Sync.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative")
	}

	if c.Sync.BackoffMultiplier < 1.0 {
		return fmt.Errorf("backoff multiplier must be at least 1.0, got %g", c.Sync.BackoffMultiplier)
	}

	if c.Sync.DownloadTimeout < 1 {
		return fmt.Errorf("download timeout must be at least 1 second")
	}

	if c.Cleanup.RemovalGracePeriod < 0 {
		return fmt.Errorf("removal grace period must be non-negative")
	}

	if c.Cleanup.CheckInterval < 1 {
		return fmt.Errorf("cleanup check interval must be at least 1 second")
	}

	if c.Cleanup.CompletedRetentionDays < 0 {
		return fmt.Errorf("completed retention days must be non-negative")
	}

	for i, w := range c.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("webhook %d: url is required", i)
		}
	}

	return nil
}
