package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deepl0w/movie-sync/internal/api"
	"github.com/deepl0w/movie-sync/internal/cleanup"
	"github.com/deepl0w/movie-sync/internal/config"
	"github.com/deepl0w/movie-sync/internal/core"
	"github.com/deepl0w/movie-sync/internal/db"
	"github.com/deepl0w/movie-sync/internal/downloader"
	"github.com/deepl0w/movie-sync/internal/watchlist"
	"github.com/deepl0w/movie-sync/internal/webhook"
	"github.com/deepl0w/movie-sync/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	showStats := flag.Bool("stats", false, "print queue statistics and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	store, err := core.NewStore(cfg.Storage.StateDir)
	if err != nil {
		log.Fatalf("failed to open queue store: %v", err)
	}

	if *showStats {
		printStats(store, cfg.Sync.MaxRetries)
		return
	}

	if len(cfg.Sync.DownloadCommand) == 0 {
		log.Fatal("sync.download_command is required")
	}

	database, err := db.Open(cfg.Storage.HistoryDBPath)
	if err != nil {
		log.Fatalf("failed to open history database: %v", err)
	}
	defer database.Close()
	store.SetRecorder(database)

	acquirer, err := downloader.NewExecService(cfg.Sync.DownloadCommand,
		time.Duration(cfg.Sync.DownloadTimeout)*time.Second)
	if err != nil {
		log.Fatalf("invalid download command: %v", err)
	}
	source := watchlist.NewFileSource(cfg.Storage.WatchlistFile)
	cleaner := cleanup.NewService(cfg.Storage.DownloadDir, cfg.Storage.TorrentDir, nil)

	var notifier worker.Notifier
	var sender *webhook.Sender
	if len(cfg.Webhooks) > 0 {
		sender = webhook.NewSender(webhook.Config{Targets: cfg.Webhooks})
		sender.Start()
		notifier = sender
	}

	policy := core.RetryPolicy{
		BaseInterval: time.Duration(cfg.Sync.RetryInterval) * time.Second,
		Multiplier:   cfg.Sync.BackoffMultiplier,
	}

	monitor := worker.NewMonitorWorker(store, source,
		time.Duration(cfg.Sync.CheckInterval)*time.Second, cfg.Sync.MaxRetries)

	download := worker.NewDownloadWorker(store, acquirer, worker.DownloadConfig{
		MaxRetries: cfg.Sync.MaxRetries,
		Policy:     policy,
	})
	download.SetLibrary(cleaner)
	if notifier != nil {
		download.SetNotifier(notifier)
	}

	reaper := worker.NewCleanupWorker(store, cleaner, worker.CleanupConfig{
		Enabled:            cfg.Cleanup.EnableRemovalCleanup,
		Interval:           time.Duration(cfg.Cleanup.CheckInterval) * time.Second,
		GracePeriod:        time.Duration(cfg.Cleanup.RemovalGracePeriod) * time.Second,
		CompletedRetention: time.Duration(cfg.Cleanup.CompletedRetentionDays) * 24 * time.Hour,
	})
	if notifier != nil {
		reaper.SetNotifier(notifier)
	}

	monitor.Start()
	download.Start()
	reaper.Start()

	router, err := api.NewRouter(store, database, cleaner, cfg.Sync.MaxRetries)
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("[server] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	monitor.Stop()
	download.Stop()
	reaper.Stop()
	waitBounded(shutdownTimeout, monitor.Done(), download.Done(), reaper.Done())

	if sender != nil {
		sender.Stop()
	}

	printStats(store, cfg.Sync.MaxRetries)
	log.Print("shutdown complete")
}

// waitBounded waits for every channel to close, giving up after the
// timeout so a wedged worker cannot hang shutdown.
func waitBounded(timeout time.Duration, chans ...<-chan struct{}) {
	deadline := time.After(timeout)
	for _, ch := range chans {
		select {
		case <-ch:
		case <-deadline:
			log.Print("timed out waiting for workers to stop")
			return
		}
	}
}

func printStats(store *core.Store, maxRetries int) {
	stats := store.Statistics(maxRetries)
	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode statistics: %v", err)
	}
	fmt.Println(string(out))
}
