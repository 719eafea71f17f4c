package worker

import (
	"log"
	"strings"
	"time"

	"github.com/deepl0w/movie-sync/internal/core"
)

// CleanupConfig tunes the removal reaper.
type CleanupConfig struct {
	Enabled     bool
	Interval    time.Duration
	GracePeriod time.Duration
	// CompletedRetention prunes completed entries older than this.
	// Zero disables pruning.
	CompletedRetention time.Duration
}

// CleanupWorker reaps removed movies whose grace period has elapsed:
// it invokes the cleanup executor to delete downloaded artifacts, then
// purges the movie from the store. Disabled unless explicitly opted in.
type CleanupWorker struct {
	lifecycle

	store    *core.Store
	executor core.CleanupExecutor
	notifier Notifier
	cfg      CleanupConfig
}

func NewCleanupWorker(store *core.Store, executor core.CleanupExecutor, cfg CleanupConfig) *CleanupWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &CleanupWorker{
		lifecycle: newLifecycle(),
		store:     store,
		executor:  executor,
		cfg:       cfg,
	}
}

// SetNotifier wires optional lifecycle notifications.
func (w *CleanupWorker) SetNotifier(n Notifier) {
	w.notifier = n
}

func (w *CleanupWorker) Start() {
	go w.run()
}

func (w *CleanupWorker) run() {
	defer close(w.doneCh)

	if !w.cfg.Enabled {
		log.Printf("[cleanup] disabled, removed movies are kept indefinitely")
		<-w.stopCh
		return
	}

	log.Printf("[cleanup] started, checking every %s (grace period %s)", w.cfg.Interval, w.cfg.GracePeriod)
	for {
		select {
		case <-w.stopCh:
			log.Printf("[cleanup] stopped")
			return
		case <-time.After(w.cfg.Interval):
			w.sweep()
		}
	}
}

// sweep deletes every removed movie past its grace period and prunes
// old completed entries when retention is configured.
func (w *CleanupWorker) sweep() {
	for _, m := range w.store.ReadyForDeletion(w.cfg.GracePeriod) {
		if w.stopping() {
			return
		}

		res := w.executor.Cleanup(m)
		logCleanupResult(m, res)

		if _, err := w.store.Purge(m.ID); err != nil {
			log.Printf("[cleanup] %v", err)
		}
		if w.notifier != nil {
			w.notifier.JobPurged(m, res)
		}
	}

	if w.cfg.CompletedRetention > 0 {
		if _, err := w.store.PruneCompleted(w.cfg.CompletedRetention); err != nil {
			log.Printf("[cleanup] %v", err)
		}
	}
}

func logCleanupResult(m core.Movie, res core.CleanupResult) {
	var deleted []string
	if res.FilesDeleted {
		deleted = append(deleted, "files")
	}
	if res.TorrentDeleted {
		deleted = append(deleted, "torrent")
	}
	if res.ClientEntryRemoved {
		deleted = append(deleted, "client entry")
	}

	if len(deleted) > 0 {
		log.Printf("[cleanup] deleted %s for %s (%s)", strings.Join(deleted, ", "), m.Title, m.Year)
	} else {
		log.Printf("[cleanup] nothing on disk for %s (%s), purging entry", m.Title, m.Year)
	}
	for _, e := range res.Errors {
		log.Printf("[cleanup] %s: %s", m.Title, e)
	}
}
