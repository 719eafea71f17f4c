package worker

import (
	"log"
	"time"

	"github.com/deepl0w/movie-sync/internal/core"
)

// MonitorWorker polls the watchlist source, enqueues newly appearing
// movies and demotes movies that disappeared from the watchlist to the
// removed queue. It interacts with the other workers only through the
// store.
type MonitorWorker struct {
	lifecycle

	store      *core.Store
	source     core.WatchlistSource
	interval   time.Duration
	maxRetries int
}

func NewMonitorWorker(store *core.Store, source core.WatchlistSource, interval time.Duration, maxRetries int) *MonitorWorker {
	return &MonitorWorker{
		lifecycle:  newLifecycle(),
		store:      store,
		source:     source,
		interval:   interval,
		maxRetries: maxRetries,
	}
}

func (w *MonitorWorker) Start() {
	go w.run()
}

func (w *MonitorWorker) run() {
	defer close(w.doneCh)
	log.Printf("[monitor] started, checking watchlist every %s", w.interval)

	w.checkWatchlist()
	for {
		select {
		case <-w.stopCh:
			log.Printf("[monitor] stopped")
			return
		case <-time.After(w.interval):
			w.checkWatchlist()
		}
	}
}

// checkWatchlist runs one discovery pass. A failed or empty fetch skips
// the removal sweep entirely: a transient source outage must never mark
// the whole library as removed.
func (w *MonitorWorker) checkWatchlist() {
	items, err := w.source.Fetch()
	if err != nil {
		log.Printf("[monitor] watchlist fetch failed, skipping removal sweep: %v", err)
		return
	}
	if len(items) == 0 {
		log.Printf("[monitor] watchlist empty or unavailable, skipping removal sweep")
		return
	}

	currentIDs := make(map[string]bool, len(items))
	added := 0
	for _, item := range items {
		currentIDs[item.ID] = true

		ok, err := w.store.AddPending(item)
		if err != nil {
			log.Printf("[monitor] failed to persist %s: %v", item.Title, err)
		}
		if ok {
			log.Printf("[monitor] queued %s (%s)", item.Title, item.Year)
			added++
		}
	}
	if added > 0 {
		log.Printf("[monitor] added %d new movie(s) from watchlist of %d", added, len(items))
	}

	moved, err := w.store.MarkRemoved(currentIDs)
	if err != nil {
		log.Printf("[monitor] removal sweep: %v", err)
	}
	if moved > 0 {
		log.Printf("[monitor] marked %d movie(s) as removed from watchlist", moved)
	}

	stats := w.store.Statistics(w.maxRetries)
	log.Printf("[monitor] queue status: %d pending, %d failed, %d completed, %d removed",
		stats.Pending, stats.Failed, stats.Completed, stats.Removed)
}
