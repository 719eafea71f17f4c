package worker

import (
	"log"
	"time"

	"github.com/deepl0w/movie-sync/internal/core"
)

// DownloadConfig tunes the acquisition worker's loop.
type DownloadConfig struct {
	// PollInterval is the main pending-processing tick.
	PollInterval time.Duration
	// RetryScanInterval is the independent tick that promotes failed
	// movies whose backoff has elapsed.
	RetryScanInterval time.Duration
	MaxRetries        int
	Policy            core.RetryPolicy
}

// DownloadWorker consumes the pending queue, invokes the acquisition
// service, and records the outcome: completion on success, failure with
// a backoff retry time otherwise. It also periodically promotes failed
// movies that are ready for another attempt.
type DownloadWorker struct {
	lifecycle

	store    *core.Store
	acquirer core.AcquisitionService
	library  core.Library
	notifier Notifier
	cfg      DownloadConfig
}

func NewDownloadWorker(store *core.Store, acquirer core.AcquisitionService, cfg DownloadConfig) *DownloadWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.RetryScanInterval <= 0 {
		cfg.RetryScanInterval = 60 * time.Second
	}
	return &DownloadWorker{
		lifecycle: newLifecycle(),
		store:     store,
		acquirer:  acquirer,
		cfg:       cfg,
	}
}

// SetLibrary wires an optional local-content check: movies already
// present are completed without invoking the acquisition service.
func (w *DownloadWorker) SetLibrary(l core.Library) {
	w.library = l
}

// SetNotifier wires optional lifecycle notifications.
func (w *DownloadWorker) SetNotifier(n Notifier) {
	w.notifier = n
}

func (w *DownloadWorker) Start() {
	go w.run()
}

func (w *DownloadWorker) run() {
	defer close(w.doneCh)
	log.Printf("[download] started, polling every %s, retry scan every %s",
		w.cfg.PollInterval, w.cfg.RetryScanInterval)

	w.processPending()
	lastScan := time.Now()

	for {
		select {
		case <-w.stopCh:
			log.Printf("[download] stopped")
			return
		case <-time.After(w.cfg.PollInterval):
			w.processPending()
			if time.Since(lastScan) >= w.cfg.RetryScanInterval {
				w.processRetries()
				lastScan = time.Now()
			}
		}
	}
}

// processPending drains the pending queue one movie at a time. A
// skipped movie is re-appended to the tail so it keeps cycling without
// blocking the movies behind it; once every skipped movie has been seen
// this pass, processing stops for this tick.
func (w *DownloadWorker) processPending() {
	requeued := make(map[string]bool)

	for !w.stopping() {
		m, ok, err := w.store.NextPending()
		if err != nil {
			log.Printf("[download] %v", err)
		}
		if !ok {
			return
		}

		if m.Skipped {
			if err := w.store.RequeuePending(m); err != nil {
				log.Printf("[download] %v", err)
			}
			if requeued[m.ID] {
				return
			}
			requeued[m.ID] = true
			continue
		}

		w.process(m)
	}
}

// process runs one acquisition attempt. The store lock is never held
// across the collaborator call: the movie was popped beforehand and the
// outcome is committed afterwards.
func (w *DownloadWorker) process(m core.Movie) {
	if w.library != nil && w.library.Contains(m) {
		log.Printf("[download] %s (%s) already present, marking completed", m.Title, m.Year)
		if err := w.store.Complete(m); err != nil {
			log.Printf("[download] %v", err)
		}
		return
	}

	log.Printf("[download] processing %s (%s)", m.Title, m.Year)
	err := w.acquirer.Attempt(m)
	if err == nil {
		if serr := w.store.Complete(m); serr != nil {
			log.Printf("[download] %v", serr)
		}
		log.Printf("[download] completed %s", m.Title)
		if w.notifier != nil {
			w.notifier.JobCompleted(m)
		}
		return
	}

	attempt := m.RetryCount + 1
	retryAt := w.cfg.Policy.RetryAt(time.Now(), attempt)
	errMsg := err.Error()
	if attempt >= w.cfg.MaxRetries {
		log.Printf("[download] %s failed permanently after %d attempts: %v", m.Title, attempt, err)
	} else {
		log.Printf("[download] %s failed (attempt %d/%d), next retry at %s: %v",
			m.Title, attempt, w.cfg.MaxRetries, retryAt.Format(time.RFC3339), err)
	}

	if serr := w.store.Fail(m, errMsg, retryAt); serr != nil {
		log.Printf("[download] %v", serr)
	}
	if w.notifier != nil {
		w.notifier.JobFailed(m, errMsg, attempt)
	}
}

func (w *DownloadWorker) processRetries() {
	ready := w.store.ReadyForRetry(w.cfg.MaxRetries)
	if len(ready) == 0 {
		return
	}

	log.Printf("[download] promoting %d movie(s) ready for retry", len(ready))
	for _, m := range ready {
		if w.stopping() {
			return
		}
		if err := w.store.PromoteToPending(m); err != nil {
			log.Printf("[download] %v", err)
		}
	}
}
