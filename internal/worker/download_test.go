package worker

import (
	"errors"
	"testing"
	"time"

	"github.com/deepl0w/movie-sync/internal/core"
)

type fakeAcquirer struct {
	attempts []string
	errs     map[string]error
}

func (f *fakeAcquirer) Attempt(m core.Movie) error {
	f.attempts = append(f.attempts, m.ID)
	return f.errs[m.ID]
}

type fakeLibrary struct {
	present map[string]bool
}

func (f *fakeLibrary) Contains(m core.Movie) bool {
	return f.present[m.ID]
}

type recordingNotifier struct {
	completed []string
	failed    []string
	purged    []string
}

func (n *recordingNotifier) JobCompleted(m core.Movie) { n.completed = append(n.completed, m.ID) }
func (n *recordingNotifier) JobFailed(m core.Movie, errMsg string, retryCount int) {
	n.failed = append(n.failed, m.ID)
}
func (n *recordingNotifier) JobPurged(m core.Movie, res core.CleanupResult) {
	n.purged = append(n.purged, m.ID)
}

func downloadWorker(store *core.Store, acquirer core.AcquisitionService) *DownloadWorker {
	return NewDownloadWorker(store, acquirer, DownloadConfig{
		MaxRetries: 5,
		Policy:     core.RetryPolicy{BaseInterval: time.Hour, Multiplier: 2.0},
	})
}

func TestDownloadSuccessCompletes(t *testing.T) {
	store := newWorkerStore(t)
	mustAddPending(t, store, core.Movie{ID: "m1", Title: "Stalker"})

	acquirer := &fakeAcquirer{}
	notifier := &recordingNotifier{}
	w := downloadWorker(store, acquirer)
	w.SetNotifier(notifier)

	w.processPending()

	completed, _ := store.Queue(core.QueueCompleted)
	if len(completed) != 1 || completed[0].ID != "m1" {
		t.Fatalf("completed = %v, want [m1]", completed)
	}
	if completed[0].CompletedAt == 0 {
		t.Error("CompletedAt not set")
	}
	if len(notifier.completed) != 1 || notifier.completed[0] != "m1" {
		t.Errorf("notified = %v, want [m1]", notifier.completed)
	}
}

func TestDownloadFailureSchedulesRetry(t *testing.T) {
	store := newWorkerStore(t)
	mustAddPending(t, store, core.Movie{ID: "m1", Title: "Stalker"})

	acquirer := &fakeAcquirer{errs: map[string]error{"m1": errors.New("no source found")}}
	notifier := &recordingNotifier{}
	w := downloadWorker(store, acquirer)
	w.SetNotifier(notifier)

	before := time.Now()
	w.processPending()

	failed, _ := store.Queue(core.QueueFailed)
	if len(failed) != 1 {
		t.Fatalf("failed = %v, want one movie", failed)
	}
	m := failed[0]
	if m.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", m.RetryCount)
	}
	if m.LastError != "no source found" {
		t.Errorf("LastError = %q", m.LastError)
	}

	// First failure backs off by exactly the base interval.
	wantRetry := before.Add(time.Hour).Unix()
	if m.RetryAfter < wantRetry || m.RetryAfter > wantRetry+5 {
		t.Errorf("RetryAfter = %d, want ~%d", m.RetryAfter, wantRetry)
	}
	if len(notifier.failed) != 1 {
		t.Errorf("failure notifications = %v, want one", notifier.failed)
	}
}

func TestDownloadLibraryHitSkipsAcquisition(t *testing.T) {
	store := newWorkerStore(t)
	mustAddPending(t, store, core.Movie{ID: "m1", Title: "Stalker"})

	acquirer := &fakeAcquirer{}
	w := downloadWorker(store, acquirer)
	w.SetLibrary(&fakeLibrary{present: map[string]bool{"m1": true}})

	w.processPending()

	if len(acquirer.attempts) != 0 {
		t.Errorf("attempts = %v, want none", acquirer.attempts)
	}
	completed, _ := store.Queue(core.QueueCompleted)
	if len(completed) != 1 || completed[0].ID != "m1" {
		t.Errorf("completed = %v, want [m1]", completed)
	}
}

func TestDownloadSkippedMovieCyclesToTail(t *testing.T) {
	store := newWorkerStore(t)
	mustAddPending(t, store, core.Movie{ID: "skip", Title: "Mirror", Skipped: true})
	mustAddPending(t, store, core.Movie{ID: "m2", Title: "Solaris"})

	acquirer := &fakeAcquirer{}
	w := downloadWorker(store, acquirer)
	w.processPending()

	// The movie behind the skipped one was processed.
	if len(acquirer.attempts) != 1 || acquirer.attempts[0] != "m2" {
		t.Errorf("attempts = %v, want [m2]", acquirer.attempts)
	}
	// The skipped movie stays pending.
	if got := pendingIDs(t, store); len(got) != 1 || got[0] != "skip" {
		t.Errorf("pending = %v, want [skip]", got)
	}
}

func TestDownloadAllSkippedEndsPass(t *testing.T) {
	store := newWorkerStore(t)
	mustAddPending(t, store, core.Movie{ID: "s1", Skipped: true})
	mustAddPending(t, store, core.Movie{ID: "s2", Skipped: true})

	acquirer := &fakeAcquirer{}
	w := downloadWorker(store, acquirer)
	w.processPending()

	if len(acquirer.attempts) != 0 {
		t.Errorf("attempts = %v, want none", acquirer.attempts)
	}
	if got := pendingIDs(t, store); len(got) != 2 {
		t.Errorf("pending = %v, want both skipped movies", got)
	}
}

func TestDownloadRetryPromotion(t *testing.T) {
	store := newWorkerStore(t)
	if err := store.Fail(core.Movie{ID: "m1", Title: "Stalker"}, "boom", time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	acquirer := &fakeAcquirer{}
	w := downloadWorker(store, acquirer)
	w.processRetries()

	if got := pendingIDs(t, store); len(got) != 1 || got[0] != "m1" {
		t.Errorf("pending = %v, want [m1]", got)
	}
	if failed, _ := store.Queue(core.QueueFailed); len(failed) != 0 {
		t.Errorf("failed = %v, want empty", failed)
	}
}

func TestDownloadRetryPreservesCount(t *testing.T) {
	store := newWorkerStore(t)
	if err := store.Fail(core.Movie{ID: "m1", Title: "Stalker"}, "boom", time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	acquirer := &fakeAcquirer{errs: map[string]error{"m1": errors.New("still failing")}}
	w := downloadWorker(store, acquirer)
	w.processRetries()
	w.processPending()

	failed, _ := store.Queue(core.QueueFailed)
	if len(failed) != 1 {
		t.Fatalf("failed = %v, want one movie", failed)
	}
	if failed[0].RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", failed[0].RetryCount)
	}
}

func TestDownloadStopIsBounded(t *testing.T) {
	store := newWorkerStore(t)
	w := downloadWorker(store, &fakeAcquirer{})
	w.Start()
	w.Stop()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("download worker did not stop within bound")
	}
}

func mustAddPending(t *testing.T, s *core.Store, m core.Movie) {
	t.Helper()
	ok, err := s.AddPending(m)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("AddPending(%s) = false", m.ID)
	}
}
