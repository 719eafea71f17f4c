package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Store is the authoritative collection of movies partitioned into four
// persisted queues. Each queue has its own lock and its own JSON file;
// operations spanning queues acquire locks in the fixed order
// pending < failed < completed < removed, insert into the destination
// queue before removing from the source, and persist each file
// independently. A crash between the two writes is resolved at load
// time by preferring the queue further along the lifecycle.
type Store struct {
	dir      string
	now      func() time.Time
	recorder EventRecorder

	pendingMu   sync.Mutex
	failedMu    sync.Mutex
	completedMu sync.Mutex
	removedMu   sync.Mutex

	pending   []Movie
	failed    []Movie
	completed []Movie
	removed   []Movie
}

// NewStore loads the persisted queues from dir, creating it if needed.
// Corrupted or unreadable queue files are logged and treated as empty.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", dir, err)
	}

	s := &Store{
		dir: dir,
		now: time.Now,
	}
	s.load()
	s.reconcile()

	log.Printf("[queue] loaded queues: %d pending, %d failed, %d completed, %d removed",
		len(s.pending), len(s.failed), len(s.completed), len(s.removed))
	return s, nil
}

// SetRecorder wires a history recorder for state transitions. Must be
// called before the workers start.
func (s *Store) SetRecorder(r EventRecorder) {
	s.recorder = r
}

func (s *Store) record(action string, m Movie, detail string) {
	if s.recorder != nil {
		s.recorder.Record(action, m.ID, m.Title, detail)
	}
}

func (s *Store) queuePath(name string) string {
	return filepath.Join(s.dir, "queue_"+name+".json")
}

func (s *Store) load() {
	for _, q := range []struct {
		name string
		dst  *[]Movie
	}{
		{QueuePending, &s.pending},
		{QueueFailed, &s.failed},
		{QueueCompleted, &s.completed},
		{QueueRemoved, &s.removed},
	} {
		movies, err := readQueueFile(s.queuePath(q.name))
		if err != nil {
			log.Printf("[queue] %v, starting with empty %s queue", err, q.name)
			movies = nil
		}
		*q.dst = movies
	}
}

// reconcile drops duplicate ids left behind by a crash between two queue
// writes, keeping the occurrence in the queue furthest along the
// lifecycle: completed over failed over pending over removed.
func (s *Store) reconcile() {
	seen := make(map[string]bool, len(s.completed)+len(s.failed)+len(s.pending))

	dedupe := func(queue []Movie) ([]Movie, bool) {
		kept := queue[:0]
		changed := false
		for _, m := range queue {
			if seen[m.ID] {
				changed = true
				continue
			}
			seen[m.ID] = true
			kept = append(kept, m)
		}
		return kept, changed
	}

	for _, q := range []struct {
		name string
		dst  *[]Movie
	}{
		{QueueCompleted, &s.completed},
		{QueueFailed, &s.failed},
		{QueuePending, &s.pending},
		{QueueRemoved, &s.removed},
	} {
		deduped, changed := dedupe(*q.dst)
		*q.dst = deduped
		if changed {
			log.Printf("[queue] dropped duplicate entries from %s queue during load", q.name)
			if err := writeJSONAtomic(s.queuePath(q.name), orEmpty(deduped)); err != nil {
				log.Printf("[queue] %v", err)
			}
		}
	}
}

// orEmpty keeps the persisted form a JSON array even when a queue
// drains to nil.
func orEmpty(movies []Movie) []Movie {
	if movies == nil {
		return []Movie{}
	}
	return movies
}

func (s *Store) savePending() error   { return writeJSONAtomic(s.queuePath(QueuePending), orEmpty(s.pending)) }
func (s *Store) saveFailed() error    { return writeJSONAtomic(s.queuePath(QueueFailed), orEmpty(s.failed)) }
func (s *Store) saveCompleted() error { return writeJSONAtomic(s.queuePath(QueueCompleted), orEmpty(s.completed)) }
func (s *Store) saveRemoved() error   { return writeJSONAtomic(s.queuePath(QueueRemoved), orEmpty(s.removed)) }

func indexOf(movies []Movie, id string) int {
	for i, m := range movies {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func removeAt(movies []Movie, i int) []Movie {
	return append(movies[:i], movies[i+1:]...)
}

// AddPending inserts a movie at the tail of the pending queue. It
// returns false without mutating anything when the id is already
// pending, failed or completed, so finished or in-flight work is never
// resurrected. A movie sitting in the removed queue is restored to
// pending instead (it reappeared on the watchlist).
func (s *Store) AddPending(m Movie) (bool, error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.failedMu.Lock()
	defer s.failedMu.Unlock()
	s.completedMu.Lock()
	defer s.completedMu.Unlock()
	s.removedMu.Lock()
	defer s.removedMu.Unlock()

	if indexOf(s.pending, m.ID) >= 0 || indexOf(s.failed, m.ID) >= 0 || indexOf(s.completed, m.ID) >= 0 {
		return false, nil
	}

	fromRemoved := false
	if i := indexOf(s.removed, m.ID); i >= 0 {
		m = s.removed[i]
		s.removed = removeAt(s.removed, i)
		fromRemoved = true
	}

	m.QueuedAt = s.now().Unix()
	m.RemovedAt = 0
	m.CompletedAt = 0
	s.pending = append(s.pending, m)

	if err := s.savePending(); err != nil {
		return true, err
	}
	if fromRemoved {
		s.record("restored", m, "reappeared on watchlist")
		if err := s.saveRemoved(); err != nil {
			return true, err
		}
	} else {
		s.record("queued", m, "")
	}
	return true, nil
}

// NextPending pops the oldest pending movie. Skipped movies are still
// returned in order; callers check the flag.
func (s *Store) NextPending() (Movie, bool, error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	if len(s.pending) == 0 {
		return Movie{}, false, nil
	}

	m := s.pending[0]
	s.pending = s.pending[1:]
	return m, true, s.savePending()
}

// RequeuePending appends a just-popped movie back to the tail of the
// pending queue without duplicate checks. Used when a skipped movie is
// put back so it never blocks the jobs behind it.
func (s *Store) RequeuePending(m Movie) error {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	s.pending = append(s.pending, m)
	return s.savePending()
}

// Fail records a failed acquisition attempt. The movie's retry count is
// incremented, the error and retry time recorded, and the movie placed
// in the failed queue (removed from pending if still there).
func (s *Store) Fail(m Movie, errMsg string, retryAfter time.Time) error {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.failedMu.Lock()
	defer s.failedMu.Unlock()

	pendingDirty := false
	if i := indexOf(s.pending, m.ID); i >= 0 {
		s.pending = removeAt(s.pending, i)
		pendingDirty = true
	}

	now := s.now().Unix()
	if i := indexOf(s.failed, m.ID); i >= 0 {
		f := &s.failed[i]
		f.RetryCount++
		f.LastError = errMsg
		f.RetryAfter = retryAfter.Unix()
		if f.FailedAt == 0 {
			f.FailedAt = now
		}
		m = *f
	} else {
		m.RetryCount++
		m.LastError = errMsg
		m.RetryAfter = retryAfter.Unix()
		if m.FailedAt == 0 {
			m.FailedAt = now
		}
		m.CompletedAt = 0
		m.RemovedAt = 0
		s.failed = append(s.failed, m)
	}

	s.record("failed", m, fmt.Sprintf("attempt %d: %s", m.RetryCount, errMsg))

	if err := s.saveFailed(); err != nil {
		return err
	}
	if pendingDirty {
		return s.savePending()
	}
	return nil
}

// ReadyForRetry returns failed movies whose retry time has elapsed and
// whose retry count is below maxRetries, ordered by retry time.
func (s *Store) ReadyForRetry(maxRetries int) []Movie {
	s.failedMu.Lock()
	defer s.failedMu.Unlock()

	now := s.now().Unix()
	var ready []Movie
	for _, m := range s.failed {
		if m.RetryCount >= maxRetries {
			continue
		}
		if now >= m.RetryAfter {
			ready = append(ready, m)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		return ready[i].RetryAfter < ready[j].RetryAfter
	})
	return ready
}

// PromoteToPending moves a movie from failed back to pending for
// another attempt, preserving its retry count. A movie no longer in the
// failed queue is a no-op.
func (s *Store) PromoteToPending(m Movie) error {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.failedMu.Lock()
	defer s.failedMu.Unlock()

	i := indexOf(s.failed, m.ID)
	if i < 0 {
		return nil
	}

	promoted := s.failed[i]
	promoted.RetryAfter = 0
	s.pending = append(s.pending, promoted)

	if err := s.savePending(); err != nil {
		return err
	}

	s.failed = removeAt(s.failed, i)
	s.record("retrying", promoted, fmt.Sprintf("attempt %d", promoted.RetryCount+1))
	return s.saveFailed()
}

// PermanentFailures returns failed movies that exhausted their retries.
// They stay visible in the failed queue until manually reset or removed.
func (s *Store) PermanentFailures(maxRetries int) []Movie {
	s.failedMu.Lock()
	defer s.failedMu.Unlock()

	var out []Movie
	for _, m := range s.failed {
		if m.RetryCount >= maxRetries {
			out = append(out, m)
		}
	}
	return out
}

// ResetFailure zeroes a failed movie's retry count and makes it
// immediately eligible for retry. Returns false if the id is not in the
// failed queue.
func (s *Store) ResetFailure(id string) (bool, error) {
	s.failedMu.Lock()
	defer s.failedMu.Unlock()

	i := indexOf(s.failed, id)
	if i < 0 {
		return false, nil
	}

	s.failed[i].RetryCount = 0
	s.failed[i].RetryAfter = 0
	s.record("reset", s.failed[i], "retry count cleared")
	return true, s.saveFailed()
}

// RetryNow clears a failed movie's retry state and moves it straight
// to pending in one operation, so a concurrent retry promotion cannot
// interleave. Returns false if the id is not in the failed queue.
func (s *Store) RetryNow(id string) (bool, error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.failedMu.Lock()
	defer s.failedMu.Unlock()

	i := indexOf(s.failed, id)
	if i < 0 {
		return false, nil
	}

	m := s.failed[i]
	m.RetryCount = 0
	m.RetryAfter = 0
	m.QueuedAt = s.now().Unix()
	s.pending = append(s.pending, m)

	if err := s.savePending(); err != nil {
		return true, err
	}

	s.failed = removeAt(s.failed, i)
	s.record("reset", m, "manual retry")
	return true, s.saveFailed()
}

// Complete marks a movie as successfully acquired, removing it from the
// pending and failed queues. Completing an already-completed movie keeps
// the original completion time.
func (s *Store) Complete(m Movie) error {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.failedMu.Lock()
	defer s.failedMu.Unlock()
	s.completedMu.Lock()
	defer s.completedMu.Unlock()

	if indexOf(s.completed, m.ID) < 0 {
		m.CompletedAt = s.now().Unix()
		m.RetryAfter = 0
		m.LastError = ""
		m.RemovedAt = 0
		s.completed = append(s.completed, m)
		s.record("completed", m, "")
	}

	if err := s.saveCompleted(); err != nil {
		return err
	}

	if i := indexOf(s.failed, m.ID); i >= 0 {
		s.failed = removeAt(s.failed, i)
		if err := s.saveFailed(); err != nil {
			return err
		}
	}

	if i := indexOf(s.pending, m.ID); i >= 0 {
		s.pending = removeAt(s.pending, i)
		if err := s.savePending(); err != nil {
			return err
		}
	}
	return nil
}

// MarkRemoved moves every completed or pending movie whose id is absent
// from currentIDs into the removed queue, starting its grace-period
// clock. Returns the number of movies moved. Failed movies are left
// alone so retry bookkeeping survives watchlist churn.
func (s *Store) MarkRemoved(currentIDs map[string]bool) (int, error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.completedMu.Lock()
	defer s.completedMu.Unlock()
	s.removedMu.Lock()
	defer s.removedMu.Unlock()

	now := s.now().Unix()
	moved := 0

	sweep := func(queue []Movie) ([]Movie, bool) {
		kept := queue[:0]
		changed := false
		for _, m := range queue {
			if currentIDs[m.ID] || indexOf(s.removed, m.ID) >= 0 {
				kept = append(kept, m)
				continue
			}
			m.RemovedAt = now
			s.removed = append(s.removed, m)
			s.record("removed", m, "no longer on watchlist")
			moved++
			changed = true
		}
		return kept, changed
	}

	var completedDirty, pendingDirty bool
	s.completed, completedDirty = sweep(s.completed)
	s.pending, pendingDirty = sweep(s.pending)

	if moved == 0 {
		return 0, nil
	}

	if err := s.saveRemoved(); err != nil {
		return moved, err
	}
	if completedDirty {
		if err := s.saveCompleted(); err != nil {
			return moved, err
		}
	}
	if pendingDirty {
		if err := s.savePending(); err != nil {
			return moved, err
		}
	}
	return moved, nil
}

// ReadyForDeletion returns removed movies whose grace period has fully
// elapsed.
func (s *Store) ReadyForDeletion(gracePeriod time.Duration) []Movie {
	s.removedMu.Lock()
	defer s.removedMu.Unlock()

	now := s.now().Unix()
	cutoff := int64(gracePeriod / time.Second)
	var ready []Movie
	for _, m := range s.removed {
		if now-m.RemovedAt >= cutoff {
			ready = append(ready, m)
		}
	}
	return ready
}

// Purge deletes a movie from the removed queue entirely. Returns false
// if the id is not there.
func (s *Store) Purge(id string) (bool, error) {
	s.removedMu.Lock()
	defer s.removedMu.Unlock()

	i := indexOf(s.removed, id)
	if i < 0 {
		return false, nil
	}

	m := s.removed[i]
	s.removed = removeAt(s.removed, i)
	s.record("purged", m, "")
	return true, s.saveRemoved()
}

// Restore moves a movie from removed back to pending, clearing its
// removal metadata. Returns false if the id is not in the removed queue.
func (s *Store) Restore(id string) (bool, error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.removedMu.Lock()
	defer s.removedMu.Unlock()

	i := indexOf(s.removed, id)
	if i < 0 {
		return false, nil
	}

	m := s.removed[i]
	m.RemovedAt = 0
	m.CompletedAt = 0
	m.QueuedAt = s.now().Unix()
	s.pending = append(s.pending, m)

	if err := s.savePending(); err != nil {
		return true, err
	}

	s.removed = removeAt(s.removed, i)
	s.record("restored", m, "")
	return true, s.saveRemoved()
}

// Statistics reports queue sizes. Each count is taken under its own
// queue lock; minor skew across counts is acceptable.
func (s *Store) Statistics(maxRetries int) Stats {
	var st Stats

	s.pendingMu.Lock()
	st.Pending = len(s.pending)
	s.pendingMu.Unlock()

	s.failedMu.Lock()
	st.Failed = len(s.failed)
	for _, m := range s.failed {
		if m.RetryCount >= maxRetries {
			st.PermanentFailures++
		}
	}
	s.failedMu.Unlock()

	s.completedMu.Lock()
	st.Completed = len(s.completed)
	s.completedMu.Unlock()

	s.removedMu.Lock()
	st.Removed = len(s.removed)
	s.removedMu.Unlock()

	return st
}

// Reorder repositions movedID immediately before anchorID within one
// queue. Returns false if the queue name is unknown or either id is
// absent from that queue.
func (s *Store) Reorder(queueName, movedID, anchorID string) (bool, error) {
	queue, mu, save := s.queueByName(queueName)
	if queue == nil {
		return false, nil
	}

	mu.Lock()
	defer mu.Unlock()

	movedIdx := indexOf(*queue, movedID)
	anchorIdx := indexOf(*queue, anchorID)
	if movedIdx < 0 || anchorIdx < 0 || movedID == anchorID {
		return false, nil
	}

	moved := (*queue)[movedIdx]
	*queue = removeAt(*queue, movedIdx)
	if movedIdx < anchorIdx {
		anchorIdx--
	}

	*queue = append(*queue, Movie{})
	copy((*queue)[anchorIdx+1:], (*queue)[anchorIdx:])
	(*queue)[anchorIdx] = moved

	return true, save()
}

func (s *Store) queueByName(name string) (*[]Movie, *sync.Mutex, func() error) {
	switch name {
	case QueuePending:
		return &s.pending, &s.pendingMu, s.savePending
	case QueueFailed:
		return &s.failed, &s.failedMu, s.saveFailed
	case QueueCompleted:
		return &s.completed, &s.completedMu, s.saveCompleted
	case QueueRemoved:
		return &s.removed, &s.removedMu, s.saveRemoved
	default:
		return nil, nil, nil
	}
}

// Queue returns a copy of one queue's contents for display. Returns
// false for an unknown queue name.
func (s *Store) Queue(name string) ([]Movie, bool) {
	queue, mu, _ := s.queueByName(name)
	if queue == nil {
		return nil, false
	}

	mu.Lock()
	defer mu.Unlock()
	out := make([]Movie, len(*queue))
	copy(out, *queue)
	return out, true
}

// GetRemoved looks up a movie in the removed queue.
func (s *Store) GetRemoved(id string) (Movie, bool) {
	s.removedMu.Lock()
	defer s.removedMu.Unlock()

	if i := indexOf(s.removed, id); i >= 0 {
		return s.removed[i], true
	}
	return Movie{}, false
}

// SetSkipped flags or unflags a movie anywhere in the store. A skipped
// movie keeps its queue position but is never acted on.
func (s *Store) SetSkipped(id string, skipped bool) (bool, error) {
	for _, name := range []string{QueuePending, QueueFailed, QueueCompleted, QueueRemoved} {
		queue, mu, save := s.queueByName(name)
		mu.Lock()
		if i := indexOf(*queue, id); i >= 0 {
			(*queue)[i].Skipped = skipped
			m := (*queue)[i]
			err := save()
			mu.Unlock()
			if skipped {
				s.record("skipped", m, "")
			} else {
				s.record("unskipped", m, "")
			}
			return true, err
		}
		mu.Unlock()
	}
	return false, nil
}

// Move transfers a movie to a target queue from wherever it currently
// sits, for manual/administrative intervention. Returns false if the
// target queue name is unknown or the id is not found anywhere.
func (s *Store) Move(id, target string) (bool, error) {
	if target != QueuePending && target != QueueFailed && target != QueueCompleted && target != QueueRemoved {
		return false, nil
	}

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.failedMu.Lock()
	defer s.failedMu.Unlock()
	s.completedMu.Lock()
	defer s.completedMu.Unlock()
	s.removedMu.Lock()
	defer s.removedMu.Unlock()

	var m Movie
	source := ""
	for _, q := range []struct {
		name string
		dst  *[]Movie
	}{
		{QueuePending, &s.pending},
		{QueueFailed, &s.failed},
		{QueueCompleted, &s.completed},
		{QueueRemoved, &s.removed},
	} {
		if i := indexOf(*q.dst, id); i >= 0 {
			m = (*q.dst)[i]
			source = q.name
			if source == target {
				return true, nil
			}
			*q.dst = removeAt(*q.dst, i)
			break
		}
	}
	if source == "" {
		return false, nil
	}

	now := s.now().Unix()
	switch target {
	case QueuePending:
		m.RemovedAt = 0
		m.CompletedAt = 0
		m.QueuedAt = now
		s.pending = append(s.pending, m)
	case QueueFailed:
		m.LastError = "manually moved"
		m.RetryAfter = 0
		m.RemovedAt = 0
		m.CompletedAt = 0
		if m.FailedAt == 0 {
			m.FailedAt = now
		}
		s.failed = append(s.failed, m)
	case QueueCompleted:
		m.CompletedAt = now
		m.RetryAfter = 0
		m.LastError = ""
		m.RemovedAt = 0
		s.completed = append(s.completed, m)
	case QueueRemoved:
		m.RemovedAt = now
		s.removed = append(s.removed, m)
	}

	s.record("moved", m, fmt.Sprintf("%s to %s", source, target))

	// Destination first, then the source, matching the crash-recovery
	// preference applied at load.
	_, _, saveDst := s.queueByName(target)
	if err := saveDst(); err != nil {
		return true, err
	}
	_, _, saveSrc := s.queueByName(source)
	return true, saveSrc()
}

// RemoveAnywhere deletes a movie outright from whichever queue holds
// it. Unlike Purge this bypasses the removed queue and the grace
// period; cleanup of downloaded files is the caller's concern.
func (s *Store) RemoveAnywhere(id string) (bool, error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.failedMu.Lock()
	defer s.failedMu.Unlock()
	s.completedMu.Lock()
	defer s.completedMu.Unlock()
	s.removedMu.Lock()
	defer s.removedMu.Unlock()

	for _, q := range []struct {
		name string
		dst  *[]Movie
		save func() error
	}{
		{QueuePending, &s.pending, s.savePending},
		{QueueFailed, &s.failed, s.saveFailed},
		{QueueCompleted, &s.completed, s.saveCompleted},
		{QueueRemoved, &s.removed, s.saveRemoved},
	} {
		if i := indexOf(*q.dst, id); i >= 0 {
			m := (*q.dst)[i]
			*q.dst = removeAt(*q.dst, i)
			s.record("deleted", m, "from "+q.name)
			return true, q.save()
		}
	}
	return false, nil
}

// PruneCompleted drops completed entries older than the retention
// window and returns how many were removed.
func (s *Store) PruneCompleted(olderThan time.Duration) (int, error) {
	s.completedMu.Lock()
	defer s.completedMu.Unlock()

	cutoff := s.now().Add(-olderThan).Unix()
	kept := s.completed[:0]
	pruned := 0
	for _, m := range s.completed {
		if m.CompletedAt > cutoff {
			kept = append(kept, m)
		} else {
			pruned++
		}
	}
	if pruned == 0 {
		return 0, nil
	}

	s.completed = kept
	log.Printf("[queue] pruned %d old completed entries", pruned)
	return pruned, s.saveCompleted()
}
