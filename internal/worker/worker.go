package worker

import (
	"sync"

	"github.com/deepl0w/movie-sync/internal/core"
)

// Notifier receives job lifecycle notifications from the workers.
// Implementations must be safe for concurrent use and must not block.
type Notifier interface {
	JobCompleted(m core.Movie)
	JobFailed(m core.Movie, errMsg string, retryCount int)
	JobPurged(m core.Movie, res core.CleanupResult)
}

// lifecycle is the shared stop/done plumbing for the worker loops.
// Stop is cooperative: loops observe the stop channel between
// iterations and inside every wait, so shutdown latency is bounded by
// at most one in-flight collaborator call.
type lifecycle struct {
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func newLifecycle() lifecycle {
	return lifecycle{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Stop signals the worker loop to exit. Safe to call more than once.
func (l *lifecycle) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Done is closed when the worker loop has fully exited.
func (l *lifecycle) Done() <-chan struct{} {
	return l.doneCh
}

func (l *lifecycle) stopping() bool {
	select {
	case <-l.stopCh:
		return true
	default:
		return false
	}
}
