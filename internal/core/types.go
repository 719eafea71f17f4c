package core

// Movie is the unit of work tracked through the acquisition lifecycle.
// Queue-specific fields are zero outside their queue; timestamps are
// unix seconds to keep the persisted files stable across hosts.
type Movie struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Year     string `json:"year,omitempty"`
	Director string `json:"director,omitempty"`
	IMDBID   string `json:"imdb_id,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`

	QueuedAt int64 `json:"queued_at,omitempty"`

	// Failed queue fields.
	RetryCount int    `json:"retry_count,omitempty"`
	LastError  string `json:"last_error,omitempty"`
	FailedAt   int64  `json:"failed_at,omitempty"`
	RetryAfter int64  `json:"retry_after,omitempty"`

	CompletedAt int64 `json:"completed_at,omitempty"`
	RemovedAt   int64 `json:"removed_at,omitempty"`
}

// Queue names, in lifecycle-preference order for load reconciliation.
const (
	QueuePending   = "pending"
	QueueFailed    = "failed"
	QueueCompleted = "completed"
	QueueRemoved   = "removed"
)

// Stats is a point-in-time snapshot of queue sizes. Counts are taken
// per queue without a global lock, so minor skew between them is possible.
type Stats struct {
	Pending           int `json:"pending"`
	Failed            int `json:"failed"`
	Completed         int `json:"completed"`
	Removed           int `json:"removed"`
	PermanentFailures int `json:"permanent_failures"`
}

// WatchlistSource produces the current set of watched items.
type WatchlistSource interface {
	Fetch() ([]Movie, error)
}

// AcquisitionService attempts to locate and start fetching content for a
// movie. A nil error means the acquisition succeeded.
type AcquisitionService interface {
	Attempt(m Movie) error
}

// CleanupResult reports what a cleanup pass actually deleted.
type CleanupResult struct {
	FilesDeleted       bool     `json:"files_deleted"`
	TorrentDeleted     bool     `json:"torrent_deleted"`
	ClientEntryRemoved bool     `json:"client_entry_removed"`
	Errors             []string `json:"errors,omitempty"`
}

// CleanupExecutor deletes a movie's downloaded artifacts and any
// associated transfer-client entries.
type CleanupExecutor interface {
	Cleanup(m Movie) CleanupResult
}

// Library answers whether a movie's content is already present locally.
type Library interface {
	Contains(m Movie) bool
}

// EventRecorder receives job lifecycle events for the history log.
// Implementations must never block on network I/O; the store calls
// this while holding queue locks.
type EventRecorder interface {
	Record(action, movieID, title, detail string)
}
