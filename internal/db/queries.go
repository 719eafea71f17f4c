package db

const (
	GetSettingQuery = `SELECT value FROM settings WHERE key = ?`

	UpsertSetting = `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
)

const (
	InsertJobEvent = `
		INSERT INTO job_events (id, movie_id, title, action, detail)
		VALUES (?, ?, ?, ?, ?)
	`

	ListJobEvents = `
		SELECT id, movie_id, title, action, detail, created_at
		FROM job_events ORDER BY created_at DESC, id LIMIT ?
	`

	ListJobEventsByMovie = `
		SELECT id, movie_id, title, action, detail, created_at
		FROM job_events WHERE movie_id = ? ORDER BY created_at DESC, id LIMIT ?
	`

	PruneJobEvents = `
		DELETE FROM job_events WHERE created_at < datetime('now', ?)
	`
)
