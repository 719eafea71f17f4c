package db

import "time"

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobEvent is one row in the job history log.
type JobEvent struct {
	ID        string    `json:"id"`
	MovieID   string    `json:"movie_id"`
	Title     string    `json:"title"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
