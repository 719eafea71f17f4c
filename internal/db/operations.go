package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/google/uuid"
)

type SettingOperations struct {
	db *sql.DB
}

func (o *SettingOperations) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := o.db.QueryRowContext(ctx, GetSettingQuery, key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", sql.ErrNoRows
		}
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

func (o *SettingOperations) Set(ctx context.Context, key, value string) error {
	if _, err := o.db.ExecContext(ctx, UpsertSetting, key, value); err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

type EventOperations struct {
	db *sql.DB
}

func (o *EventOperations) Insert(ctx context.Context, e *JobEvent) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if _, err := o.db.ExecContext(ctx, InsertJobEvent,
		e.ID, e.MovieID, e.Title, e.Action, e.Detail); err != nil {
		return fmt.Errorf("failed to insert job event: %w", err)
	}
	return nil
}

func (o *EventOperations) List(ctx context.Context, limit int) ([]*JobEvent, error) {
	return o.list(ctx, ListJobEvents, limit)
}

func (o *EventOperations) ListByMovie(ctx context.Context, movieID string, limit int) ([]*JobEvent, error) {
	return o.list(ctx, ListJobEventsByMovie, movieID, limit)
}

func (o *EventOperations) list(ctx context.Context, query string, args ...any) ([]*JobEvent, error) {
	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}
	defer rows.Close()

	var events []*JobEvent
	for rows.Next() {
		e := &JobEvent{}
		if err := rows.Scan(&e.ID, &e.MovieID, &e.Title, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Prune deletes events older than the given number of days.
func (o *EventOperations) Prune(ctx context.Context, days int) (int64, error) {
	result, err := o.db.ExecContext(ctx, PruneJobEvents, fmt.Sprintf("-%d days", days))
	if err != nil {
		return 0, fmt.Errorf("failed to prune job events: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned job events: %w", err)
	}
	return n, nil
}

// Record logs a lifecycle event to the history table. Errors are
// logged rather than returned; callers record events while holding
// queue locks and must not fail queue operations over history writes.
func (d *DB) Record(action, movieID, title, detail string) {
	err := d.Events.Insert(context.Background(), &JobEvent{
		MovieID: movieID,
		Title:   title,
		Action:  action,
		Detail:  detail,
	})
	if err != nil {
		log.Printf("[history] %v", err)
	}
}
