package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	d, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	d.Close()

	d, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	d.Close()
}

func TestSettingsRoundTrip(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if _, err := d.Settings.Get(ctx, "missing"); err != sql.ErrNoRows {
		t.Errorf("Get(missing) err = %v, want sql.ErrNoRows", err)
	}

	if err := d.Settings.Set(ctx, "admin_password", "hash1"); err != nil {
		t.Fatal(err)
	}
	if err := d.Settings.Set(ctx, "admin_password", "hash2"); err != nil {
		t.Fatal(err)
	}

	got, err := d.Settings.Get(ctx, "admin_password")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hash2" {
		t.Errorf("Get = %q, want hash2", got)
	}
}

func TestJobEventHistory(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	for _, e := range []*JobEvent{
		{MovieID: "m1", Title: "Stalker", Action: "queued"},
		{MovieID: "m1", Title: "Stalker", Action: "completed"},
		{MovieID: "m2", Title: "Solaris", Action: "queued"},
	} {
		if err := d.Events.Insert(ctx, e); err != nil {
			t.Fatal(err)
		}
		if e.ID == "" {
			t.Error("Insert did not assign an id")
		}
	}

	all, err := d.Events.List(ctx, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("List returned %d events, want 3", len(all))
	}

	m1, err := d.Events.ListByMovie(ctx, "m1", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(m1) != 2 {
		t.Errorf("ListByMovie(m1) returned %d events, want 2", len(m1))
	}
	for _, e := range m1 {
		if e.MovieID != "m1" {
			t.Errorf("event %s has movie id %s", e.ID, e.MovieID)
		}
	}
}

func TestEventListHonorsLimit(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := d.Events.Insert(ctx, &JobEvent{MovieID: "m1", Title: "Stalker", Action: "retried"}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := d.Events.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("List(2) returned %d events", len(got))
	}
}

func TestPruneKeepsRecentEvents(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	if err := d.Events.Insert(ctx, &JobEvent{MovieID: "m1", Title: "Stalker", Action: "queued"}); err != nil {
		t.Fatal(err)
	}

	n, err := d.Events.Prune(ctx, 30)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Prune(30) deleted %d fresh events", n)
	}
}

func TestRecordWritesHistoryRow(t *testing.T) {
	d := openTestDB(t)

	d.Record("failed", "m1", "Stalker", "no source found")

	events, err := d.Events.ListByMovie(context.Background(), "m1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Action != "failed" {
		t.Errorf("events = %+v, want one failed event", events)
	}
}
