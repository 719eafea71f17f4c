package downloader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deepl0w/movie-sync/internal/core"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fetch.sh")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAttemptSubstitutesPlaceholders(t *testing.T) {
	out := filepath.Join(t.TempDir(), "args.txt")
	script := writeScript(t, `printf '%s\n' "$@" > `+out)

	svc, err := NewExecService([]string{script, "{id}", "{title}", "{year}", "{imdb_id}"}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	m := core.Movie{ID: "m1", Title: "Stalker", Year: "1979", IMDBID: "tt0079944"}
	if err := svc.Attempt(m); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Split(strings.TrimSpace(string(data)), "\n")
	want := []string{"m1", "Stalker", "1979", "tt0079944"}
	if len(got) != len(want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("arg %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAttemptReportsStderrOnFailure(t *testing.T) {
	script := writeScript(t, `echo "no source found for movie" >&2; exit 1`)

	svc, err := NewExecService([]string{script}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	err = svc.Attempt(core.Movie{ID: "m1", Title: "Stalker"})
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "no source found for movie") {
		t.Errorf("error = %v, want stderr message included", err)
	}
}

func TestAttemptTimesOut(t *testing.T) {
	script := writeScript(t, `sleep 10`)

	svc, err := NewExecService([]string{script}, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	err = svc.Attempt(core.Movie{ID: "m1", Title: "Stalker"})
	if err == nil {
		t.Fatal("expected timeout")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %v, want timeout message", err)
	}
}

func TestNewExecServiceRequiresCommand(t *testing.T) {
	if _, err := NewExecService(nil, time.Minute); err == nil {
		t.Fatal("expected error for empty command")
	}
}
