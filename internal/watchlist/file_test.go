package watchlist

import (
	"os"
	"path/filepath"
	"testing"
)

func writeWatchlist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFetchParsesEntries(t *testing.T) {
	path := writeWatchlist(t, `[
		{"id": "m1", "title": "Stalker", "year": "1979", "director": "Andrei Tarkovsky"},
		{"id": "m2", "title": "Solaris", "year": "1972"}
	]`)

	movies, err := NewFileSource(path).Fetch()
	if err != nil {
		t.Fatal(err)
	}
	if len(movies) != 2 {
		t.Fatalf("got %d movies, want 2", len(movies))
	}
	if movies[0].ID != "m1" || movies[0].Director != "Andrei Tarkovsky" {
		t.Errorf("movies[0] = %+v", movies[0])
	}
}

func TestFetchDropsInvalidEntries(t *testing.T) {
	path := writeWatchlist(t, `[
		{"id": "m1", "title": "Stalker"},
		{"title": "No ID Here"},
		{"id": "m3"}
	]`)

	movies, err := NewFileSource(path).Fetch()
	if err != nil {
		t.Fatal(err)
	}
	if len(movies) != 1 || movies[0].ID != "m1" {
		t.Errorf("movies = %v, want only m1", movies)
	}
}

func TestFetchFallsBackToIMDBID(t *testing.T) {
	path := writeWatchlist(t, `[{"title": "Stalker", "imdb_id": "tt0079944"}]`)

	movies, err := NewFileSource(path).Fetch()
	if err != nil {
		t.Fatal(err)
	}
	if len(movies) != 1 || movies[0].ID != "tt0079944" {
		t.Errorf("movies = %v, want id tt0079944", movies)
	}
}

func TestFetchStripsLifecycleFields(t *testing.T) {
	path := writeWatchlist(t, `[{"id": "m1", "title": "Stalker", "retry_count": 4, "skipped": true}]`)

	movies, err := NewFileSource(path).Fetch()
	if err != nil {
		t.Fatal(err)
	}
	if movies[0].RetryCount != 0 || movies[0].Skipped {
		t.Errorf("lifecycle fields leaked: %+v", movies[0])
	}
}

func TestFetchMissingFileFails(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "nope.json")).Fetch()
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFetchMalformedFileFails(t *testing.T) {
	path := writeWatchlist(t, `{not json`)

	_, err := NewFileSource(path).Fetch()
	if err == nil {
		t.Fatal("expected error for malformed file")
	}
}
