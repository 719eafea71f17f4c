package watchlist

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/deepl0w/movie-sync/internal/core"
)

// FileSource reads the current watchlist from a JSON file maintained
// by an external exporter. The file holds an array of movie objects;
// entries without an id or title are dropped.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Fetch() ([]core.Movie, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read watchlist: %w", err)
	}

	var raw []core.Movie
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse watchlist: %w", err)
	}

	movies := make([]core.Movie, 0, len(raw))
	for _, m := range raw {
		if m.ID == "" && m.IMDBID != "" {
			m.ID = m.IMDBID
		}
		if m.ID == "" || m.Title == "" {
			log.Printf("[watchlist] skipping entry with missing id or title: %+v", m)
			continue
		}
		// Watchlist entries carry identity only; lifecycle fields
		// belong to the store.
		movies = append(movies, core.Movie{
			ID:       m.ID,
			Title:    m.Title,
			Year:     m.Year,
			Director: m.Director,
			IMDBID:   m.IMDBID,
		})
	}
	return movies, nil
}
