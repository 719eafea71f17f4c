package cleanup

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/deepl0w/movie-sync/internal/core"
)

// Transfer is an active entry in the external transfer client.
type Transfer struct {
	Hash string
	Name string
}

// TransferClient removes entries from the external download client.
type TransferClient interface {
	ListTransfers() ([]Transfer, error)
	Remove(hash string, deleteFiles bool) error
}

const similarityThreshold = 0.85

var qualityMarkers = regexp.MustCompile(`(?i)\d{3,4}p|bluray|brrip|webrip|hdtv|dvdrip|x264|x265|h264|h265`)

// Service deletes a movie's artifacts: downloaded files, the torrent
// file that produced them, and the transfer-client entry. Release
// names rarely match titles exactly, so matching is fuzzy: normalized
// substring first, similarity ratio as a fallback.
type Service struct {
	DownloadDir string
	TorrentDir  string
	Client      TransferClient
}

func NewService(downloadDir, torrentDir string, client TransferClient) *Service {
	return &Service{
		DownloadDir: downloadDir,
		TorrentDir:  torrentDir,
		Client:      client,
	}
}

func (s *Service) Cleanup(m core.Movie) core.CleanupResult {
	res := core.CleanupResult{}

	if m.Title == "" {
		res.Errors = append(res.Errors, "no title provided")
		return res
	}

	if s.DownloadDir != "" {
		deleted, err := s.deleteMovieFiles(m.Title, m.Year)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("error deleting files: %v", err))
		}
		res.FilesDeleted = deleted
	}

	if s.TorrentDir != "" {
		deleted, err := s.deleteTorrentFile(m.Title, m.Year)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("error deleting torrent: %v", err))
		}
		res.TorrentDeleted = deleted
	}

	if s.Client != nil {
		removed, err := s.removeFromClient(m.Title, m.Year)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("error removing client entry: %v", err))
		}
		res.ClientEntryRemoved = removed
	}

	return res
}

// Contains reports whether a matching download already exists. Used to
// complete movies without invoking the acquisition service.
func (s *Service) Contains(m core.Movie) bool {
	if s.DownloadDir == "" || m.Title == "" {
		return false
	}

	normalized := normalizeTitle(m.Title)
	found := false
	filepath.WalkDir(s.DownloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == s.DownloadDir {
			return nil
		}
		if matches(normalized, strings.ToLower(d.Name()), m.Year) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func (s *Service) deleteMovieFiles(title, year string) (bool, error) {
	if _, err := os.Stat(s.DownloadDir); os.IsNotExist(err) {
		return false, nil
	}

	normalized := normalizeTitle(title)

	// Collect first: deleting a directory mid-walk would invalidate
	// the traversal beneath it.
	var targets []string
	err := filepath.WalkDir(s.DownloadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == s.DownloadDir {
			return nil
		}
		if matches(normalized, strings.ToLower(d.Name()), year) {
			targets = append(targets, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	deleted := false
	for _, path := range targets {
		if err := safeDelete(path); err == nil {
			deleted = true
		}
	}
	return deleted, nil
}

func (s *Service) deleteTorrentFile(title, year string) (bool, error) {
	entries, err := os.ReadDir(s.TorrentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	normalized := normalizeTitle(title)
	deleted := false
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".torrent") {
			continue
		}
		stem := strings.ToLower(strings.TrimSuffix(entry.Name(), ".torrent"))
		if matches(normalized, stem, year) {
			if err := safeDelete(filepath.Join(s.TorrentDir, entry.Name())); err == nil {
				deleted = true
			}
		}
	}
	return deleted, nil
}

func (s *Service) removeFromClient(title, year string) (bool, error) {
	transfers, err := s.Client.ListTransfers()
	if err != nil {
		return false, err
	}

	normalized := normalizeTitle(title)
	removed := false
	for _, t := range transfers {
		if matches(normalized, strings.ToLower(t.Name), year) {
			if err := s.Client.Remove(t.Hash, true); err != nil {
				return removed, err
			}
			removed = true
		}
	}
	return removed, nil
}

// matches applies substring matching with a similarity fallback. A
// year present in the name raises confidence either way.
func matches(normalizedTitle, name, year string) bool {
	if strings.Contains(name, normalizedTitle) {
		return year == "" || strings.Contains(name, year)
	}

	titlePart := extractTitlePart(name)
	score := similarity(normalizedTitle, titlePart)
	if year != "" && strings.Contains(name, year) {
		score += 0.10
	}
	return score >= similarityThreshold
}

func normalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = strings.ReplaceAll(t, " ", ".")
	t = strings.ReplaceAll(t, ":", "")
	t = strings.ReplaceAll(t, "'", "")
	return t
}

// extractTitlePart keeps the portion of a release name before the
// first quality marker.
func extractTitlePart(name string) string {
	if loc := qualityMarkers.FindStringIndex(name); loc != nil {
		return name[:loc[0]]
	}
	return name
}

// similarity is the ratio of the longest common subsequence to the
// mean length of the two strings, in [0, 1].
func similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(b)]
	return 2.0 * float64(lcs) / float64(len(a)+len(b))
}

func safeDelete(path string) error {
	if err := os.RemoveAll(path); err != nil {
		log.Printf("[cleanup] could not delete %s: %v", filepath.Base(path), err)
		return err
	}
	return nil
}
