package downloader

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/deepl0w/movie-sync/internal/core"
)

// ExecService runs a configured external command per acquisition
// attempt. Placeholders in the command are substituted with movie
// fields before execution; a non-zero exit is an acquisition failure.
type ExecService struct {
	Command []string
	Timeout time.Duration
}

func NewExecService(command []string, timeout time.Duration) (*ExecService, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("download command is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &ExecService{Command: command, Timeout: timeout}, nil
}

func (s *ExecService) Attempt(m core.Movie) error {
	args := make([]string, len(s.Command))
	for i, arg := range s.Command {
		args[i] = substitute(arg, m)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("download command timed out after %s", s.Timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return fmt.Errorf("download command failed: %w", err)
		}
		return fmt.Errorf("download command failed: %s", lastLine(msg))
	}
	return nil
}

func substitute(arg string, m core.Movie) string {
	r := strings.NewReplacer(
		"{id}", m.ID,
		"{title}", m.Title,
		"{year}", m.Year,
		"{imdb_id}", m.IMDBID,
	)
	return r.Replace(arg)
}

// lastLine keeps error messages short enough to store on the movie.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
