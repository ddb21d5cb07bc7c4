// Package local writes runs to the local filesystem: an append-only dataset and per-run CSV exports.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/sink"
)

// DatasetFile is the name of the append-only JSON lines dataset.
const DatasetFile = "dataset.jsonl"

// Config captures the parameters for the filesystem sink.
type Config struct {
	Dir string
}

// Sink appends every record to the dataset and writes <runId>.csv when the run asks for CSV.
type Sink struct {
	dir string
	mu  sync.Mutex
}

// New creates the output directory if needed and checks that it is writable.
func New(cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	info, err := os.Stat(cfg.Dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.Dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create output directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat output directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("output path %s is not a directory", cfg.Dir)
	}

	marker := filepath.Join(cfg.Dir, ".writable_test")
	if err := os.WriteFile(marker, []byte("ok"), 0o600); err != nil {
		return nil, fmt.Errorf("output directory is not writable: %w", err)
	}
	if err := os.Remove(marker); err != nil {
		return nil, fmt.Errorf("clean up marker file: %w", err)
	}
	return &Sink{dir: cfg.Dir}, nil
}

// Append implements hashtag.Sink.
func (s *Sink) Append(ctx context.Context, run hashtag.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lines, err := sink.JSONLines(run)
	if err != nil {
		return err
	}
	if err := s.appendDataset(lines); err != nil {
		return err
	}
	if run.OutputFormat != hashtag.FormatCSV {
		return nil
	}
	data, err := sink.CSV(run)
	if err != nil {
		return err
	}
	path, err := s.resolve(run.ID + ".csv")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// DatasetPath returns the dataset location.
func (s *Sink) DatasetPath() string {
	return filepath.Join(s.dir, DatasetFile)
}

func (s *Sink) appendDataset(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.DatasetPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("append dataset: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	return nil
}

// resolve joins name under the output directory, refusing anything that escapes it.
func (s *Sink) resolve(name string) (string, error) {
	if strings.TrimSpace(strings.TrimSuffix(name, ".csv")) == "" {
		return "", fmt.Errorf("run id is required")
	}
	base := filepath.Clean(s.dir)
	full := filepath.Clean(filepath.Join(base, name))
	if filepath.Dir(full) != base {
		return "", fmt.Errorf("path traversal detected")
	}
	return full, nil
}
