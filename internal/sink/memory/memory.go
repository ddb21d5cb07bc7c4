// Package memory keeps finished runs in process so the API can serve them back.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

const defaultCapacity = 100

// Store is a bounded registry of recent runs. The oldest run is evicted first.
type Store struct {
	mu       sync.RWMutex
	runs     map[string]hashtag.Run
	order    []string
	capacity int
}

// New returns a Store holding at most capacity runs (100 when capacity <= 0).
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Store{runs: make(map[string]hashtag.Run), capacity: capacity}
}

// Append implements hashtag.Sink.
func (s *Store) Append(_ context.Context, run hashtag.Run) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		s.order = append(s.order, run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	for len(s.order) > s.capacity {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// Get returns the run with id.
func (s *Store) Get(_ context.Context, id string) (hashtag.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return hashtag.Run{}, ErrNotFound
	}
	return cloneRun(run), nil
}

// List returns stored runs, newest first.
func (s *Store) List(_ context.Context) []hashtag.Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]hashtag.Run, 0, len(s.runs))
	for _, id := range s.order {
		out = append(out, cloneRun(s.runs[id]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func cloneRun(run hashtag.Run) hashtag.Run {
	run.Records = append([]hashtag.Record(nil), run.Records...)
	return run
}
