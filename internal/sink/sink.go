// Package sink encodes finished runs and fans them out to the configured destinations.
package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

// CSVHeader is the column header of tabular exports.
var CSVHeader = []string{"Hashtag", "Views", "Posts", "Type", "Position"}

// Line is one dataset row: a record tagged with its run.
type Line struct {
	RunID string `json:"runId"`
	hashtag.Record
}

// JSONLines encodes every record of run as one JSON object per line.
func JSONLines(run hashtag.Run) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, rec := range run.Records {
		if err := enc.Encode(Line{RunID: run.ID, Record: rec}); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// CSV encodes the flat columns of every record. Position is blank for searched records.
func CSV(run hashtag.Run) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range run.Records {
		position := ""
		if rec.Position != nil {
			position = strconv.Itoa(*rec.Position)
		}
		row := []string{rec.Hashtag, rec.ViewsDisplay, rec.PostsDisplay, string(rec.Origin), position}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Multi hands a run to every sink in order. One failing sink does not skip the rest.
type Multi struct {
	sinks  []hashtag.Sink
	logger *zap.Logger
}

// NewMulti builds a Multi over the non-nil sinks.
func NewMulti(logger *zap.Logger, sinks ...hashtag.Sink) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	kept := make([]hashtag.Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Multi{sinks: kept, logger: logger}
}

// Len reports how many sinks are attached.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Append implements hashtag.Sink and joins every failure.
func (m *Multi) Append(ctx context.Context, run hashtag.Run) error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Append(ctx, run); err != nil {
			m.logger.Warn("sink append failed",
				zap.Int("sink", i),
				zap.String("run_id", run.ID),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
