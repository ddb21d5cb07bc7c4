// Package gcs uploads finished runs to a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/sink"
)

// Config captures the bucket layout.
type Config struct {
	Bucket      string
	Prefix      string
	ContentType string
}

// Sink writes <prefix>/<runId>.jsonl, plus <prefix>/<runId>.csv for CSV runs.
type Sink struct {
	client *storage.Client
	cfg    Config
	logger *zap.Logger
}

// New creates a GCS-backed sink.
func New(client *storage.Client, cfg Config, logger *zap.Logger) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "application/x-ndjson"
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{client: client, cfg: cfg, logger: logger}, nil
}

// Append implements hashtag.Sink.
func (s *Sink) Append(ctx context.Context, run hashtag.Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("run id is required")
	}
	lines, err := sink.JSONLines(run)
	if err != nil {
		return err
	}
	uri, err := s.put(ctx, s.objectName(run.ID, "jsonl"), s.cfg.ContentType, bytes.NewReader(lines))
	if err != nil {
		return err
	}
	s.logger.Debug("uploaded run dataset", zap.String("run_id", run.ID), zap.String("uri", uri))

	if run.OutputFormat != hashtag.FormatCSV {
		return nil
	}
	data, err := sink.CSV(run)
	if err != nil {
		return err
	}
	uri, err = s.put(ctx, s.objectName(run.ID, "csv"), "text/csv", bytes.NewReader(data))
	if err != nil {
		return err
	}
	s.logger.Debug("uploaded run csv", zap.String("run_id", run.ID), zap.String("uri", uri))
	return nil
}

func (s *Sink) objectName(runID, ext string) string {
	name := runID + "." + ext
	if s.cfg.Prefix == "" {
		return name
	}
	return path.Join(s.cfg.Prefix, name)
}

// put uploads r and returns a gs:// URI.
func (s *Sink) put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	writer := s.client.Bucket(s.cfg.Bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := io.Copy(writer, r); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("copy object %s: %w (close writer: %v)", name, err, closeErr)
		}
		return "", fmt.Errorf("copy object %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.cfg.Bucket, name), nil
}
