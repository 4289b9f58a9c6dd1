// Package gcs stores each page record as one JSON object in a Google Cloud
// Storage bucket.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/JakeFAU/a11y-crawler/internal/clock"
	"github.com/JakeFAU/a11y-crawler/internal/crawler"
	"github.com/JakeFAU/a11y-crawler/internal/id"
	"github.com/JakeFAU/a11y-crawler/internal/metrics"
)

const contentType = "application/json"

// Config names the destination bucket.
type Config struct {
	Bucket string
	Prefix string
}

// Sink uploads records to GCS.
type Sink struct {
	client *storage.Client
	bucket string
	prefix string
	clock  clock.Clock
	ids    id.Generator
}

// Option customizes a Sink.
type Option func(*Sink)

// WithClock overrides the clock used for object paths.
func WithClock(c clock.Clock) Option {
	return func(s *Sink) { s.clock = c }
}

// WithIDs overrides the object id generator.
func WithIDs(g id.Generator) Option {
	return func(s *Sink) { s.ids = g }
}

// New creates a GCS-backed sink.
func New(client *storage.Client, cfg Config, opts ...Option) (*Sink, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	s := &Sink{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		clock:  clock.System{},
		ids:    id.V7{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ObjectName builds <prefix>/<yyyy>/<mm>/<dd>/<host>/<id>.json from the
// record's key, filling in a key when the record has none.
func (s *Sink) ObjectName(record crawler.PageRecord) (string, error) {
	record, err := s.stamp(record)
	if err != nil {
		return "", err
	}
	return s.objectName(record), nil
}

func (s *Sink) objectName(record crawler.PageRecord) string {
	return path.Join(
		s.prefix,
		record.CreatedAt.UTC().Format("2006/01/02"),
		metrics.SanitizeSite(record.URL),
		record.ID.String()+".json",
	)
}

func (s *Sink) stamp(record crawler.PageRecord) (crawler.PageRecord, error) {
	if record.ID == uuid.Nil {
		oid, err := s.ids.NewID()
		if err != nil {
			return record, err
		}
		record.ID = oid
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.clock.Now()
	}
	return record, nil
}

// Append uploads the record. The object is only created if absent; an
// object already written under the same key counts as success.
func (s *Sink) Append(ctx context.Context, record crawler.PageRecord) error {
	record, err := s.stamp(record)
	if err != nil {
		return fmt.Errorf("object name: %w", err)
	}
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	obj := s.client.Bucket(s.bucket).Object(s.objectName(record)).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = 0
	w.Metadata = map[string]string{"url": record.URL}
	if _, err := w.Write(body); err != nil {
		closeErr := w.Close()
		if alreadyWritten(err) || alreadyWritten(closeErr) {
			return nil
		}
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		if alreadyWritten(err) {
			return nil
		}
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// alreadyWritten reports a failed DoesNotExist precondition.
func alreadyWritten(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed
}

// Close releases the storage client.
func (s *Sink) Close(context.Context) error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close storage client: %w", err)
	}
	return nil
}
