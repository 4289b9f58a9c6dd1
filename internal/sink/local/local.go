// Package local appends page records to a JSON Lines file.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

// Config selects the output file.
type Config struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// Sink writes one JSON object per line. Appends are serialized so lines
// never interleave.
type Sink struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// New opens (or creates) the file for appending, creating parent directories
// as needed.
func New(cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sink path is required")
	}
	path := filepath.Clean(cfg.Path)
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, fmt.Errorf("sink path %q is a directory", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create sink directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open sink file: %w", err)
	}
	return &Sink{path: path, file: f}, nil
}

// Path returns the output file.
func (s *Sink) Path() string {
	return s.path
}

// Append encodes the record and writes it as one line.
func (s *Sink) Append(_ context.Context, record crawler.PageRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("sink %s is closed", s.path)
	}
	if _, err := s.file.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

// Close syncs and closes the file. Further appends fail.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	f := s.file
	s.file = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync sink file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close sink file: %w", err)
	}
	return nil
}
