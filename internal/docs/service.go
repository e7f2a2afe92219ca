// Package docs renders the operator and API documentation, written in
// AsciiDoc, to HTML for the /api/docs endpoint.
package docs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytesparadise/libasciidoc"
	"github.com/bytesparadise/libasciidoc/pkg/configuration"
)

// ErrInvalidName is returned for names that are not a plain .adoc file name.
var ErrInvalidName = errors.New("invalid document name")

type cached struct {
	html    string
	modTime time.Time
}

type Service struct {
	docsDir string
	cache   map[string]cached // filename -> rendered html
	mu      sync.RWMutex
}

func NewService(docsDir string) *Service {
	return &Service{
		docsDir: docsDir,
		cache:   make(map[string]cached),
	}
}

// GetDoc renders filename to HTML. Results are cached until the file changes.
func (s *Service) GetDoc(ctx context.Context, filename string) (string, error) {
	if filename != filepath.Base(filename) || !strings.HasSuffix(filename, ".adoc") {
		return "", ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.docsDir, filename)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat doc file: %w", err)
	}

	s.mu.RLock()
	c, ok := s.cache[filename]
	s.mu.RUnlock()
	if ok && c.modTime.Equal(info.ModTime()) {
		return c.html, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read doc file: %w", err)
	}

	output := bytes.NewBuffer(nil)
	config := configuration.NewConfiguration(
		configuration.WithHeaderFooter(false), // embedded in the caller's page
		configuration.WithAttribute("toc", "left"),
	)

	if _, err := libasciidoc.Convert(bytes.NewReader(data), output, config); err != nil {
		return "", fmt.Errorf("failed to convert asciidoc: %w", err)
	}

	html := output.String()

	s.mu.Lock()
	s.cache[filename] = cached{html: html, modTime: info.ModTime()}
	s.mu.Unlock()

	return html, nil
}

// ListDocs returns the .adoc files in the docs directory, sorted.
func (s *Service) ListDocs() ([]string, error) {
	entries, err := os.ReadDir(s.docsDir)
	if err != nil {
		return nil, err
	}

	var docs []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".adoc") {
			docs = append(docs, entry.Name())
		}
	}
	sort.Strings(docs)
	return docs, nil
}
