// Package articlefile persists scraped articles as timestamped JSON files.
package articlefile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

const (
	filePrefix = "news_articles_"
	fileSuffix = ".json"
)

// ErrNoArticleFiles is returned by Latest when the directory holds no article files.
var ErrNoArticleFiles = errors.New("no article files found in data directory")

// Repo reads and writes article files in one directory.
type Repo struct {
	dir string
	now func() time.Time
}

// New creates a file repository rooted at dir.
func New(dir string) *Repo {
	return &Repo{dir: dir, now: time.Now}
}

// Dir returns the data directory.
func (r *Repo) Dir() string { return r.dir }

// FileName returns the article file name for a save at t.
func FileName(t time.Time) string {
	return filePrefix + t.Format(domain.TimestampLayout) + fileSuffix
}

// Save writes records to news_articles_<timestamp>.json and returns its path.
// The directory is created when missing.
func (r *Repo) Save(_ context.Context, records []domain.ArticleRecord) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir %s: %w", r.dir, err)
	}
	if records == nil {
		records = []domain.ArticleRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(records); err != nil {
		return "", fmt.Errorf("encode articles: %w", err)
	}

	path := filepath.Join(r.dir, FileName(r.now()))
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Load reads an article file.
func (r *Repo) Load(_ context.Context, path string) ([]domain.ArticleRecord, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var records []domain.ArticleRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", domain.ErrParse, path, err)
	}
	return records, nil
}

// Latest returns the lexically greatest article file, which is also the newest.
func (r *Repo) Latest(_ context.Context) (string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoArticleFiles
		}
		return "", fmt.Errorf("list %s: %w", r.dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", ErrNoArticleFiles
	}
	sort.Strings(names)
	return filepath.Join(r.dir, names[len(names)-1]), nil
}
