// Package web fetches news listing pages and articles over HTTP.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

const (
	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 10 * time.Second
	// maxPageBytes caps how much of a response body is parsed.
	maxPageBytes = 8 << 20
)

// Config holds fetcher settings.
type Config struct {
	UserAgent string
	Source    string
	Timeout   time.Duration
	// RequestsPerSecond paces fetches. Zero or negative disables pacing.
	RequestsPerSecond float64
}

// Fetcher downloads and parses pages. Safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
}

// NewFetcher creates a fetcher with its own HTTP client.
func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Source == "" {
		cfg.Source = domain.DefaultSource
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Fetcher{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchLinks returns every href on the page in document order.
func (f *Fetcher) FetchLinks(ctx context.Context, pageURL string) ([]string, error) {
	root, err := f.getDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return links(root), nil
}

// FetchArticle downloads one article and extracts its heading, paragraphs and keywords.
func (f *Fetcher) FetchArticle(ctx context.Context, articleURL string) (domain.ArticleRecord, error) {
	root, err := f.getDocument(ctx, articleURL)
	if err != nil {
		return domain.ArticleRecord{}, err
	}
	rec := parseArticle(root)
	rec.URL = articleURL
	rec.Source = f.cfg.Source
	rec.ScrapedAt = f.now()
	f.logger.Debug("Parsed article",
		zap.String("url", articleURL),
		zap.Int("paragraphs", len(rec.Paragraphs())),
		zap.Strings("keywords", rec.Keywords),
	)
	return rec, nil
}

func (f *Fetcher) getDocument(ctx context.Context, pageURL string) (*htmlNode, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait to fetch %s: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrFetch, pageURL, err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", pageURL, ctxErr)
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrFetch, pageURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("%w: %s: status %d", domain.ErrFetch, pageURL, resp.StatusCode)
	}

	root, err := parseHTML(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrParse, pageURL, err)
	}
	return root, nil
}
