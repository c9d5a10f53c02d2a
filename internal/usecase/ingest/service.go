// Package ingest discovers and scrapes the latest articles from a listing page.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/metrics"
)

// Config selects the listing page and which links are articles.
type Config struct {
	BaseURL     string
	PathPattern string
}

// Service scrapes articles sequentially.
type Service struct {
	fetcher Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New creates a scraper.
func New(fetcher Fetcher, cfg Config, logger *zap.Logger) *Service {
	return &Service{fetcher: fetcher, cfg: cfg, logger: logger}
}

// ScrapeLatest returns up to limit parsed articles from the listing page.
// A listing failure fails the run; individual article failures are logged and skipped.
func (s *Service) ScrapeLatest(ctx context.Context, limit int) ([]domain.ArticleRecord, error) {
	if limit <= 0 {
		return []domain.ArticleRecord{}, nil
	}

	links, err := s.ArticleLinks(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Found article links", zap.Int("count", len(links)), zap.String("page", s.cfg.BaseURL))

	records := make([]domain.ArticleRecord, 0, min(limit, len(links)))
	for _, link := range links {
		if len(records) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return records, fmt.Errorf("scrape interrupted: %w", err)
		}

		rec, err := s.fetcher.FetchArticle(ctx, link)
		if err != nil {
			if domain.IsFatal(err) {
				return records, fmt.Errorf("fetch %s: %w", link, err)
			}
			metrics.IngestArticlesTotal.WithLabelValues(failureStatus(err)).Inc()
			s.logger.Warn("Skipping article", zap.String("url", link), zap.Error(err))
			continue
		}
		metrics.IngestArticlesTotal.WithLabelValues("ok").Inc()
		records = append(records, rec)
	}
	return records, nil
}

// ArticleLinks returns the deduplicated, absolute article URLs on the listing page in page order.
func (s *Service) ArticleLinks(ctx context.Context) ([]string, error) {
	base, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url %q: %w", domain.ErrConfig, s.cfg.BaseURL, err)
	}

	hrefs, err := s.fetcher.FetchLinks(ctx, s.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: listing page %s: %w", domain.ErrFetch, s.cfg.BaseURL, err)
	}

	seen := make(map[string]struct{}, len(hrefs))
	links := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		if !strings.Contains(href, s.cfg.PathPattern) {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		link := abs.String()
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links, nil
}

// Run scrapes and saves the batch, returning the records and where they were saved.
func (s *Service) Run(ctx context.Context, limit int, sink Sink) ([]domain.ArticleRecord, string, error) {
	records, err := s.ScrapeLatest(ctx, limit)
	if err != nil {
		return nil, "", err
	}
	location, err := sink.Save(ctx, records)
	if err != nil {
		return records, "", fmt.Errorf("save articles: %w", err)
	}
	return records, location, nil
}

func failureStatus(err error) string {
	if errors.Is(err, domain.ErrParse) {
		return "parse_error"
	}
	return "fetch_error"
}
