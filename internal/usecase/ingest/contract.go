package ingest

import (
	"context"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// Fetcher retrieves listing links and articles from the news site.
type Fetcher interface {
	// FetchLinks returns every <a href> on the page, unresolved.
	FetchLinks(ctx context.Context, pageURL string) ([]string, error)
	FetchArticle(ctx context.Context, articleURL string) (domain.ArticleRecord, error)
}

// Sink persists a scraped batch and returns where it went (file path or topic).
type Sink interface {
	Save(ctx context.Context, records []domain.ArticleRecord) (string, error)
}
