package indexing

import (
	"context"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// Index stores article vectors.
type Index interface {
	Upsert(ctx context.Context, vectors []domain.IndexedVector) error
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// Summarizer condenses an article lead into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}
