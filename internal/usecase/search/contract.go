package search

import (
	"context"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// Index retrieves nearest-neighbour candidates.
type Index interface {
	Query(ctx context.Context, q domain.VectorQuery) ([]domain.Candidate, error)
}

// Embedder vectorizes the raw query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
