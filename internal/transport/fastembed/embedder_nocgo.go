//go:build !cgo

package fastembed

import (
	"context"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// Embedder is unavailable without cgo.
type Embedder struct{}

// NewEmbedder validates the model and reports ErrNotAvailable.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if _, err := ModelDimensions(cfg.Model); err != nil {
		return nil, err
	}
	return nil, ErrNotAvailable
}

// Embed always fails without cgo.
func (e *Embedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, ErrNotAvailable
}

// BatchEmbed always fails without cgo.
func (e *Embedder) BatchEmbed(_ context.Context, _ []string) (domain.BatchEmbeddingResult, error) {
	return domain.BatchEmbeddingResult{}, ErrNotAvailable
}

// Close is a no-op.
func (e *Embedder) Close() error { return nil }
