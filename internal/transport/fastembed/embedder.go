//go:build cgo

package fastembed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	fastembed "github.com/anush008/fastembed-go"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/metrics"
)

var models = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
}

// Embedder vectorizes text with a local ONNX model. Token counts are always zero.
type Embedder struct {
	mu    sync.Mutex
	model *fastembed.FlagEmbedding
	name  string
}

// NewEmbedder loads the model, downloading it into CacheDir on first use.
func NewEmbedder(cfg Config) (*Embedder, error) {
	model, ok := models[cfg.Model]
	if !ok {
		_, err := ModelDimensions(cfg.Model)
		return nil, err
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}
	showProgress := false

	flag, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", domain.ErrEmbeddingProviderError, cfg.Model, err)
	}
	return &Embedder{model: flag, name: cfg.Model}, nil
}

// Embed vectorizes one text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.BatchEmbed(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{Embedding: res.Embeddings[0]}, nil
}

// BatchEmbed vectorizes texts without instruction prefixes.
// ONNX inference is not interruptible; ctx is checked before it starts.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.BatchEmbeddingResult{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	vecs, err := e.model.Embed(texts, DefaultBatchSize)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.name, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(providerName, e.name, "inference").Inc()
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues(providerName, e.name, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(providerName, e.name).Observe(time.Since(start).Seconds())

	return domain.BatchEmbeddingResult{Embeddings: vecs}, nil
}

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Destroy()
	e.model = nil
	return err
}
