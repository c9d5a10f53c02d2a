// Package indexing turns article records into stored vectors.
package indexing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/metrics"
	"github.com/kailas-cloud/newsdex/internal/retry"
)

// DefaultBatchSize is the number of vectors sent per upsert.
const DefaultBatchSize = 100

// Report summarizes one Store call.
type Report struct {
	Received int
	Stored   int
	Skipped  int // duplicate URLs and records without a URL
	Batches  int
	// Existing is the index size before storing, -1 when unknown.
	Existing int
}

// Service summarizes, embeds and upserts articles.
type Service struct {
	index      Index
	embed      domain.Embedder
	summarizer Summarizer
	batchSize  int
	retry      retry.Policy
	logger     *zap.Logger
}

// New creates the pipeline. summarizer may be nil; summaries then fall back to the first paragraph.
func New(
	index Index, embed domain.Embedder, summarizer Summarizer,
	batchSize int, policy retry.Policy, logger *zap.Logger,
) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{
		index:      index,
		embed:      embed,
		summarizer: summarizer,
		batchSize:  batchSize,
		retry:      policy,
		logger:     logger,
	}
}

// Store indexes records. Embedding happens before the first upsert, so an embedding
// failure writes nothing. A failed batch stops the run; earlier batches stay written.
func (s *Service) Store(ctx context.Context, records []domain.ArticleRecord) (Report, error) {
	report := Report{Received: len(records), Existing: -1}

	if stats, err := s.index.Stats(ctx); err != nil {
		s.logger.Warn("Failed to read index stats", zap.Error(err))
	} else {
		report.Existing = stats.TotalCount
		s.logger.Info("Existing articles in index", zap.Int("count", stats.TotalCount))
	}

	valid := make([]domain.ArticleRecord, 0, len(records))
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			s.logger.Warn("Skipping invalid article", zap.String("heading", rec.Heading), zap.Error(err))
			continue
		}
		valid = append(valid, rec)
	}

	unique := Dedupe(valid)
	report.Skipped = len(records) - len(unique)
	if report.Skipped > 0 {
		s.logger.Info("Skipped duplicate articles", zap.Int("count", report.Skipped))
	}
	if len(unique) == 0 {
		return report, nil
	}

	texts := make([]string, len(unique))
	for i, rec := range unique {
		texts[i] = rec.EmbeddingText()
	}

	var emb domain.BatchEmbeddingResult
	err := s.retry.Do(ctx, "embed articles", func(ctx context.Context) error {
		var err error
		emb, err = domain.EmbedAll(ctx, s.embed, texts)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("%w: vectorize %d articles: %w", domain.ErrEmbedding, len(texts), err)
	}

	vectors := make([]domain.IndexedVector, 0, len(unique))
	for i, rec := range unique {
		md := domain.NewArticleMetadata(rec, s.summarize(ctx, rec))
		if err := md.Validate(); err != nil {
			return report, fmt.Errorf("%w: article %s: %w", domain.ErrIndex, rec.URL, err)
		}
		vectors = append(vectors, domain.IndexedVector{
			ID:        rec.ID(),
			Embedding: emb.Embeddings[i],
			Metadata:  md,
		})
	}

	for start := 0; start < len(vectors); start += s.batchSize {
		batch := vectors[start:min(start+s.batchSize, len(vectors))]
		err := s.retry.Do(ctx, "upsert batch", func(ctx context.Context) error {
			return s.index.Upsert(ctx, batch)
		})
		if err != nil {
			metrics.IndexFailedBatchesTotal.Inc()
			return report, fmt.Errorf("%w: upsert batch at offset %d: %w", domain.ErrIndex, start, err)
		}
		report.Batches++
		report.Stored += len(batch)
		metrics.IndexUpsertedVectorsTotal.Add(float64(len(batch)))
		s.logger.Info("Stored batch", zap.Int("size", len(batch)), zap.Int("batch", report.Batches))
	}

	return report, nil
}

// summarize never fails: errors degrade to the first paragraph.
func (s *Service) summarize(ctx context.Context, rec domain.ArticleRecord) string {
	if s.summarizer == nil {
		return rec.FirstParagraph()
	}
	input := rec.SummaryInput()
	if input == "" {
		return ""
	}

	var summary string
	err := s.retry.Do(ctx, "summarize", func(ctx context.Context) error {
		var err error
		summary, err = s.summarizer.Summarize(ctx, input)
		return err
	})
	if err != nil {
		s.logger.Warn("Summarization failed, using first paragraph",
			zap.String("url", rec.URL),
			zap.Error(err),
		)
		return rec.FirstParagraph()
	}
	return summary
}

// Dedupe keeps the first record per URL, preserving order.
func Dedupe(records []domain.ArticleRecord) []domain.ArticleRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]domain.ArticleRecord, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.URL]; dup {
			continue
		}
		seen[rec.URL] = struct{}{}
		out = append(out, rec)
	}
	return out
}
