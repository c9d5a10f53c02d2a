// Package search ranks indexed articles against a free-text query.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsdex/internal/domain"
	"github.com/kailas-cloud/newsdex/internal/domain/query"
	"github.com/kailas-cloud/newsdex/internal/domain/ranking"
	"github.com/kailas-cloud/newsdex/internal/metrics"
	"github.com/kailas-cloud/newsdex/internal/retry"
)

const (
	// DefaultTopK is the result count when the caller has no preference.
	DefaultTopK = 5
	// DefaultMinScore drops weak matches.
	DefaultMinScore = 0.15
	// CandidateFactor over-fetches candidates so dedup and thresholding still fill topK.
	CandidateFactor = 3
)

// Options narrows a search.
type Options struct {
	// Source restricts candidates to one article source. Empty means all sources.
	Source string
}

// Service blends semantic similarity with keyword matches. Safe for concurrent use.
type Service struct {
	index  Index
	embed  Embedder
	retry  retry.Policy
	logger *zap.Logger
}

// New creates a ranker. policy wraps the embedding and index calls.
func New(index Index, embed Embedder, policy retry.Policy, logger *zap.Logger) *Service {
	return &Service{index: index, embed: embed, retry: policy, logger: logger}
}

// Search returns at most topK articles scoring at least minScore, best first.
func (s *Service) Search(ctx context.Context, q string, topK int, minScore float64) ([]domain.QueryResult, error) {
	return s.SearchWithOptions(ctx, q, topK, minScore, Options{})
}

// SearchWithOptions is Search with a metadata pre-filter.
func (s *Service) SearchWithOptions(
	ctx context.Context, q string, topK int, minScore float64, opts Options,
) ([]domain.QueryResult, error) {
	start := time.Now()
	results, err := s.search(ctx, q, topK, minScore, opts)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	metrics.SearchResults.Observe(float64(len(results)))
	return results, nil
}

func (s *Service) search(
	ctx context.Context, q string, topK int, minScore float64, opts Options,
) ([]domain.QueryResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidQuery, topK)
	}

	terms := query.Terms(q)

	var emb domain.EmbeddingResult
	err := s.retry.Do(ctx, "embed query", func(ctx context.Context) error {
		var err error
		emb, err = s.embed.Embed(ctx, q)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: vectorize query: %w", domain.ErrEmbedding, err)
	}
	domain.UsageFromContext(ctx).AddTokens(emb.TotalTokens)

	var candidates []domain.Candidate
	vq := domain.VectorQuery{Vector: emb.Embedding, K: topK * CandidateFactor, Source: opts.Source}
	err = s.retry.Do(ctx, "query index", func(ctx context.Context) error {
		var err error
		candidates, err = s.index.Query(ctx, vq)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query candidates: %w", domain.ErrIndex, err)
	}
	metrics.SearchCandidates.Observe(float64(len(candidates)))

	results := Rank(candidates, terms, topK, minScore)

	s.logger.Debug("Search completed",
		zap.String("query", q),
		zap.Strings("terms", terms),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// Rank rescores candidates in index order and keeps the first topK distinct URLs
// that reach minScore, then sorts them by score.
func Rank(candidates []domain.Candidate, terms []string, topK int, minScore float64) []domain.QueryResult {
	results := make([]domain.QueryResult, 0, min(topK, len(candidates)))
	seen := make(map[string]struct{}, len(candidates))

	for _, c := range candidates {
		if len(results) >= topK {
			break
		}
		md := c.Metadata
		if md.URL == "" {
			continue
		}
		if _, dup := seen[md.URL]; dup {
			continue
		}

		score := ranking.Score(c.Score, terms, md.Heading, md.ContentPreview)
		if score < minScore {
			continue
		}
		seen[md.URL] = struct{}{}

		summary := md.Summary
		if summary == "" {
			summary = domain.NoSummary
		}
		results = append(results, domain.QueryResult{
			Score:   score,
			URL:     md.URL,
			Heading: md.Heading,
			Summary: summary,
			Source:  md.Source,
		})
	}

	ranking.Sort(results)
	return results
}
