package domain

import (
	"context"
	"errors"
)

// Capability sentinels. Adapters wrap their failures with one of these so callers
// can tell which external dependency broke without inspecting library error types.
var (
	// ErrFetch signals that an article or listing page could not be retrieved.
	ErrFetch = errors.New("fetch failed")
	// ErrParse signals that a fetched page could not be turned into an article.
	ErrParse = errors.New("parse failed")
	// ErrEmbedding signals that the embedding provider could not vectorize text.
	ErrEmbedding = errors.New("embedding failed")
	// ErrSummarization signals a summarizer failure.
	ErrSummarization = errors.New("summarization failed")
	// ErrIndex signals a vector index failure (upsert, query or stats).
	ErrIndex = errors.New("vector index failed")
	// ErrConfig signals missing credentials or invalid settings.
	ErrConfig = errors.New("invalid configuration")
)

var (
	// ErrInvalidQuery signals bad search parameters.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrMetadataTooLarge signals metadata above the per-record ceiling.
	ErrMetadataTooLarge = errors.New("metadata too large")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrIndexNotReady signals that the vector index has not been created yet.
	ErrIndexNotReady = errors.New("vector index not ready")
)

// IsFatal reports whether err must abort the current run.
// Per-article fetch, parse and summarization failures are isolated by callers;
// embedding, index and configuration failures are not.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, ErrConfig), errors.Is(err, ErrEmbedding), errors.Is(err, ErrIndex):
		return true
	case errors.Is(err, ErrEmbeddingProviderError), errors.Is(err, ErrEmbeddingQuotaExceeded):
		return true
	default:
		return false
	}
}

// IsPermanent reports whether retrying the operation cannot change the outcome.
func IsPermanent(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, ErrConfig),
		errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrVectorDimMismatch),
		errors.Is(err, ErrMetadataTooLarge),
		errors.Is(err, ErrEmbeddingQuotaExceeded):
		return true
	default:
		return false
	}
}
