package usage

import embeddinguc "github.com/kailas-cloud/newsdex/internal/usecase/embedding"

// BudgetReader exposes token counters. Implemented by embedding.BudgetTracker.
type BudgetReader interface {
	Snapshot() embeddinguc.BudgetSnapshot
	RemainingDaily() int64
	RemainingMonthly() int64
}
