// Package usage reports embedding token consumption against the configured budget.
package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/newsdex/internal/domain/usage"
)

// Service handles usage reporting.
type Service struct {
	br       BudgetReader
	provider string
	now      func() time.Time
}

// New creates a Service. br can be nil (no budget configured); reports are then unlimited with zero usage.
func New(br BudgetReader, provider string) *Service {
	return &Service{br: br, provider: provider, now: time.Now}
}

// GetReport builds a usage report for the period containing now.
func (s *Service) GetReport(_ context.Context, period domusage.Period) domusage.Report {
	start, end := period.Bounds(s.now())
	if s.br == nil {
		return domusage.NewReport(period, start, end, s.provider, 0, 0, -1)
	}

	snap := s.br.Snapshot()
	if period == domusage.PeriodMonth {
		return domusage.NewReport(period, start, end, snap.Provider,
			snap.MonthlyUsed, snap.MonthlyLimit, s.br.RemainingMonthly())
	}
	return domusage.NewReport(period, start, end, snap.Provider,
		snap.DailyUsed, snap.DailyLimit, s.br.RemainingDaily())
}
