// Package usage describes embedding token consumption over a reporting period.
package usage

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod maps a query value to a Period. Empty means the current day.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodMonth:
		return PeriodMonth, nil
	default:
		return "", fmt.Errorf("%w: unknown usage period %q (want day or month)", domain.ErrInvalidQuery, s)
	}
}

// Bounds returns the UTC period containing now as [start, end).
func (p Period) Bounds(now time.Time) (time.Time, time.Time) {
	now = now.UTC()
	if p == PeriodMonth {
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// Report is the embedding token usage of one provider for a period.
// TokensLimit 0 and TokensRemaining -1 mean unlimited.
type Report struct {
	Period          Period    `json:"period"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	Provider        string    `json:"provider"`
	TokensUsed      int64     `json:"tokens_used"`
	TokensLimit     int64     `json:"tokens_limit"`
	TokensRemaining int64     `json:"tokens_remaining"`
	Exhausted       bool      `json:"exhausted"`
}

// NewReport derives the exhausted flag from the limit and remaining tokens.
func NewReport(p Period, start, end time.Time, provider string, used, limit, remaining int64) Report {
	return Report{
		Period:          p,
		PeriodStart:     start,
		PeriodEnd:       end,
		Provider:        provider,
		TokensUsed:      used,
		TokensLimit:     limit,
		TokensRemaining: remaining,
		Exhausted:       limit > 0 && remaining <= 0,
	}
}
