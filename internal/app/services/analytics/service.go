// Package analytics reads the per-day scan counters behind the dashboard
// charts and owns their retention.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stampd-app/stampd/internal/app/domain/analytics"
	"github.com/stampd-app/stampd/internal/app/storage"
	"github.com/stampd-app/stampd/pkg/logger"
)

// Service exposes daily counter queries.
type Service struct {
	store storage.AnalyticsStore
	log   *logger.Logger
	now   func() time.Time
}

// New constructs an analytics service.
func New(store storage.AnalyticsStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("analytics")
	}
	return &Service{store: store, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Today returns the current day's counter, zero-valued if no scans yet.
func (s *Service) Today(ctx context.Context, businessID string) (analytics.DailyCounter, error) {
	day := analytics.DayKey(s.now())
	counter, err := s.store.GetDailyCounter(ctx, businessID, day)
	if errors.Is(err, storage.ErrNotFound) {
		date, _ := time.Parse("2006-01-02", day)
		return analytics.DailyCounter{BusinessID: businessID, Day: day, Date: date}, nil
	}
	return counter, err
}

// Range returns counters and totals over an inclusive day range.
func (s *Service) Range(ctx context.Context, businessID, from, to string) (analytics.Summary, error) {
	if _, err := time.Parse("2006-01-02", from); err != nil {
		return analytics.Summary{}, fmt.Errorf("invalid from day %q: %w", from, err)
	}
	if _, err := time.Parse("2006-01-02", to); err != nil {
		return analytics.Summary{}, fmt.Errorf("invalid to day %q: %w", to, err)
	}
	if from > to {
		return analytics.Summary{}, fmt.Errorf("from day %s is after to day %s", from, to)
	}

	days, err := s.store.ListDailyCounters(ctx, businessID, from, to)
	if err != nil {
		return analytics.Summary{}, err
	}

	summary := analytics.Summary{BusinessID: businessID, From: from, To: to, Days: days}
	for _, day := range days {
		summary.StampsGiven += day.StampsGiven
		summary.PrizesRedeemed += day.PrizesRedeemed
	}
	return summary, nil
}

// LastNDays is a convenience wrapper ending today.
func (s *Service) LastNDays(ctx context.Context, businessID string, n int) (analytics.Summary, error) {
	if n < 1 {
		return analytics.Summary{}, fmt.Errorf("day count must be positive, got %d", n)
	}
	now := s.now()
	from := analytics.DayKey(now.AddDate(0, 0, -(n - 1)))
	return s.Range(ctx, businessID, from, analytics.DayKey(now))
}

// Prune removes counters older than the retention window and returns the
// number deleted.
func (s *Service) Prune(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays < 1 {
		return 0, fmt.Errorf("retention must be at least one day")
	}
	before := analytics.DayKey(s.now().AddDate(0, 0, -retentionDays))
	removed, err := s.store.PruneDailyCounters(ctx, before)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.log.WithField("removed", removed).WithField("before", before).Info("pruned daily counters")
	}
	return removed, nil
}
