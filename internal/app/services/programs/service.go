// Package programs implements the redemption orchestrator: the
// read-decide-write-report cycle behind every scan event.
package programs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stampd-app/stampd/internal/app/domain/analytics"
	"github.com/stampd-app/stampd/internal/app/domain/business"
	"github.com/stampd-app/stampd/internal/app/domain/program"
	"github.com/stampd-app/stampd/internal/app/metrics"
	"github.com/stampd-app/stampd/internal/app/services/feed"
	"github.com/stampd-app/stampd/internal/app/storage"
	"github.com/stampd-app/stampd/pkg/logger"
)

var (
	// ErrConfigNotFound means the business is unknown or its program
	// configuration is missing/malformed. Nothing is mutated.
	ErrConfigNotFound = errors.New("business program configuration not found")
	// ErrScanConflict means a concurrent scan of the same customer won the
	// write race. The operator should simply re-scan.
	ErrScanConflict = errors.New("scan conflict, please re-scan")
)

// ProgramWithBusiness pairs a customer's progress with the business
// profile needed to render it.
type ProgramWithBusiness struct {
	Program  program.Record    `json:"program"`
	Business business.Business `json:"business"`
}

// Service sequences scan events against the program ledger.
type Service struct {
	programs   storage.ProgramStore
	businesses storage.BusinessStore
	counters   storage.AnalyticsStore
	feed       *feed.Broadcaster
	log        *logger.Logger
	now        func() time.Time
}

// New constructs the orchestrator. The feed broadcaster may be nil.
func New(programs storage.ProgramStore, businesses storage.BusinessStore, counters storage.AnalyticsStore, broadcaster *feed.Broadcaster, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("programs")
	}
	return &Service{
		programs:   programs,
		businesses: businesses,
		counters:   counters,
		feed:       broadcaster,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Scan handles one smart-scanner event: add a stamp, or redeem when the
// card is full. Steps are strictly sequential; each failure aborts the
// remaining steps without rolling back prior ones.
func (s *Service) Scan(ctx context.Context, customerID, businessID string) (program.Outcome, error) {
	return s.process(ctx, customerID, businessID, program.Apply)
}

// RedeemPrize handles the dedicated prize scanner: it only converts an
// eligible card, reports how many stamps are missing otherwise, and
// enrolls unknown customers with their first stamp.
func (s *Service) RedeemPrize(ctx context.Context, customerID, businessID string) (program.Outcome, error) {
	return s.process(ctx, customerID, businessID, program.ApplyPrizeOnly)
}

type transitionFunc func(*program.Record, int) (program.Record, program.Outcome, error)

func (s *Service) process(ctx context.Context, customerID, businessID string, apply transitionFunc) (program.Outcome, error) {
	start := s.now()

	customerID = strings.TrimSpace(customerID)
	businessID = strings.TrimSpace(businessID)
	if customerID == "" {
		return program.Outcome{}, fmt.Errorf("customer id is required")
	}
	if businessID == "" {
		return program.Outcome{}, fmt.Errorf("business id is required")
	}

	// Step 1: business configuration. Missing or malformed config aborts
	// before anything is written.
	biz, err := s.businesses.GetBusiness(ctx, businessID)
	if err != nil {
		metrics.RecordScan("config_not_found", s.now().Sub(start))
		return program.Outcome{}, fmt.Errorf("%w: %s", ErrConfigNotFound, businessID)
	}
	if biz.StampsNeeded < 1 {
		metrics.RecordScan("config_not_found", s.now().Sub(start))
		return program.Outcome{}, fmt.Errorf("%w: invalid stamps_needed for %s", ErrConfigNotFound, businessID)
	}

	// Step 2: current record. Absence means not enrolled, not an error.
	var prev *program.Record
	rec, err := s.programs.GetProgram(ctx, customerID, businessID)
	switch {
	case err == nil:
		prev = &rec
	case errors.Is(err, storage.ErrNotFound):
		prev = nil
	default:
		metrics.RecordScan("error", s.now().Sub(start))
		return program.Outcome{}, fmt.Errorf("load program: %w", err)
	}

	// Step 3: pure transition.
	next, outcome, err := apply(prev, biz.StampsNeeded)
	if err != nil {
		metrics.RecordScan("error", s.now().Sub(start))
		return program.Outcome{}, err
	}

	if !outcome.Mutates() {
		metrics.RecordScan(string(outcome.Kind), s.now().Sub(start))
		return outcome, nil
	}

	// Step 4: conditional persist. A lost race means another scan of the
	// same customer landed first; surface it instead of overwriting.
	next.CustomerID = customerID
	next.BusinessID = businessID
	if _, err := s.programs.UpsertProgram(ctx, prev, next); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			metrics.RecordScan("conflict", s.now().Sub(start))
			return program.Outcome{}, ErrScanConflict
		}
		metrics.RecordScan("error", s.now().Sub(start))
		return program.Outcome{}, fmt.Errorf("persist program: %w", err)
	}

	// Steps 5-6: aggregate counters. These are independent idempotent-ish
	// increments; a failure here is logged but does not undo the stamp.
	s.bumpCounters(ctx, businessID, outcome)

	if s.feed != nil {
		s.feed.Publish(feed.Event{
			BusinessID: businessID,
			CustomerID: customerID,
			Outcome:    outcome.Kind,
			NewCount:   outcome.NewCount,
			At:         s.now(),
		})
	}

	s.log.WithField("customer_id", customerID).
		WithField("business_id", businessID).
		WithField("outcome", string(outcome.Kind)).
		Info("scan processed")
	metrics.RecordScan(string(outcome.Kind), s.now().Sub(start))
	return outcome, nil
}

func (s *Service) bumpCounters(ctx context.Context, businessID string, outcome program.Outcome) {
	day := analytics.DayKey(s.now())

	switch outcome.Kind {
	case program.OutcomePrizeRedeemed:
		if err := s.businesses.IncrementBusinessCounter(ctx, businessID, business.CounterRewardsRedeemed, 1); err != nil {
			s.log.WithError(err).WithField("business_id", businessID).Warn("increment rewards counter")
		}
		if err := s.counters.IncrementDailyCounter(ctx, businessID, day, analytics.FieldPrizesRedeemed, 1); err != nil {
			s.log.WithError(err).WithField("business_id", businessID).Warn("increment daily prize counter")
		}
	case program.OutcomeStampAdded:
		if err := s.businesses.IncrementBusinessCounter(ctx, businessID, business.CounterTotalStamps, 1); err != nil {
			s.log.WithError(err).WithField("business_id", businessID).Warn("increment stamps counter")
		}
		if outcome.NewCustomer {
			if err := s.businesses.IncrementBusinessCounter(ctx, businessID, business.CounterTotalCustomers, 1); err != nil {
				s.log.WithError(err).WithField("business_id", businessID).Warn("increment customers counter")
			}
		}
		if err := s.counters.IncrementDailyCounter(ctx, businessID, day, analytics.FieldStampsGiven, 1); err != nil {
			s.log.WithError(err).WithField("business_id", businessID).Warn("increment daily stamp counter")
		}
	}
}

// Get returns a single program record.
func (s *Service) Get(ctx context.Context, customerID, businessID string) (program.Record, error) {
	return s.programs.GetProgram(ctx, customerID, businessID)
}

// ListForCustomer returns the customer's programs joined with business
// profiles, for the loyalty-card wallet screen. Programs whose business
// has disappeared are skipped.
func (s *Service) ListForCustomer(ctx context.Context, customerID string) ([]ProgramWithBusiness, error) {
	records, err := s.programs.ListProgramsForCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	result := make([]ProgramWithBusiness, 0, len(records))
	for _, rec := range records {
		biz, err := s.businesses.GetBusiness(ctx, rec.BusinessID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result = append(result, ProgramWithBusiness{Program: rec, Business: biz})
	}
	return result, nil
}

// RecentForBusiness returns the most recently active program records for
// a business, newest first.
func (s *Service) RecentForBusiness(ctx context.Context, businessID string, limit int) ([]program.Record, error) {
	return s.programs.ListProgramsForBusiness(ctx, businessID, limit)
}
