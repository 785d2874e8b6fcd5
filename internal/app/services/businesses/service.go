// Package businesses manages merchant onboarding, profile updates, and
// the dashboard view.
package businesses

import (
	"context"
	"fmt"
	"strings"

	"github.com/stampd-app/stampd/internal/app/domain/business"
	"github.com/stampd-app/stampd/internal/app/domain/program"
	"github.com/stampd-app/stampd/internal/app/storage"
	"github.com/stampd-app/stampd/pkg/logger"
)

// Dashboard is the merchant overview: profile, lifetime totals, and the
// most recent customer activity.
type Dashboard struct {
	Business       business.Business `json:"business"`
	RecentActivity []program.Record  `json:"recent_activity"`
}

// Service manages business profiles and configuration.
type Service struct {
	store    storage.BusinessStore
	programs storage.ProgramStore
	log      *logger.Logger
}

// New constructs a business service.
func New(store storage.BusinessStore, programs storage.ProgramStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("businesses")
	}
	return &Service{store: store, programs: programs, log: log}
}

// Register onboards a new business. The ID is usually the owning user's
// ID so a scanned business maps straight to its signed-in operator.
func (s *Service) Register(ctx context.Context, biz business.Business) (business.Business, error) {
	biz.Name = strings.TrimSpace(biz.Name)
	biz.Category = strings.TrimSpace(biz.Category)
	biz.PrizeOffered = strings.TrimSpace(biz.PrizeOffered)

	if biz.Name == "" {
		return business.Business{}, fmt.Errorf("business name is required")
	}
	if biz.StampsNeeded < 1 {
		return business.Business{}, fmt.Errorf("stamps_needed must be at least 1")
	}
	if biz.MinimumPurchase < 0 {
		return business.Business{}, fmt.Errorf("minimum_purchase cannot be negative")
	}
	if biz.Category == "" {
		biz.Category = "Other"
	} else if !validCategory(biz.Category) {
		return business.Business{}, fmt.Errorf("unknown category %q", biz.Category)
	}

	created, err := s.store.CreateBusiness(ctx, biz)
	if err != nil {
		return business.Business{}, err
	}
	s.log.WithField("business_id", created.ID).
		WithField("name", created.Name).
		Info("business registered")
	return created, nil
}

// Update modifies profile fields. Lifetime counters are owned by the scan
// pipeline and cannot be changed here.
func (s *Service) Update(ctx context.Context, biz business.Business) (business.Business, error) {
	if strings.TrimSpace(biz.ID) == "" {
		return business.Business{}, fmt.Errorf("business id is required")
	}
	if biz.StampsNeeded < 1 {
		return business.Business{}, fmt.Errorf("stamps_needed must be at least 1")
	}
	if biz.Category != "" && !validCategory(biz.Category) {
		return business.Business{}, fmt.Errorf("unknown category %q", biz.Category)
	}

	updated, err := s.store.UpdateBusiness(ctx, biz)
	if err != nil {
		return business.Business{}, err
	}
	s.log.WithField("business_id", updated.ID).Info("business updated")
	return updated, nil
}

// Get returns one business profile.
func (s *Service) Get(ctx context.Context, id string) (business.Business, error) {
	return s.store.GetBusiness(ctx, id)
}

// List returns businesses for the discover screen, optionally filtered by
// category.
func (s *Service) List(ctx context.Context, category string) ([]business.Business, error) {
	if category != "" && !validCategory(category) {
		return nil, fmt.Errorf("unknown category %q", category)
	}
	return s.store.ListBusinesses(ctx, category)
}

// Dashboard assembles the merchant overview.
func (s *Service) Dashboard(ctx context.Context, businessID string, activityLimit int) (Dashboard, error) {
	biz, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return Dashboard{}, err
	}

	if activityLimit <= 0 {
		activityLimit = 10
	}
	recent, err := s.programs.ListProgramsForBusiness(ctx, businessID, activityLimit)
	if err != nil {
		return Dashboard{}, err
	}

	return Dashboard{Business: biz, RecentActivity: recent}, nil
}

func validCategory(category string) bool {
	for _, c := range business.Categories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}
