package app

import (
	"context"
	"fmt"

	analyticssvc "github.com/stampd-app/stampd/internal/app/services/analytics"
	authsvc "github.com/stampd-app/stampd/internal/app/services/auth"
	businessessvc "github.com/stampd-app/stampd/internal/app/services/businesses"
	"github.com/stampd-app/stampd/internal/app/services/feed"
	programssvc "github.com/stampd-app/stampd/internal/app/services/programs"
	"github.com/stampd-app/stampd/internal/app/storage"
	"github.com/stampd-app/stampd/internal/app/storage/memory"
	"github.com/stampd-app/stampd/internal/app/system"
	"github.com/stampd-app/stampd/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Programs   storage.ProgramStore
	Businesses storage.BusinessStore
	Analytics  storage.AnalyticsStore
	Users      storage.UserStore
	Sessions   storage.SessionStore
}

// Options tunes optional application behaviour.
type Options struct {
	JWTSecret      string
	RetentionDays  int
	RollupSchedule string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Programs   *programssvc.Service
	Businesses *businessessvc.Service
	Analytics  *analyticssvc.Service
	Auth       *authsvc.Service
	Feed       *feed.Broadcaster
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Programs == nil {
		stores.Programs = mem
	}
	if stores.Businesses == nil {
		stores.Businesses = mem
	}
	if stores.Analytics == nil {
		stores.Analytics = mem
	}
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Sessions == nil {
		stores.Sessions = mem
	}

	manager := system.NewManager()

	broadcaster := feed.NewBroadcaster(log)
	programService := programssvc.New(stores.Programs, stores.Businesses, stores.Analytics, broadcaster, log)
	businessService := businessessvc.New(stores.Businesses, stores.Programs, log)
	analyticsService := analyticssvc.New(stores.Analytics, log)
	authService, err := authsvc.New(stores.Users, stores.Sessions, []byte(opts.JWTSecret), log)
	if err != nil {
		return nil, fmt.Errorf("configure auth: %w", err)
	}

	rollup := analyticssvc.NewRollup(analyticsService, opts.RetentionDays, opts.RollupSchedule, log)
	for _, svc := range []system.Service{broadcaster, rollup} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:    manager,
		log:        log,
		Programs:   programService,
		Businesses: businessService,
		Analytics:  analyticsService,
		Auth:       authService,
		Feed:       broadcaster,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
