// Package storage defines the persistence interfaces consumed by the
// Stampd services, plus the sentinel errors stores must return.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/stampd-app/stampd/internal/app/domain/analytics"
	"github.com/stampd-app/stampd/internal/app/domain/business"
	"github.com/stampd-app/stampd/internal/app/domain/program"
	"github.com/stampd-app/stampd/internal/app/domain/session"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write loses a race: the
	// stored record no longer matches the expected prior state.
	ErrConflict = errors.New("record changed concurrently")
	// ErrExists is returned when a create collides with an existing key.
	ErrExists = errors.New("record already exists")
)

// ProgramStore persists per-(customer, business) stamp records.
//
// UpsertProgram is the conditional-write primitive the redemption
// orchestrator relies on: prev == nil asserts no record exists yet
// (insert), otherwise the write only applies if the stored record still
// matches prev's CurrentStamps and Claimed. A failed condition yields
// ErrConflict and the store is left untouched.
type ProgramStore interface {
	GetProgram(ctx context.Context, customerID, businessID string) (program.Record, error)
	ListProgramsForCustomer(ctx context.Context, customerID string) ([]program.Record, error)
	ListProgramsForBusiness(ctx context.Context, businessID string, limit int) ([]program.Record, error)
	UpsertProgram(ctx context.Context, prev *program.Record, next program.Record) (program.Record, error)
}

// BusinessStore persists business profiles and configuration.
type BusinessStore interface {
	CreateBusiness(ctx context.Context, biz business.Business) (business.Business, error)
	UpdateBusiness(ctx context.Context, biz business.Business) (business.Business, error)
	GetBusiness(ctx context.Context, id string) (business.Business, error)
	ListBusinesses(ctx context.Context, category string) ([]business.Business, error)
	IncrementBusinessCounter(ctx context.Context, businessID, field string, delta int) error
}

// AnalyticsStore persists per-day counters. IncrementDailyCounter has
// upsert semantics: the day's row is created on first touch and merged
// commutatively afterwards.
type AnalyticsStore interface {
	IncrementDailyCounter(ctx context.Context, businessID, day, field string, delta int) error
	GetDailyCounter(ctx context.Context, businessID, day string) (analytics.DailyCounter, error)
	ListDailyCounters(ctx context.Context, businessID, from, to string) ([]analytics.DailyCounter, error)
	PruneDailyCounters(ctx context.Context, before string) (int, error)
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u session.User) (session.User, error)
	GetUser(ctx context.Context, id string) (session.User, error)
	GetUserByEmail(ctx context.Context, email string) (session.User, error)
}

// SessionStore persists sign-in sessions keyed by token hash.
type SessionStore interface {
	CreateSession(ctx context.Context, s session.Session) (session.Session, error)
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (session.Session, error)
	TouchSession(ctx context.Context, id string, seenAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}
