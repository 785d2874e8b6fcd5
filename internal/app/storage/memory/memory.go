// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stampd-app/stampd/internal/app/domain/analytics"
	"github.com/stampd-app/stampd/internal/app/domain/business"
	"github.com/stampd-app/stampd/internal/app/domain/program"
	"github.com/stampd-app/stampd/internal/app/domain/session"
	"github.com/stampd-app/stampd/internal/app/storage"
)

// Store is an in-memory implementation of every storage interface.
type Store struct {
	mu             sync.RWMutex
	programs       map[string]program.Record // customerID + "/" + businessID
	businesses     map[string]business.Business
	dailyCounters  map[string]analytics.DailyCounter // businessID + "/" + day
	users          map[string]session.User
	usersByEmail   map[string]string
	sessions       map[string]session.Session
	sessionsByHash map[string]string
}

var _ storage.ProgramStore = (*Store)(nil)
var _ storage.BusinessStore = (*Store)(nil)
var _ storage.AnalyticsStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		programs:       make(map[string]program.Record),
		businesses:     make(map[string]business.Business),
		dailyCounters:  make(map[string]analytics.DailyCounter),
		users:          make(map[string]session.User),
		usersByEmail:   make(map[string]string),
		sessions:       make(map[string]session.Session),
		sessionsByHash: make(map[string]string),
	}
}

func programKey(customerID, businessID string) string {
	return customerID + "/" + businessID
}

func counterKey(businessID, day string) string {
	return businessID + "/" + day
}

// ProgramStore implementation ------------------------------------------------

func (s *Store) GetProgram(_ context.Context, customerID, businessID string) (program.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.programs[programKey(customerID, businessID)]
	if !ok {
		return program.Record{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) ListProgramsForCustomer(_ context.Context, customerID string) ([]program.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []program.Record
	for _, rec := range s.programs {
		if rec.CustomerID == customerID {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BusinessID < result[j].BusinessID })
	return result, nil
}

func (s *Store) ListProgramsForBusiness(_ context.Context, businessID string, limit int) ([]program.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []program.Record
	for _, rec := range s.programs {
		if rec.BusinessID == businessID {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt.After(result[j].UpdatedAt) })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) UpsertProgram(_ context.Context, prev *program.Record, next program.Record) (program.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := programKey(next.CustomerID, next.BusinessID)
	now := time.Now().UTC()
	current, exists := s.programs[key]

	if prev == nil {
		if exists {
			return program.Record{}, storage.ErrConflict
		}
		next.CreatedAt = now
		next.UpdatedAt = now
		s.programs[key] = next
		return next, nil
	}

	if !exists {
		return program.Record{}, storage.ErrNotFound
	}
	if current.CurrentStamps != prev.CurrentStamps || current.Claimed != prev.Claimed {
		return program.Record{}, storage.ErrConflict
	}

	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = now
	s.programs[key] = next
	return next, nil
}

// BusinessStore implementation -----------------------------------------------

func (s *Store) CreateBusiness(_ context.Context, biz business.Business) (business.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if biz.ID == "" {
		biz.ID = uuid.NewString()
	} else if _, exists := s.businesses[biz.ID]; exists {
		return business.Business{}, storage.ErrExists
	}

	now := time.Now().UTC()
	biz.CreatedAt = now
	biz.UpdatedAt = now
	s.businesses[biz.ID] = biz
	return biz, nil
}

func (s *Store) UpdateBusiness(_ context.Context, biz business.Business) (business.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.businesses[biz.ID]
	if !ok {
		return business.Business{}, storage.ErrNotFound
	}

	biz.CreatedAt = original.CreatedAt
	biz.TotalCustomers = original.TotalCustomers
	biz.TotalStamps = original.TotalStamps
	biz.RewardsRedeemed = original.RewardsRedeemed
	biz.UpdatedAt = time.Now().UTC()
	s.businesses[biz.ID] = biz
	return biz, nil
}

func (s *Store) GetBusiness(_ context.Context, id string) (business.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	biz, ok := s.businesses[id]
	if !ok {
		return business.Business{}, storage.ErrNotFound
	}
	return biz, nil
}

func (s *Store) ListBusinesses(_ context.Context, category string) ([]business.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []business.Business
	for _, biz := range s.businesses {
		if category == "" || strings.EqualFold(biz.Category, category) {
			result = append(result, biz)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *Store) IncrementBusinessCounter(_ context.Context, businessID, field string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	biz, ok := s.businesses[businessID]
	if !ok {
		return storage.ErrNotFound
	}

	switch field {
	case business.CounterRewardsRedeemed:
		biz.RewardsRedeemed += delta
	case business.CounterTotalStamps:
		biz.TotalStamps += delta
	case business.CounterTotalCustomers:
		biz.TotalCustomers += delta
	default:
		return storage.ErrNotFound
	}
	biz.UpdatedAt = time.Now().UTC()
	s.businesses[businessID] = biz
	return nil
}

// AnalyticsStore implementation ----------------------------------------------

func (s *Store) IncrementDailyCounter(_ context.Context, businessID, day, field string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := counterKey(businessID, day)
	counter, ok := s.dailyCounters[key]
	if !ok {
		date, _ := time.Parse("2006-01-02", day)
		counter = analytics.DailyCounter{BusinessID: businessID, Day: day, Date: date}
	}

	switch field {
	case analytics.FieldStampsGiven:
		counter.StampsGiven += delta
	case analytics.FieldPrizesRedeemed:
		counter.PrizesRedeemed += delta
	default:
		return storage.ErrNotFound
	}
	s.dailyCounters[key] = counter
	return nil
}

func (s *Store) GetDailyCounter(_ context.Context, businessID, day string) (analytics.DailyCounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counter, ok := s.dailyCounters[counterKey(businessID, day)]
	if !ok {
		return analytics.DailyCounter{}, storage.ErrNotFound
	}
	return counter, nil
}

func (s *Store) ListDailyCounters(_ context.Context, businessID, from, to string) ([]analytics.DailyCounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []analytics.DailyCounter
	for _, counter := range s.dailyCounters {
		if counter.BusinessID != businessID {
			continue
		}
		if from != "" && counter.Day < from {
			continue
		}
		if to != "" && counter.Day > to {
			continue
		}
		result = append(result, counter)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Day < result[j].Day })
	return result, nil
}

func (s *Store) PruneDailyCounters(_ context.Context, before string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, counter := range s.dailyCounters {
		if counter.Day < before {
			delete(s.dailyCounters, key)
			removed++
		}
	}
	return removed, nil
}

// UserStore implementation ---------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u session.User) (session.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, exists := s.usersByEmail[email]; exists {
		return session.User{}, storage.ErrExists
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	s.users[u.ID] = u
	s.usersByEmail[email] = u.ID
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (session.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return session.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (session.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return session.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

// SessionStore implementation ------------------------------------------------

func (s *Store) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastSeenAt = now

	s.sessions[sess.ID] = sess
	s.sessionsByHash[sess.TokenHash] = sess.ID
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(_ context.Context, tokenHash string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.sessionsByHash[tokenHash]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	return s.sessions[id], nil
}

func (s *Store) TouchSession(_ context.Context, id string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	sess.LastSeenAt = seenAt
	s.sessions[id] = sess
	return nil
}

func (s *Store) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.sessions, id)
	delete(s.sessionsByHash, sess.TokenHash)
	return nil
}

func (s *Store) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			delete(s.sessionsByHash, sess.TokenHash)
			removed++
		}
	}
	return removed, nil
}
