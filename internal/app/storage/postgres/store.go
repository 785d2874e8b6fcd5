// Package postgres implements the storage interfaces backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stampd-app/stampd/internal/app/domain/analytics"
	"github.com/stampd-app/stampd/internal/app/domain/business"
	"github.com/stampd-app/stampd/internal/app/domain/program"
	"github.com/stampd-app/stampd/internal/app/domain/session"
	"github.com/stampd-app/stampd/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.ProgramStore = (*Store)(nil)
var _ storage.BusinessStore = (*Store)(nil)
var _ storage.AnalyticsStore = (*Store)(nil)
var _ storage.UserStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// --- ProgramStore -----------------------------------------------------------

func (s *Store) GetProgram(ctx context.Context, customerID, businessID string) (program.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT customer_id, business_id, current_stamps, claimed, prizes_claimed, created_at, updated_at
		FROM programs
		WHERE customer_id = $1 AND business_id = $2
	`, customerID, businessID)
	return scanProgram(row)
}

func (s *Store) ListProgramsForCustomer(ctx context.Context, customerID string) ([]program.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, business_id, current_stamps, claimed, prizes_claimed, created_at, updated_at
		FROM programs
		WHERE customer_id = $1
		ORDER BY business_id
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrograms(rows)
}

func (s *Store) ListProgramsForBusiness(ctx context.Context, businessID string, limit int) ([]program.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT customer_id, business_id, current_stamps, claimed, prizes_claimed, created_at, updated_at
		FROM programs
		WHERE business_id = $1
		ORDER BY updated_at DESC
		LIMIT $2
	`, businessID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPrograms(rows)
}

// UpsertProgram applies the conditional write the orchestrator depends on.
// The WHERE clause on (current_stamps, claimed) is the compare-and-swap
// that closes the concurrent-scan lost-update race.
func (s *Store) UpsertProgram(ctx context.Context, prev *program.Record, next program.Record) (program.Record, error) {
	now := time.Now().UTC()
	next.UpdatedAt = now

	if prev == nil {
		next.CreatedAt = now
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO programs (customer_id, business_id, current_stamps, claimed, prizes_claimed, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (customer_id, business_id) DO NOTHING
		`, next.CustomerID, next.BusinessID, next.CurrentStamps, next.Claimed, next.PrizesClaimed, next.CreatedAt, next.UpdatedAt)
		if err != nil {
			return program.Record{}, err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return program.Record{}, storage.ErrConflict
		}
		return next, nil
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE programs
		SET current_stamps = $3, claimed = $4, prizes_claimed = $5, updated_at = $6
		WHERE customer_id = $1 AND business_id = $2
		  AND current_stamps = $7 AND claimed = $8
	`, next.CustomerID, next.BusinessID, next.CurrentStamps, next.Claimed, next.PrizesClaimed, next.UpdatedAt,
		prev.CurrentStamps, prev.Claimed)
	if err != nil {
		return program.Record{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		// Distinguish a lost race from a missing row.
		if _, err := s.GetProgram(ctx, next.CustomerID, next.BusinessID); err != nil {
			return program.Record{}, err
		}
		return program.Record{}, storage.ErrConflict
	}
	return next, nil
}

// --- BusinessStore ----------------------------------------------------------

func (s *Store) CreateBusiness(ctx context.Context, biz business.Business) (business.Business, error) {
	if biz.ID == "" {
		biz.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	biz.CreatedAt = now
	biz.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO businesses (
			id, name, category, location, logo_url, description, email, phone_number,
			hours, prize_offered, stamps_needed, minimum_purchase,
			total_customers, total_stamps_given, rewards_redeemed, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, biz.ID, biz.Name, biz.Category, biz.Location, biz.LogoURL, biz.Description, biz.Email, biz.PhoneNumber,
		biz.Hours, biz.PrizeOffered, biz.StampsNeeded, biz.MinimumPurchase,
		biz.TotalCustomers, biz.TotalStamps, biz.RewardsRedeemed, biz.CreatedAt, biz.UpdatedAt)
	if err != nil {
		return business.Business{}, err
	}
	return biz, nil
}

func (s *Store) UpdateBusiness(ctx context.Context, biz business.Business) (business.Business, error) {
	existing, err := s.GetBusiness(ctx, biz.ID)
	if err != nil {
		return business.Business{}, err
	}

	biz.CreatedAt = existing.CreatedAt
	biz.TotalCustomers = existing.TotalCustomers
	biz.TotalStamps = existing.TotalStamps
	biz.RewardsRedeemed = existing.RewardsRedeemed
	biz.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE businesses
		SET name = $2, category = $3, location = $4, logo_url = $5, description = $6,
		    email = $7, phone_number = $8, hours = $9, prize_offered = $10,
		    stamps_needed = $11, minimum_purchase = $12, updated_at = $13
		WHERE id = $1
	`, biz.ID, biz.Name, biz.Category, biz.Location, biz.LogoURL, biz.Description,
		biz.Email, biz.PhoneNumber, biz.Hours, biz.PrizeOffered,
		biz.StampsNeeded, biz.MinimumPurchase, biz.UpdatedAt)
	if err != nil {
		return business.Business{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return business.Business{}, storage.ErrNotFound
	}
	return biz, nil
}

func (s *Store) GetBusiness(ctx context.Context, id string) (business.Business, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, location, logo_url, description, email, phone_number,
		       hours, prize_offered, stamps_needed, minimum_purchase,
		       total_customers, total_stamps_given, rewards_redeemed, created_at, updated_at
		FROM businesses
		WHERE id = $1
	`, id)

	var biz business.Business
	err := row.Scan(&biz.ID, &biz.Name, &biz.Category, &biz.Location, &biz.LogoURL, &biz.Description,
		&biz.Email, &biz.PhoneNumber, &biz.Hours, &biz.PrizeOffered, &biz.StampsNeeded, &biz.MinimumPurchase,
		&biz.TotalCustomers, &biz.TotalStamps, &biz.RewardsRedeemed, &biz.CreatedAt, &biz.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return business.Business{}, storage.ErrNotFound
	}
	if err != nil {
		return business.Business{}, err
	}
	return biz, nil
}

func (s *Store) ListBusinesses(ctx context.Context, category string) ([]business.Business, error) {
	query := `
		SELECT id, name, category, location, logo_url, description, email, phone_number,
		       hours, prize_offered, stamps_needed, minimum_purchase,
		       total_customers, total_stamps_given, rewards_redeemed, created_at, updated_at
		FROM businesses`
	args := []interface{}{}
	if category != "" {
		query += ` WHERE lower(category) = lower($1)`
		args = append(args, category)
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []business.Business
	for rows.Next() {
		var biz business.Business
		if err := rows.Scan(&biz.ID, &biz.Name, &biz.Category, &biz.Location, &biz.LogoURL, &biz.Description,
			&biz.Email, &biz.PhoneNumber, &biz.Hours, &biz.PrizeOffered, &biz.StampsNeeded, &biz.MinimumPurchase,
			&biz.TotalCustomers, &biz.TotalStamps, &biz.RewardsRedeemed, &biz.CreatedAt, &biz.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, biz)
	}
	return result, rows.Err()
}

var businessCounterColumns = map[string]string{
	business.CounterRewardsRedeemed: "rewards_redeemed",
	business.CounterTotalStamps:     "total_stamps_given",
	business.CounterTotalCustomers:  "total_customers",
}

func (s *Store) IncrementBusinessCounter(ctx context.Context, businessID, field string, delta int) error {
	column, ok := businessCounterColumns[field]
	if !ok {
		return fmt.Errorf("unknown business counter %q", field)
	}

	result, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE businesses
		SET %s = %s + $2, updated_at = $3
		WHERE id = $1
	`, column, column), businessID, delta, time.Now().UTC())
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- AnalyticsStore ---------------------------------------------------------

var dailyCounterColumns = map[string]string{
	analytics.FieldStampsGiven:    "stamps_given",
	analytics.FieldPrizesRedeemed: "prizes_redeemed",
}

func (s *Store) IncrementDailyCounter(ctx context.Context, businessID, day, field string, delta int) error {
	column, ok := dailyCounterColumns[field]
	if !ok {
		return fmt.Errorf("unknown daily counter %q", field)
	}
	date, err := time.Parse("2006-01-02", day)
	if err != nil {
		return fmt.Errorf("invalid day %q: %w", day, err)
	}

	stamps, prizes := 0, 0
	if column == "stamps_given" {
		stamps = delta
	} else {
		prizes = delta
	}

	// Commutative merge: repeated and out-of-order increments sum.
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO daily_counters (business_id, day, date, stamps_given, prizes_redeemed)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (business_id, day)
		DO UPDATE SET %s = daily_counters.%s + EXCLUDED.%s
	`, column, column, column), businessID, day, date, stamps, prizes)
	return err
}

func (s *Store) GetDailyCounter(ctx context.Context, businessID, day string) (analytics.DailyCounter, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT business_id, day, date, stamps_given, prizes_redeemed
		FROM daily_counters
		WHERE business_id = $1 AND day = $2
	`, businessID, day)

	var counter analytics.DailyCounter
	err := row.Scan(&counter.BusinessID, &counter.Day, &counter.Date, &counter.StampsGiven, &counter.PrizesRedeemed)
	if errors.Is(err, sql.ErrNoRows) {
		return analytics.DailyCounter{}, storage.ErrNotFound
	}
	if err != nil {
		return analytics.DailyCounter{}, err
	}
	return counter, nil
}

func (s *Store) ListDailyCounters(ctx context.Context, businessID, from, to string) ([]analytics.DailyCounter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT business_id, day, date, stamps_given, prizes_redeemed
		FROM daily_counters
		WHERE business_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day
	`, businessID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []analytics.DailyCounter
	for rows.Next() {
		var counter analytics.DailyCounter
		if err := rows.Scan(&counter.BusinessID, &counter.Day, &counter.Date, &counter.StampsGiven, &counter.PrizesRedeemed); err != nil {
			return nil, err
		}
		result = append(result, counter)
	}
	return result, rows.Err()
}

func (s *Store) PruneDailyCounters(ctx context.Context, before string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM daily_counters WHERE day < $1
	`, before)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u session.User) (session.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, account_type, created_at)
		VALUES ($1, lower($2), $3, $4, $5)
	`, u.ID, u.Email, u.PasswordHash, string(u.AccountType), u.CreatedAt)
	if err != nil {
		return session.User{}, err
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (session.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, account_type, created_at
		FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (session.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, account_type, created_at
		FROM users WHERE email = lower($1)
	`, email)
	return scanUser(row)
}

// --- SessionStore -----------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	sess.CreatedAt = now
	sess.LastSeenAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, created_at, last_seen_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, sess.ID, sess.UserID, sess.TokenHash, sess.ExpiresAt, sess.CreatedAt, sess.LastSeenAt)
	if err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (s *Store) GetSessionByTokenHash(ctx context.Context, tokenHash string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, created_at, last_seen_at
		FROM sessions WHERE token_hash = $1
	`, tokenHash)

	var sess session.Session
	err := row.Scan(&sess.ID, &sess.UserID, &sess.TokenHash, &sess.ExpiresAt, &sess.CreatedAt, &sess.LastSeenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, storage.ErrNotFound
	}
	if err != nil {
		return session.Session{}, err
	}
	return sess, nil
}

func (s *Store) TouchSession(ctx context.Context, id string, seenAt time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_seen_at = $2 WHERE id = $1
	`, id, seenAt)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// --- helpers ----------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProgram(row rowScanner) (program.Record, error) {
	var rec program.Record
	err := row.Scan(&rec.CustomerID, &rec.BusinessID, &rec.CurrentStamps, &rec.Claimed, &rec.PrizesClaimed, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return program.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return program.Record{}, err
	}
	return rec, nil
}

func collectPrograms(rows *sql.Rows) ([]program.Record, error) {
	var result []program.Record
	for rows.Next() {
		var rec program.Record
		if err := rows.Scan(&rec.CustomerID, &rec.BusinessID, &rec.CurrentStamps, &rec.Claimed, &rec.PrizesClaimed, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func scanUser(row rowScanner) (session.User, error) {
	var (
		u           session.User
		accountType string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &accountType, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.User{}, storage.ErrNotFound
	}
	if err != nil {
		return session.User{}, err
	}
	u.AccountType = session.AccountType(accountType)
	return u, nil
}
