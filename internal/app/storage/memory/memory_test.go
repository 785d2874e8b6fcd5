package memory

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stampd-app/stampd/internal/app/domain/analytics"
	"github.com/stampd-app/stampd/internal/app/domain/business"
	"github.com/stampd-app/stampd/internal/app/domain/program"
	"github.com/stampd-app/stampd/internal/app/domain/session"
	"github.com/stampd-app/stampd/internal/app/storage"
)

func TestUpsertProgram_ConditionalWrite(t *testing.T) {
	store := New()
	ctx := context.Background()

	// Insert asserts absence.
	created, err := store.UpsertProgram(ctx, nil, program.Record{CustomerID: "c", BusinessID: "b", CurrentStamps: 1})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %#v", created)
	}

	// Second insert against the same key conflicts.
	if _, err := store.UpsertProgram(ctx, nil, program.Record{CustomerID: "c", BusinessID: "b", CurrentStamps: 1}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate insert, got %v", err)
	}

	// Update with matching prior state succeeds.
	next := created
	next.CurrentStamps = 2
	if _, err := store.UpsertProgram(ctx, &created, next); err != nil {
		t.Fatalf("conditional update: %v", err)
	}

	// Update with stale prior state conflicts and leaves the record alone.
	stale := created // still claims CurrentStamps == 1
	next.CurrentStamps = 9
	if _, err := store.UpsertProgram(ctx, &stale, next); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict on stale update, got %v", err)
	}
	rec, err := store.GetProgram(ctx, "c", "b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CurrentStamps != 2 {
		t.Fatalf("lost write applied anyway: %#v", rec)
	}

	// Update against a missing record reports not found.
	if _, err := store.UpsertProgram(ctx, &created, program.Record{CustomerID: "x", BusinessID: "y"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListProgramsForBusiness_Limit(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, customer := range []string{"c1", "c2", "c3"} {
		if _, err := store.UpsertProgram(ctx, nil, program.Record{CustomerID: customer, BusinessID: "b", CurrentStamps: 1}); err != nil {
			t.Fatalf("seed %s: %v", customer, err)
		}
	}

	recs, err := store.ListProgramsForBusiness(ctx, "b", 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
}

func TestIncrementBusinessCounter(t *testing.T) {
	store := New()
	ctx := context.Background()

	biz, err := store.CreateBusiness(ctx, business.Business{Name: "Cafe", StampsNeeded: 5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.IncrementBusinessCounter(ctx, biz.ID, business.CounterTotalStamps, 1); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := store.IncrementBusinessCounter(ctx, biz.ID, business.CounterRewardsRedeemed, 1); err != nil {
		t.Fatalf("increment rewards: %v", err)
	}

	updated, _ := store.GetBusiness(ctx, biz.ID)
	if updated.TotalStamps != 3 || updated.RewardsRedeemed != 1 {
		t.Fatalf("unexpected counters: %#v", updated)
	}

	if err := store.IncrementBusinessCounter(ctx, biz.ID, "bogus", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown field, got %v", err)
	}
}

// Daily counter merges are commutative: any interleaving of the same
// increments produces the same totals.
func TestDailyCounter_MergeCommutes(t *testing.T) {
	ctx := context.Background()

	type inc struct {
		field string
		delta int
	}
	incs := []inc{
		{analytics.FieldStampsGiven, 1},
		{analytics.FieldStampsGiven, 2},
		{analytics.FieldPrizesRedeemed, 1},
		{analytics.FieldStampsGiven, 1},
		{analytics.FieldPrizesRedeemed, 3},
	}

	apply := func(order []int) analytics.DailyCounter {
		store := New()
		for _, i := range order {
			if err := store.IncrementDailyCounter(ctx, "b", "2026-08-31", incs[i].field, incs[i].delta); err != nil {
				t.Fatalf("increment: %v", err)
			}
		}
		counter, err := store.GetDailyCounter(ctx, "b", "2026-08-31")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		return counter
	}

	base := apply([]int{0, 1, 2, 3, 4})
	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 10; trial++ {
		order := rng.Perm(len(incs))
		got := apply(order)
		if got.StampsGiven != base.StampsGiven || got.PrizesRedeemed != base.PrizesRedeemed {
			t.Fatalf("order %v: got %#v, want %#v", order, got, base)
		}
	}
	if base.StampsGiven != 4 || base.PrizesRedeemed != 4 {
		t.Fatalf("unexpected totals: %#v", base)
	}
}

func TestDailyCounter_RangeAndPrune(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, day := range []string{"2026-08-01", "2026-08-15", "2026-08-30"} {
		if err := store.IncrementDailyCounter(ctx, "b", day, analytics.FieldStampsGiven, 1); err != nil {
			t.Fatalf("seed %s: %v", day, err)
		}
	}

	days, err := store.ListDailyCounters(ctx, "b", "2026-08-10", "2026-08-31")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(days) != 2 || days[0].Day != "2026-08-15" {
		t.Fatalf("unexpected range result: %#v", days)
	}

	removed, err := store.PruneDailyCounters(ctx, "2026-08-15")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 pruned, got %d", removed)
	}
}

func TestSessions_Lifecycle(t *testing.T) {
	store := New()
	ctx := context.Background()

	user, err := store.CreateUser(ctx, session.User{Email: "a@b.com", AccountType: session.AccountCustomer})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := store.CreateUser(ctx, session.User{Email: "A@B.com"}); !errors.Is(err, storage.ErrExists) {
		t.Fatalf("expected ErrExists for duplicate email, got %v", err)
	}

	sess, err := store.CreateSession(ctx, session.Session{
		UserID:    user.ID,
		TokenHash: "hash-1",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, err := store.GetSessionByTokenHash(ctx, "hash-1")
	if err != nil || got.ID != sess.ID {
		t.Fatalf("lookup by hash: %v %#v", err, got)
	}

	expired, err := store.CreateSession(ctx, session.Session{
		UserID:    user.ID,
		TokenHash: "hash-2",
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("create expired session: %v", err)
	}

	removed, err := store.DeleteExpiredSessions(ctx, time.Now())
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 expired removed, got %d (%v)", removed, err)
	}
	if _, err := store.GetSessionByTokenHash(ctx, expired.TokenHash); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expired session still resolvable: %v", err)
	}

	if err := store.DeleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.GetSessionByTokenHash(ctx, "hash-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("deleted session still resolvable: %v", err)
	}
}
