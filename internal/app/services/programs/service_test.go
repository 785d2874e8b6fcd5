package programs

import (
	"context"
	"errors"
	"testing"

	"github.com/stampd-app/stampd/internal/app/domain/analytics"
	"github.com/stampd-app/stampd/internal/app/domain/business"
	"github.com/stampd-app/stampd/internal/app/domain/program"
	"github.com/stampd-app/stampd/internal/app/storage"
	"github.com/stampd-app/stampd/internal/app/storage/memory"
)

func newBusiness(t *testing.T, store *memory.Store, stampsNeeded int) business.Business {
	t.Helper()
	biz, err := store.CreateBusiness(context.Background(), business.Business{
		Name:         "Corner Cafe",
		Category:     "Food & Drink",
		StampsNeeded: stampsNeeded,
	})
	if err != nil {
		t.Fatalf("create business: %v", err)
	}
	return biz
}

func TestScan_FullLifecycle(t *testing.T) {
	store := memory.New()
	biz := newBusiness(t, store, 3)
	svc := New(store, store, store, nil, nil)

	// First scan enrolls the customer.
	outcome, err := svc.Scan(context.Background(), "cust-1", biz.ID)
	if err != nil {
		t.Fatalf("scan 1: %v", err)
	}
	if outcome.Kind != program.OutcomeStampAdded || !outcome.NewCustomer || outcome.NewCount != 1 {
		t.Fatalf("unexpected first outcome: %#v", outcome)
	}

	// Second scan increments.
	outcome, err = svc.Scan(context.Background(), "cust-1", biz.ID)
	if err != nil {
		t.Fatalf("scan 2: %v", err)
	}
	if outcome.Kind != program.OutcomeStampAdded || outcome.NewCount != 2 {
		t.Fatalf("unexpected second outcome: %#v", outcome)
	}

	// Third scan redeems.
	outcome, err = svc.Scan(context.Background(), "cust-1", biz.ID)
	if err != nil {
		t.Fatalf("scan 3: %v", err)
	}
	if outcome.Kind != program.OutcomePrizeRedeemed {
		t.Fatalf("unexpected third outcome: %#v", outcome)
	}

	rec, err := store.GetProgram(context.Background(), "cust-1", biz.ID)
	if err != nil {
		t.Fatalf("get program: %v", err)
	}
	if rec.CurrentStamps != 0 || !rec.Claimed || rec.PrizesClaimed != 1 {
		t.Fatalf("unexpected stored record: %#v", rec)
	}

	// Counters: 2 stamps, 1 prize, 1 new customer.
	updated, err := store.GetBusiness(context.Background(), biz.ID)
	if err != nil {
		t.Fatalf("get business: %v", err)
	}
	if updated.TotalStamps != 2 || updated.RewardsRedeemed != 1 || updated.TotalCustomers != 1 {
		t.Fatalf("unexpected business counters: %#v", updated)
	}

	day := analytics.DayKey(svc.now())
	counter, err := store.GetDailyCounter(context.Background(), biz.ID, day)
	if err != nil {
		t.Fatalf("get daily counter: %v", err)
	}
	if counter.StampsGiven != 2 || counter.PrizesRedeemed != 1 {
		t.Fatalf("unexpected daily counter: %#v", counter)
	}

	// Fourth scan opens a new cycle.
	outcome, err = svc.Scan(context.Background(), "cust-1", biz.ID)
	if err != nil {
		t.Fatalf("scan 4: %v", err)
	}
	if outcome.Kind != program.OutcomeStampAdded || outcome.NewCount != 1 {
		t.Fatalf("unexpected fourth outcome: %#v", outcome)
	}
	rec, _ = store.GetProgram(context.Background(), "cust-1", biz.ID)
	if rec.CurrentStamps != 1 || rec.Claimed || rec.PrizesClaimed != 1 {
		t.Fatalf("unexpected record after new cycle: %#v", rec)
	}
}

func TestScan_UnknownBusinessAborts(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, nil)

	_, err := svc.Scan(context.Background(), "cust-1", "no-such-business")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}

	// Nothing was written.
	if _, err := store.GetProgram(context.Background(), "cust-1", "no-such-business"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no program record, got %v", err)
	}
}

func TestScan_InvalidThresholdAborts(t *testing.T) {
	store := memory.New()
	biz, err := store.CreateBusiness(context.Background(), business.Business{Name: "Broken", StampsNeeded: 0})
	if err != nil {
		t.Fatalf("create business: %v", err)
	}
	svc := New(store, store, store, nil, nil)

	if _, err := svc.Scan(context.Background(), "cust-1", biz.ID); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound for bad threshold, got %v", err)
	}
}

func TestScan_ValidatesIDs(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, nil, nil)

	if _, err := svc.Scan(context.Background(), "", "biz"); err == nil {
		t.Fatalf("expected error for empty customer id")
	}
	if _, err := svc.Scan(context.Background(), "cust", "  "); err == nil {
		t.Fatalf("expected error for blank business id")
	}
}

func TestScan_ConflictSurfaces(t *testing.T) {
	store := memory.New()
	biz := newBusiness(t, store, 5)
	svc := New(store, store, store, nil, nil)

	if _, err := svc.Scan(context.Background(), "cust-1", biz.ID); err != nil {
		t.Fatalf("seed scan: %v", err)
	}

	// Simulate a concurrent scan landing between read and write by moving
	// the stored record forward underneath the service.
	rec, err := store.GetProgram(context.Background(), "cust-1", biz.ID)
	if err != nil {
		t.Fatalf("get program: %v", err)
	}
	conflicted := conflictingProgramStore{ProgramStore: store, storedAhead: rec}

	conflictedSvc := New(conflicted, store, store, nil, nil)
	if _, err := conflictedSvc.Scan(context.Background(), "cust-1", biz.ID); !errors.Is(err, ErrScanConflict) {
		t.Fatalf("expected ErrScanConflict, got %v", err)
	}
}

// conflictingProgramStore returns a stale read so the subsequent
// conditional write loses.
type conflictingProgramStore struct {
	storage.ProgramStore
	storedAhead program.Record
}

func (c conflictingProgramStore) GetProgram(ctx context.Context, customerID, businessID string) (program.Record, error) {
	rec, err := c.ProgramStore.GetProgram(ctx, customerID, businessID)
	if err != nil {
		return rec, err
	}
	rec.CurrentStamps-- // pretend we read before the other scan landed
	return rec, nil
}

func TestRedeemPrize_Paths(t *testing.T) {
	store := memory.New()
	biz := newBusiness(t, store, 2)
	svc := New(store, store, store, nil, nil)

	// Short card: reports remaining, mutates nothing.
	if _, err := svc.Scan(context.Background(), "cust-1", biz.ID); err != nil {
		t.Fatalf("seed scan: %v", err)
	}
	outcome, err := svc.RedeemPrize(context.Background(), "cust-1", biz.ID)
	if err != nil {
		t.Fatalf("redeem short: %v", err)
	}
	if outcome.Kind != program.OutcomeNeedsMoreStamps || outcome.Remaining != 1 {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
	rec, _ := store.GetProgram(context.Background(), "cust-1", biz.ID)
	if rec.CurrentStamps != 1 {
		t.Fatalf("short redeem mutated the record: %#v", rec)
	}

	// Fill and redeem.
	if _, err := svc.Scan(context.Background(), "cust-1", biz.ID); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	outcome, err = svc.RedeemPrize(context.Background(), "cust-1", biz.ID)
	if err != nil {
		t.Fatalf("redeem full: %v", err)
	}
	if outcome.Kind != program.OutcomePrizeRedeemed {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}

	// Claimed card rejects a second redemption.
	outcome, err = svc.RedeemPrize(context.Background(), "cust-1", biz.ID)
	if err != nil {
		t.Fatalf("redeem claimed: %v", err)
	}
	if outcome.Kind != program.OutcomeAlreadyClaimed {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}

	// Only the one successful redemption was counted.
	updated, _ := store.GetBusiness(context.Background(), biz.ID)
	if updated.RewardsRedeemed != 1 {
		t.Fatalf("unexpected rewards count: %d", updated.RewardsRedeemed)
	}
}

func TestListForCustomer_SkipsVanishedBusinesses(t *testing.T) {
	store := memory.New()
	biz := newBusiness(t, store, 5)
	svc := New(store, store, store, nil, nil)

	if _, err := svc.Scan(context.Background(), "cust-1", biz.ID); err != nil {
		t.Fatalf("scan: %v", err)
	}

	// A record pointing at a business that no longer exists.
	if _, err := store.UpsertProgram(context.Background(), nil, program.Record{
		CustomerID: "cust-1", BusinessID: "ghost", CurrentStamps: 2,
	}); err != nil {
		t.Fatalf("seed ghost record: %v", err)
	}

	cards, err := svc.ListForCustomer(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cards) != 1 || cards[0].Business.ID != biz.ID {
		t.Fatalf("unexpected cards: %#v", cards)
	}
}
