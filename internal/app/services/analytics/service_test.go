package analytics

import (
	"context"
	"testing"
	"time"

	domain "github.com/stampd-app/stampd/internal/app/domain/analytics"
	"github.com/stampd-app/stampd/internal/app/storage/memory"
)

func fixedNow(t *testing.T, svc *Service, day string) {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", day)
	if err != nil {
		t.Fatalf("parse day: %v", err)
	}
	svc.now = func() time.Time { return parsed }
}

func TestToday_ZeroValuedWhenEmpty(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	fixedNow(t, svc, "2026-08-31")

	counter, err := svc.Today(context.Background(), "biz-1")
	if err != nil {
		t.Fatalf("today: %v", err)
	}
	if counter.Day != "2026-08-31" || counter.StampsGiven != 0 || counter.PrizesRedeemed != 0 {
		t.Fatalf("unexpected counter: %#v", counter)
	}
}

func TestRange_SumsDays(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	seed := map[string][2]int{
		"2026-08-28": {3, 1},
		"2026-08-29": {5, 0},
		"2026-08-30": {2, 2},
	}
	for day, counts := range seed {
		for i := 0; i < counts[0]; i++ {
			if err := store.IncrementDailyCounter(ctx, "biz-1", day, domain.FieldStampsGiven, 1); err != nil {
				t.Fatalf("seed stamps: %v", err)
			}
		}
		for i := 0; i < counts[1]; i++ {
			if err := store.IncrementDailyCounter(ctx, "biz-1", day, domain.FieldPrizesRedeemed, 1); err != nil {
				t.Fatalf("seed prizes: %v", err)
			}
		}
	}

	svc := New(store, nil)
	summary, err := svc.Range(ctx, "biz-1", "2026-08-29", "2026-08-31")
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if summary.StampsGiven != 7 || summary.PrizesRedeemed != 2 || len(summary.Days) != 2 {
		t.Fatalf("unexpected summary: %#v", summary)
	}
}

func TestRange_ValidatesInput(t *testing.T) {
	svc := New(memory.New(), nil)

	if _, err := svc.Range(context.Background(), "b", "not-a-day", "2026-08-31"); err == nil {
		t.Fatalf("expected error for bad from day")
	}
	if _, err := svc.Range(context.Background(), "b", "2026-08-31", "08/31/2026"); err == nil {
		t.Fatalf("expected error for bad to day")
	}
	if _, err := svc.Range(context.Background(), "b", "2026-09-01", "2026-08-31"); err == nil {
		t.Fatalf("expected error for inverted range")
	}
}

func TestLastNDays(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	if err := store.IncrementDailyCounter(ctx, "b", "2026-08-30", domain.FieldStampsGiven, 4); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := New(store, nil)
	fixedNow(t, svc, "2026-08-31")

	summary, err := svc.LastNDays(ctx, "b", 7)
	if err != nil {
		t.Fatalf("last n days: %v", err)
	}
	if summary.From != "2026-08-25" || summary.To != "2026-08-31" || summary.StampsGiven != 4 {
		t.Fatalf("unexpected summary: %#v", summary)
	}

	if _, err := svc.LastNDays(ctx, "b", 0); err == nil {
		t.Fatalf("expected error for zero days")
	}
}

func TestPrune(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	for _, day := range []string{"2025-01-01", "2026-08-30"} {
		if err := store.IncrementDailyCounter(ctx, "b", day, domain.FieldStampsGiven, 1); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	svc := New(store, nil)
	fixedNow(t, svc, "2026-08-31")

	removed, err := svc.Prune(ctx, 30)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	if _, err := svc.Prune(ctx, 0); err == nil {
		t.Fatalf("expected error for zero retention")
	}
}
