package program

import "testing"

func TestApply_EnrollsNewCustomer(t *testing.T) {
	next, outcome, err := Apply(nil, 10)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.CurrentStamps != 1 || next.Claimed || next.PrizesClaimed != 0 {
		t.Fatalf("unexpected record: %#v", next)
	}
	if outcome.Kind != OutcomeStampAdded || outcome.NewCount != 1 || !outcome.NewCustomer {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
}

func TestApply_IncrementsBelowThreshold(t *testing.T) {
	rec := &Record{CurrentStamps: 3}
	next, outcome, err := Apply(rec, 10)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.CurrentStamps != 4 || next.Claimed {
		t.Fatalf("unexpected record: %#v", next)
	}
	if outcome.Kind != OutcomeStampAdded || outcome.NewCount != 4 {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
	if rec.CurrentStamps != 3 {
		t.Fatalf("input record mutated: %#v", rec)
	}
}

func TestApply_RedeemsAtThreshold(t *testing.T) {
	next, outcome, err := Apply(&Record{CurrentStamps: 10, PrizesClaimed: 2}, 10)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.CurrentStamps != 0 || !next.Claimed || next.PrizesClaimed != 3 {
		t.Fatalf("unexpected record: %#v", next)
	}
	if outcome.Kind != OutcomePrizeRedeemed {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
}

func TestApply_ClaimedCardStartsNewCycle(t *testing.T) {
	next, outcome, err := Apply(&Record{CurrentStamps: 10, Claimed: true, PrizesClaimed: 1}, 10)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.CurrentStamps != 1 || next.Claimed || next.PrizesClaimed != 1 {
		t.Fatalf("unexpected record: %#v", next)
	}
	if outcome.Kind != OutcomeStampAdded || outcome.NewCount != 1 {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
}

func TestApply_OverThresholdUnclaimedRedeems(t *testing.T) {
	next, outcome, err := Apply(&Record{CurrentStamps: 12}, 10)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Kind != OutcomePrizeRedeemed || next.CurrentStamps != 0 || !next.Claimed {
		t.Fatalf("expected redemption, got %#v / %#v", next, outcome)
	}
}

func TestApply_RejectsInvalidThreshold(t *testing.T) {
	if _, _, err := Apply(nil, 0); err == nil {
		t.Fatalf("expected error for zero threshold")
	}
	if _, _, err := Apply(nil, -3); err == nil {
		t.Fatalf("expected error for negative threshold")
	}
}

// The nth scan of a fresh customer must redeem, for any threshold: n-1
// stamp additions followed by exactly one redemption.
func TestApply_NthScanRedeems(t *testing.T) {
	for _, needed := range []int{1, 2, 5, 10, 25} {
		var rec *Record
		for scan := 1; scan < needed; scan++ {
			next, outcome, err := Apply(rec, needed)
			if err != nil {
				t.Fatalf("needed=%d scan=%d: %v", needed, scan, err)
			}
			if outcome.Kind != OutcomeStampAdded || outcome.NewCount != scan {
				t.Fatalf("needed=%d scan=%d: unexpected outcome %#v", needed, scan, outcome)
			}
			rec = &next
		}

		next, outcome, err := Apply(rec, needed)
		if err != nil {
			t.Fatalf("needed=%d final scan: %v", needed, err)
		}
		if outcome.Kind != OutcomePrizeRedeemed {
			t.Fatalf("needed=%d: expected redemption on scan %d, got %#v", needed, needed, outcome)
		}
		if next.CurrentStamps != 0 || !next.Claimed || next.PrizesClaimed != 1 {
			t.Fatalf("needed=%d: unexpected record after redemption: %#v", needed, next)
		}
	}
}

// Continuous scanning across cycles: after a redemption the next scan
// opens a new cycle, and prizes accumulate.
func TestApply_MultipleCycles(t *testing.T) {
	const needed = 3
	var rec *Record

	for cycle := 1; cycle <= 4; cycle++ {
		for scan := 0; scan < needed; scan++ {
			next, _, err := Apply(rec, needed)
			if err != nil {
				t.Fatalf("cycle=%d scan=%d: %v", cycle, scan, err)
			}
			rec = &next
		}
		if rec.PrizesClaimed != cycle {
			t.Fatalf("cycle=%d: expected %d prizes, got %d", cycle, cycle, rec.PrizesClaimed)
		}
	}
}

func TestApplyPrizeOnly_RedeemsEligibleCard(t *testing.T) {
	next, outcome, err := ApplyPrizeOnly(&Record{CurrentStamps: 10}, 10)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Kind != OutcomePrizeRedeemed || next.CurrentStamps != 0 || !next.Claimed || next.PrizesClaimed != 1 {
		t.Fatalf("unexpected result: %#v / %#v", next, outcome)
	}
}

func TestApplyPrizeOnly_RejectsClaimedCard(t *testing.T) {
	rec := Record{CurrentStamps: 10, Claimed: true, PrizesClaimed: 1}
	next, outcome, err := ApplyPrizeOnly(&rec, 10)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Kind != OutcomeAlreadyClaimed {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
	if next != rec {
		t.Fatalf("record changed on non-mutating outcome: %#v", next)
	}
	if outcome.Mutates() {
		t.Fatalf("already-claimed outcome must not mutate")
	}
}

func TestApplyPrizeOnly_ReportsMissingStamps(t *testing.T) {
	next, outcome, err := ApplyPrizeOnly(&Record{CurrentStamps: 7}, 10)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Kind != OutcomeNeedsMoreStamps || outcome.Remaining != 3 {
		t.Fatalf("unexpected outcome: %#v", outcome)
	}
	if next.CurrentStamps != 7 || outcome.Mutates() {
		t.Fatalf("short card must be left untouched: %#v", next)
	}
}

func TestApplyPrizeOnly_EnrollsNewCustomer(t *testing.T) {
	next, outcome, err := ApplyPrizeOnly(nil, 5)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if outcome.Kind != OutcomeStampAdded || !outcome.NewCustomer || next.CurrentStamps != 1 {
		t.Fatalf("unexpected result: %#v / %#v", next, outcome)
	}
}

func TestOutcome_Mutates(t *testing.T) {
	cases := map[OutcomeKind]bool{
		OutcomeStampAdded:      true,
		OutcomePrizeRedeemed:   true,
		OutcomeNeedsMoreStamps: false,
		OutcomeAlreadyClaimed:  false,
	}
	for kind, want := range cases {
		if got := (Outcome{Kind: kind}).Mutates(); got != want {
			t.Fatalf("%s: Mutates() = %v, want %v", kind, got, want)
		}
	}
}
