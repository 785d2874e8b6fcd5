package program

import "fmt"

// Apply computes the single transition for one scan event. It is a pure
// function: rec == nil means the customer is not yet enrolled, and the
// caller owns all persistence and counter side effects.
//
// Rules, in order:
//  1. not enrolled            -> new record with one stamp
//  2. below threshold         -> increment by one
//  3. at/over, not claimed    -> redeem: reset to zero, mark claimed
//  4. at/over, claimed        -> start a new cycle with one stamp
//
// Rule 4 resolves the claimed-card ambiguity in favor of an immediate new
// cycle rather than blocking further progress.
func Apply(rec *Record, stampsNeeded int) (Record, Outcome, error) {
	if stampsNeeded < 1 {
		return Record{}, Outcome{}, fmt.Errorf("stamps needed must be positive, got %d", stampsNeeded)
	}

	if rec == nil {
		next := Record{CurrentStamps: 1, Claimed: false, PrizesClaimed: 0}
		return next, Outcome{
			Kind:         OutcomeStampAdded,
			NewCount:     1,
			StampsNeeded: stampsNeeded,
			NewCustomer:  true,
			Message:      fmt.Sprintf("Customer added to program! 1/%d stamps", stampsNeeded),
		}, nil
	}

	next := *rec

	switch {
	case rec.CurrentStamps < stampsNeeded:
		next.CurrentStamps = rec.CurrentStamps + 1
		return next, Outcome{
			Kind:         OutcomeStampAdded,
			NewCount:     next.CurrentStamps,
			StampsNeeded: stampsNeeded,
			Message:      fmt.Sprintf("Stamp added! %d/%d stamps", next.CurrentStamps, stampsNeeded),
		}, nil

	case !rec.Claimed:
		next.CurrentStamps = 0
		next.Claimed = true
		next.PrizesClaimed = rec.PrizesClaimed + 1
		return next, Outcome{
			Kind:         OutcomePrizeRedeemed,
			StampsNeeded: stampsNeeded,
			Message:      "Prize redeemed!",
		}, nil

	default:
		next.CurrentStamps = 1
		next.Claimed = false
		return next, Outcome{
			Kind:         OutcomeStampAdded,
			NewCount:     1,
			StampsNeeded: stampsNeeded,
			Message:      fmt.Sprintf("New cycle started! 1/%d stamps", stampsNeeded),
		}, nil
	}
}

// ApplyPrizeOnly computes the transition for the dedicated prize scanner:
// it redeems when the card is eligible and unclaimed, enrolls unknown
// customers with a first stamp, and otherwise changes nothing.
func ApplyPrizeOnly(rec *Record, stampsNeeded int) (Record, Outcome, error) {
	if stampsNeeded < 1 {
		return Record{}, Outcome{}, fmt.Errorf("stamps needed must be positive, got %d", stampsNeeded)
	}

	if rec == nil {
		return Apply(nil, stampsNeeded)
	}

	if rec.Claimed {
		return *rec, Outcome{
			Kind:         OutcomeAlreadyClaimed,
			StampsNeeded: stampsNeeded,
			Message:      "Customer already claimed their prize",
		}, nil
	}

	if rec.CurrentStamps < stampsNeeded {
		remaining := stampsNeeded - rec.CurrentStamps
		return *rec, Outcome{
			Kind:         OutcomeNeedsMoreStamps,
			StampsNeeded: stampsNeeded,
			Remaining:    remaining,
			Message:      fmt.Sprintf("Customer needs %d more stamps", remaining),
		}, nil
	}

	next := *rec
	next.CurrentStamps = 0
	next.Claimed = true
	next.PrizesClaimed = rec.PrizesClaimed + 1
	return next, Outcome{
		Kind:         OutcomePrizeRedeemed,
		StampsNeeded: stampsNeeded,
		Message:      "Prize redeemed!",
	}, nil
}

// Mutates reports whether an outcome implies a changed record. Outcomes
// that only report state (needs-more-stamps, already-claimed) must not
// trigger a write or counter increment.
func (o Outcome) Mutates() bool {
	return o.Kind == OutcomeStampAdded || o.Kind == OutcomePrizeRedeemed
}
