// Package program holds the loyalty program ledger: the per-(customer,
// business) stamp record and the state machine that advances it on scans.
package program

import "time"

// Record tracks one customer's progress in one business's stamp program.
// Stored at users/{customerID}/programs/{businessID} in document terms.
type Record struct {
	CustomerID    string    `json:"customer_id" db:"customer_id"`
	BusinessID    string    `json:"business_id" db:"business_id"`
	CurrentStamps int       `json:"current_stamps" db:"current_stamps"`
	Claimed       bool      `json:"claimed" db:"claimed"`
	PrizesClaimed int       `json:"prizes_claimed" db:"prizes_claimed"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// OutcomeKind classifies the user-visible result of a scan.
type OutcomeKind string

const (
	// OutcomeStampAdded means one stamp was granted.
	OutcomeStampAdded OutcomeKind = "stamp_added"
	// OutcomePrizeRedeemed means an eligible card was converted into a prize.
	OutcomePrizeRedeemed OutcomeKind = "prize_redeemed"
	// OutcomeNeedsMoreStamps means a prize-only scan found the card short.
	OutcomeNeedsMoreStamps OutcomeKind = "needs_more_stamps"
	// OutcomeAlreadyClaimed means a prize-only scan found the card already
	// converted this cycle.
	OutcomeAlreadyClaimed OutcomeKind = "already_claimed"
)

// Outcome is the operator-facing result of applying one scan event.
type Outcome struct {
	Kind         OutcomeKind `json:"kind"`
	NewCount     int         `json:"new_count,omitempty"`
	StampsNeeded int         `json:"stamps_needed"`
	Remaining    int         `json:"remaining,omitempty"`
	NewCustomer  bool        `json:"new_customer,omitempty"`
	Message      string      `json:"message"`
}
