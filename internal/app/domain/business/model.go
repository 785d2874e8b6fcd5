// Package business holds the business profile and program configuration.
package business

import "time"

// Business is a participating merchant. StampsNeeded is the reward
// threshold consumed by the program state machine; the remaining fields
// are descriptive profile data plus lifetime aggregate counters.
type Business struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Category        string    `json:"category" db:"category"`
	Location        string    `json:"location" db:"location"`
	LogoURL         string    `json:"logo_url" db:"logo_url"`
	Description     string    `json:"description" db:"description"`
	Email           string    `json:"email" db:"email"`
	PhoneNumber     string    `json:"phone_number,omitempty" db:"phone_number"`
	Hours           string    `json:"hours" db:"hours"`
	PrizeOffered    string    `json:"prize_offered" db:"prize_offered"`
	StampsNeeded    int       `json:"stamps_needed" db:"stamps_needed"`
	MinimumPurchase float64   `json:"minimum_purchase" db:"minimum_purchase"`
	TotalCustomers  int       `json:"total_customers" db:"total_customers"`
	TotalStamps     int       `json:"total_stamps_given" db:"total_stamps_given"`
	RewardsRedeemed int       `json:"rewards_redeemed" db:"rewards_redeemed"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// Counter names accepted by IncrementBusinessCounter. Lifetime counters
// are monotonically non-decreasing.
const (
	CounterRewardsRedeemed = "rewards_redeemed"
	CounterTotalStamps     = "total_stamps_given"
	CounterTotalCustomers  = "total_customers"
)

// Categories mirrors the fixed category set offered at onboarding.
var Categories = []string{
	"Food & Drink",
	"Retail & Apparel",
	"Beauty & Wellness",
	"Entertainment",
	"Local Services",
	"Other",
}
