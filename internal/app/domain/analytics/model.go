// Package analytics holds the per-day scan counters behind the business
// dashboard charts.
package analytics

import "time"

// DailyCounter accumulates scan outcomes for one business on one calendar
// day (UTC). Increments are merged commutatively so concurrent scans and
// duplicate deliveries cannot lose counts.
type DailyCounter struct {
	BusinessID     string    `json:"business_id" db:"business_id"`
	Day            string    `json:"day" db:"day"` // YYYY-MM-DD
	Date           time.Time `json:"date" db:"date"`
	StampsGiven    int       `json:"stamps_given" db:"stamps_given"`
	PrizesRedeemed int       `json:"prizes_redeemed" db:"prizes_redeemed"`
}

// Counter field names accepted by IncrementDailyCounter.
const (
	FieldStampsGiven    = "stamps_given"
	FieldPrizesRedeemed = "prizes_redeemed"
)

// DayKey formats a timestamp as the UTC day bucket counters are keyed by.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Summary aggregates a range of daily counters for dashboard display.
type Summary struct {
	BusinessID     string         `json:"business_id"`
	From           string         `json:"from"`
	To             string         `json:"to"`
	StampsGiven    int            `json:"stamps_given"`
	PrizesRedeemed int            `json:"prizes_redeemed"`
	Days           []DailyCounter `json:"days"`
}
