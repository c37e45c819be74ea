package referral

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ReferralEdge links a referred account to the account that referred it.
// A referred account has at most one edge, ever: the first referral wins.
type ReferralEdge struct {
	ID         string    `gorm:"column:id;primaryKey" json:"id"`
	ReferrerID int64     `gorm:"column:referrer_id;index" json:"referrer_id"`
	ReferredID int64     `gorm:"column:referred_id;uniqueIndex" json:"referred_id"`
	CreatedAt  time.Time `gorm:"column:created_at" json:"created_at"`
}

// CommissionEarning is one referrer payout obligation produced by a
// qualifying trade. The unique transaction_id is the idempotency guard:
// replaying the same trade can never create a second row. Credited flips
// false to true exactly once; rows are never deleted.
type CommissionEarning struct {
	ID               string          `gorm:"column:id;primaryKey" json:"id"`
	ReferrerID       int64           `gorm:"column:referrer_id;index" json:"referrer_id"`
	ReferredID       int64           `gorm:"column:referred_id;index" json:"referred_id"`
	WalletID         string          `gorm:"column:wallet_id" json:"wallet_id"`
	TokenAddress     string          `gorm:"column:token_address" json:"token_address"`
	GrossFeeAmount   decimal.Decimal `gorm:"column:gross_fee_amount;type:decimal(38,18)" json:"gross_fee_amount"`
	CommissionRate   decimal.Decimal `gorm:"column:commission_rate;type:decimal(5,4)" json:"commission_rate"`
	CommissionAmount decimal.Decimal `gorm:"column:commission_amount;type:decimal(38,18)" json:"commission_amount"`
	TransactionID    string          `gorm:"column:transaction_id;uniqueIndex" json:"transaction_id"`
	Credited         bool            `gorm:"column:credited" json:"credited"`
	CreditedAt       *time.Time      `gorm:"column:credited_at" json:"credited_at,omitempty"`
	// Attempts counts failed credit attempts; it stays put on success.
	Attempts  int            `gorm:"column:attempts" json:"attempts"`
	Metadata  datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
}

// Commission rate tiers by referral age. The rate is computed fresh at
// earning time, so the same referrer earns a declining share as the
// relationship ages.
var (
	rateTier1 = decimal.RequireFromString("0.20") // first 30 days
	rateTier2 = decimal.RequireFromString("0.10") // days 31-60
	rateTier3 = decimal.RequireFromString("0.05") // afterwards
)

// RateFor returns the commission rate for an edge of the given age at the
// moment of earning computation.
func RateFor(edgeCreatedAt, at time.Time) decimal.Decimal {
	age := at.Sub(edgeCreatedAt)
	switch {
	case age <= 30*24*time.Hour:
		return rateTier1
	case age <= 60*24*time.Hour:
		return rateTier2
	default:
		return rateTier3
	}
}
