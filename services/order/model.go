package order

import (
	"time"

	"tradepulse/pkg/exchange"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// LimitOrder fires once when the token's market cap crosses the trigger
// threshold: at or below it for buys, at or above it for sells. No expiry.
type LimitOrder struct {
	ID               string             `gorm:"column:id;primaryKey" json:"id"`
	OwnerID          int64              `gorm:"column:owner_id;index" json:"owner_id"`
	WalletID         string             `gorm:"column:wallet_id" json:"wallet_id"`
	TokenAddress     string             `gorm:"column:token_address;index" json:"token_address"`
	Direction        exchange.Direction `gorm:"column:direction" json:"direction"`
	SpendAmount      decimal.Decimal    `gorm:"column:spend_amount;type:decimal(38,18)" json:"spend_amount"`
	SellPercent      decimal.Decimal    `gorm:"column:sell_percent;type:decimal(5,2)" json:"sell_percent"`
	SlippageBps      int                `gorm:"column:slippage_bps" json:"slippage_bps"`
	TriggerMarketCap decimal.Decimal    `gorm:"column:trigger_market_cap;type:decimal(38,18)" json:"trigger_market_cap"`
	Status           Status             `gorm:"column:status;index" json:"status"`
	CreatedAt        time.Time          `gorm:"column:created_at" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"column:updated_at" json:"updated_at"`
}

// DcaOrder fires on elapsed time, independent of price. It completes when
// MaxExecutions is set and reached; orders without MaxExecutions run until
// canceled by the owner.
type DcaOrder struct {
	ID                   string             `gorm:"column:id;primaryKey" json:"id"`
	OwnerID              int64              `gorm:"column:owner_id;index" json:"owner_id"`
	WalletID             string             `gorm:"column:wallet_id" json:"wallet_id"`
	TokenAddress         string             `gorm:"column:token_address;index" json:"token_address"`
	Direction            exchange.Direction `gorm:"column:direction" json:"direction"`
	SpendAmount          decimal.Decimal    `gorm:"column:spend_amount;type:decimal(38,18)" json:"spend_amount"`
	SellPercent          decimal.Decimal    `gorm:"column:sell_percent;type:decimal(5,2)" json:"sell_percent"`
	SlippageBps          int                `gorm:"column:slippage_bps" json:"slippage_bps"`
	IntervalMinutes      int                `gorm:"column:interval_minutes" json:"interval_minutes"`
	TotalDurationMinutes int                `gorm:"column:total_duration_minutes" json:"total_duration_minutes"`
	MaxExecutions        *int               `gorm:"column:max_executions" json:"max_executions,omitempty"`
	ExecutedCount        int                `gorm:"column:executed_count" json:"executed_count"`
	LastExecutedAt       *time.Time         `gorm:"column:last_executed_at" json:"last_executed_at,omitempty"`
	Status               Status             `gorm:"column:status;index" json:"status"`
	CreatedAt            time.Time          `gorm:"column:created_at" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"column:updated_at" json:"updated_at"`
}
