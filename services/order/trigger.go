package order

import (
	"time"

	"tradepulse/pkg/exchange"

	"github.com/shopspring/decimal"
)

// LimitTriggered reports whether a limit order is eligible to fire at the
// given market cap. Buys fire at or below the trigger, sells at or above it.
// Pure; safe to re-evaluate across polls.
func LimitTriggered(o *LimitOrder, marketCap decimal.Decimal) bool {
	switch o.Direction {
	case exchange.Buy:
		return marketCap.LessThanOrEqual(o.TriggerMarketCap)
	case exchange.Sell:
		return marketCap.GreaterThanOrEqual(o.TriggerMarketCap)
	default:
		return false
	}
}

// DcaDue reports whether the order's interval has elapsed since its last
// execution. An order that has never run measures from the zero time, so it
// is due on the first poll.
func DcaDue(o *DcaOrder, now time.Time) bool {
	if o.MaxExecutions != nil && o.ExecutedCount >= *o.MaxExecutions {
		return false
	}

	var last time.Time
	if o.LastExecutedAt != nil {
		last = *o.LastExecutedAt
	}

	return now.Sub(last) >= time.Duration(o.IntervalMinutes)*time.Minute
}
