package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tradepulse/pkg/exchange"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLimitTriggered(t *testing.T) {
	testcases := []struct {
		name      string
		direction exchange.Direction
		trigger   string
		marketCap string
		expect    bool
	}{
		{name: "buy above trigger holds", direction: exchange.Buy, trigger: "100000", marketCap: "150000", expect: false},
		{name: "buy at trigger fires", direction: exchange.Buy, trigger: "100000", marketCap: "100000", expect: true},
		{name: "buy below trigger fires", direction: exchange.Buy, trigger: "100000", marketCap: "95000", expect: true},
		{name: "sell below trigger holds", direction: exchange.Sell, trigger: "500000", marketCap: "450000", expect: false},
		{name: "sell at trigger fires", direction: exchange.Sell, trigger: "500000", marketCap: "500000", expect: true},
		{name: "sell above trigger fires", direction: exchange.Sell, trigger: "500000", marketCap: "510000", expect: true},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			o := &LimitOrder{
				Direction:        tc.direction,
				TriggerMarketCap: d(tc.trigger),
			}
			require.Equal(t, tc.expect, LimitTriggered(o, d(tc.marketCap)))
		})
	}
}

func TestDcaDue(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	three := 3

	t.Run("never executed is due immediately", func(t *testing.T) {
		o := &DcaOrder{IntervalMinutes: 60}
		require.True(t, DcaDue(o, base))
	})

	t.Run("not due before interval elapses", func(t *testing.T) {
		last := base.Add(-30 * time.Minute)
		o := &DcaOrder{IntervalMinutes: 60, LastExecutedAt: &last, ExecutedCount: 1}
		require.False(t, DcaDue(o, base))
	})

	t.Run("due exactly at interval", func(t *testing.T) {
		last := base.Add(-60 * time.Minute)
		o := &DcaOrder{IntervalMinutes: 60, LastExecutedAt: &last, ExecutedCount: 1}
		require.True(t, DcaDue(o, base))
	})

	t.Run("never due once max executions reached", func(t *testing.T) {
		last := base.Add(-24 * time.Hour)
		o := &DcaOrder{IntervalMinutes: 60, LastExecutedAt: &last, ExecutedCount: 3, MaxExecutions: &three}
		require.False(t, DcaDue(o, base))
	})
}
