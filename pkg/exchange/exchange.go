// Package exchange defines the contracts between the trading engine and its
// external collaborators: the market-data source, the DEX router, the funds
// transfer rail and the owner-facing notifier. Implementations live under
// pkg/marketdata, pkg/dexrouter and pkg/telegram.
package exchange

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned by MarketData when no market cap can be
// resolved for a token right now. Callers skip the order for this cycle.
var ErrUnavailable = errors.New("market data unavailable")

type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

func (d Direction) Valid() bool {
	return d == Buy || d == Sell
}

// SwapRequest describes a single trade. Exactly one of Amount (buy, absolute
// quote spend) or Percent (sell, share of current holdings) is set; holdings
// resolution is the router's job, not the caller's.
type SwapRequest struct {
	TokenAddress    string
	Direction       Direction
	Amount          decimal.Decimal
	Percent         decimal.Decimal
	SlippageBps     int
	SigningMaterial []byte
}

type SwapResult struct {
	CounterpartAmount decimal.Decimal
	TransactionID     string
}

type MarketData interface {
	GetMarketCap(ctx context.Context, tokenAddress string) (decimal.Decimal, error)
}

type TradeRouter interface {
	Swap(ctx context.Context, req SwapRequest) (*SwapResult, error)
}

type FundsTransfer interface {
	Send(ctx context.Context, toAddress string, amount decimal.Decimal) (string, error)
}

// Notifier delivers a message to an owner. Fire and forget; implementations
// log delivery failures and never propagate them.
type Notifier interface {
	Notify(ctx context.Context, ownerID int64, message string)
}
