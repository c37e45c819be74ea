package order

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tradepulse/pkg/config"
	"tradepulse/pkg/exchange"
	"tradepulse/pkg/repository"
	"tradepulse/services/referral"
	"tradepulse/services/testutil"
	"tradepulse/services/wallet"
)

type stubVault struct {
	mu       sync.Mutex
	wallets  map[string]*wallet.Wallet
	material []byte
	err      error
}

func (v *stubVault) Get(ctx context.Context, walletID string) (*wallet.Wallet, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.wallets[walletID], nil
}

func (v *stubVault) ResolveSigningMaterial(ctx context.Context, walletID string) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return nil, v.err
	}
	return v.material, nil
}

type stubMarket struct {
	mu   sync.Mutex
	caps map[string]decimal.Decimal
}

func (m *stubMarket) set(token, cap string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caps[token] = decimal.RequireFromString(cap)
}

func (m *stubMarket) unset(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.caps, token)
}

func (m *stubMarket) GetMarketCap(ctx context.Context, tokenAddress string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cap, ok := m.caps[tokenAddress]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no quote for %s", exchange.ErrUnavailable, tokenAddress)
	}
	return cap, nil
}

type stubRouter struct {
	mu       sync.Mutex
	calls    []exchange.SwapRequest
	err      error
	counter  decimal.Decimal
	sequence int
}

func (r *stubRouter) Swap(ctx context.Context, req exchange.SwapRequest) (*exchange.SwapResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.calls = append(r.calls, req)
	r.sequence++
	counter := r.counter
	if counter.IsZero() {
		counter = decimal.RequireFromString("1000")
	}
	return &exchange.SwapResult{
		CounterpartAmount: counter,
		TransactionID:     fmt.Sprintf("tx-%d", r.sequence),
	}, nil
}

func (r *stubRouter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type stubNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *stubNotifier) Notify(ctx context.Context, ownerID int64, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.messages)
}

type stubLedger struct {
	mu      sync.Mutex
	entries []referral.RecordEarningParams
}

func (l *stubLedger) RecordEarning(ctx context.Context, p referral.RecordEarningParams) (*referral.RecordResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, p)
	return &referral.RecordResult{Outcome: referral.OutcomeRecorded, Earning: &referral.CommissionEarning{
		ID:               "earning-1",
		CommissionAmount: p.FeeAmount.Mul(decimal.RequireFromString("0.20")),
	}}, nil
}

type fixture struct {
	svc      *Service
	vault    *stubVault
	market   *stubMarket
	router   *stubRouter
	notifier *stubNotifier
	ledger   *stubLedger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testutil.NewTestDB(t, &LimitOrder{}, &DcaOrder{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := &fixture{
		vault: &stubVault{
			wallets: map[string]*wallet.Wallet{
				"w1": {ID: "w1", OwnerID: 42, Address: "So1anaAddr1"},
			},
			material: []byte("signing-material"),
		},
		market:   &stubMarket{caps: map[string]decimal.Decimal{}},
		router:   &stubRouter{},
		notifier: &stubNotifier{},
		ledger:   &stubLedger{},
	}

	cfg := &config.Config{}
	cfg.Engine.PlatformFeeBps = 100
	cfg.Engine.NotifyOnFailure = false

	f.svc = NewService(Params{
		DB:       db,
		Node:     node,
		Config:   cfg,
		Limits:   repository.ProvideStore[LimitOrder](db),
		Dcas:     repository.ProvideStore[DcaOrder](db),
		Vault:    f.vault,
		Market:   f.market,
		Router:   f.router,
		Notifier: f.notifier,
		Ledger:   f.ledger,
	})
	return f
}

func validLimitParams() CreateLimitOrderParams {
	return CreateLimitOrderParams{
		OwnerID:          42,
		WalletID:         "w1",
		TokenAddress:     "TOKEN",
		Direction:        exchange.Buy,
		SpendAmount:      d("1.5"),
		SlippageBps:      50,
		TriggerMarketCap: d("100000"),
	}
}

func TestCreateLimitOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("valid buy order", func(t *testing.T) {
		o, err := f.svc.CreateLimitOrder(ctx, validLimitParams())
		require.NoError(t, err)
		require.Equal(t, StatusPending, o.Status)
		require.NotEmpty(t, o.ID)
	})

	t.Run("valid sell order", func(t *testing.T) {
		p := validLimitParams()
		p.Direction = exchange.Sell
		p.SpendAmount = decimal.Zero
		p.SellPercent = d("50")
		p.TriggerMarketCap = d("500000")
		o, err := f.svc.CreateLimitOrder(ctx, p)
		require.NoError(t, err)
		require.Equal(t, StatusPending, o.Status)
	})

	t.Run("buy requires spend amount", func(t *testing.T) {
		p := validLimitParams()
		p.SpendAmount = decimal.Zero
		_, err := f.svc.CreateLimitOrder(ctx, p)
		require.Error(t, err)
	})

	t.Run("buy rejects sell percent", func(t *testing.T) {
		p := validLimitParams()
		p.SellPercent = d("10")
		_, err := f.svc.CreateLimitOrder(ctx, p)
		require.Error(t, err)
	})

	t.Run("sell percent must not exceed 100", func(t *testing.T) {
		p := validLimitParams()
		p.Direction = exchange.Sell
		p.SpendAmount = decimal.Zero
		p.SellPercent = d("150")
		_, err := f.svc.CreateLimitOrder(ctx, p)
		require.Error(t, err)
	})

	t.Run("trigger must be positive", func(t *testing.T) {
		p := validLimitParams()
		p.TriggerMarketCap = decimal.Zero
		_, err := f.svc.CreateLimitOrder(ctx, p)
		require.Error(t, err)
	})

	t.Run("unknown direction rejected", func(t *testing.T) {
		p := validLimitParams()
		p.Direction = "hold"
		_, err := f.svc.CreateLimitOrder(ctx, p)
		require.Error(t, err)
	})

	t.Run("unknown wallet rejected", func(t *testing.T) {
		p := validLimitParams()
		p.WalletID = "missing"
		_, err := f.svc.CreateLimitOrder(ctx, p)
		require.Error(t, err)
	})

	t.Run("wallet owner mismatch rejected", func(t *testing.T) {
		p := validLimitParams()
		p.OwnerID = 7
		_, err := f.svc.CreateLimitOrder(ctx, p)
		require.Error(t, err)
	})
}

func TestCreateDCAOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	three := 3

	t.Run("valid with max executions", func(t *testing.T) {
		o, err := f.svc.CreateDCAOrder(ctx, CreateDCAOrderParams{
			OwnerID:         42,
			WalletID:        "w1",
			TokenAddress:    "TOKEN",
			Direction:       exchange.Buy,
			SpendAmount:     d("0.5"),
			IntervalMinutes: 60,
			MaxExecutions:   &three,
		})
		require.NoError(t, err)
		require.Equal(t, StatusPending, o.Status)
		require.Equal(t, 180, o.TotalDurationMinutes)
	})

	t.Run("valid open ended", func(t *testing.T) {
		o, err := f.svc.CreateDCAOrder(ctx, CreateDCAOrderParams{
			OwnerID:         42,
			WalletID:        "w1",
			TokenAddress:    "TOKEN",
			Direction:       exchange.Buy,
			SpendAmount:     d("0.5"),
			IntervalMinutes: 30,
		})
		require.NoError(t, err)
		require.Nil(t, o.MaxExecutions)
		require.Zero(t, o.TotalDurationMinutes)
	})

	t.Run("interval must be positive", func(t *testing.T) {
		_, err := f.svc.CreateDCAOrder(ctx, CreateDCAOrderParams{
			OwnerID:      42,
			WalletID:     "w1",
			TokenAddress: "TOKEN",
			Direction:    exchange.Buy,
			SpendAmount:  d("0.5"),
		})
		require.Error(t, err)
	})

	t.Run("max executions must be positive when set", func(t *testing.T) {
		zero := 0
		_, err := f.svc.CreateDCAOrder(ctx, CreateDCAOrderParams{
			OwnerID:         42,
			WalletID:        "w1",
			TokenAddress:    "TOKEN",
			Direction:       exchange.Buy,
			SpendAmount:     d("0.5"),
			IntervalMinutes: 60,
			MaxExecutions:   &zero,
		})
		require.Error(t, err)
	})
}
