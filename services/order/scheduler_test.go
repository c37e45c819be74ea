package order

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"tradepulse/pkg/config"
	"tradepulse/pkg/exchange"
)

func newTestScheduler(f *fixture) *Scheduler {
	cfg := &config.Config{}
	cfg.Engine.PollInterval = time.Second
	cfg.Engine.Parallelism = 4
	return NewScheduler(f.svc, cfg)
}

func TestSchedulerLimitBuyFiresOnThreshold(t *testing.T) {
	f := newFixture(t)
	sched := newTestScheduler(f)
	ctx := context.Background()

	o, err := f.svc.CreateLimitOrder(ctx, validLimitParams())
	require.NoError(t, err)

	// two polls above the trigger, one below
	for i, cap := range []string{"150000", "120000", "95000"} {
		f.market.set("TOKEN", cap)
		sched.RunCycle(ctx)

		if i < 2 {
			require.Zero(t, f.router.callCount(), "cycle %d must not trade", i)
		}
	}

	require.Equal(t, 1, f.router.callCount())
	require.Equal(t, exchange.Buy, f.router.calls[0].Direction)
	require.True(t, f.router.calls[0].Amount.Equal(d("1.5")))
	require.Equal(t, []byte("signing-material"), f.router.calls[0].SigningMaterial)

	stored, err := f.svc.limits.FindOne(ctx, &LimitOrder{ID: o.ID})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
	require.Equal(t, 1, f.notifier.count())

	// completed orders never trade again
	sched.RunCycle(ctx)
	require.Equal(t, 1, f.router.callCount())
}

func TestSchedulerDcaCadenceAndTermination(t *testing.T) {
	f := newFixture(t)
	sched := newTestScheduler(f)
	ctx := context.Background()
	three := 3

	o, err := f.svc.CreateDCAOrder(ctx, CreateDCAOrderParams{
		OwnerID:         42,
		WalletID:        "w1",
		TokenAddress:    "TOKEN",
		Direction:       exchange.Buy,
		SpendAmount:     d("0.25"),
		IntervalMinutes: 60,
		MaxExecutions:   &three,
	})
	require.NoError(t, err)

	// poll every 10 simulated minutes for 4 hours
	clock := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	sched.now = func() time.Time { return clock }
	for i := 0; i < 24; i++ {
		sched.RunCycle(ctx)
		clock = clock.Add(10 * time.Minute)
	}

	require.Equal(t, 3, f.router.callCount())

	stored, err := f.svc.dcas.FindOne(ctx, &DcaOrder{ID: o.ID})
	require.NoError(t, err)
	require.Equal(t, 3, stored.ExecutedCount)
	require.Equal(t, StatusCompleted, stored.Status)
	require.NotNil(t, stored.LastExecutedAt)
}

func TestSchedulerRouterFailureLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	sched := newTestScheduler(f)
	ctx := context.Background()

	o, err := f.svc.CreateLimitOrder(ctx, validLimitParams())
	require.NoError(t, err)

	f.market.set("TOKEN", "90000")
	f.router.err = errors.New("router unreachable")
	sched.RunCycle(ctx)

	stored, err := f.svc.limits.FindOne(ctx, &LimitOrder{ID: o.ID})
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
	require.Zero(t, f.notifier.count())

	// router recovers, next cycle fills
	f.router.err = nil
	sched.RunCycle(ctx)

	stored, err = f.svc.limits.FindOne(ctx, &LimitOrder{ID: o.ID})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
}

func TestSchedulerVaultFailureLeavesOrderPending(t *testing.T) {
	f := newFixture(t)
	sched := newTestScheduler(f)
	ctx := context.Background()

	o, err := f.svc.CreateLimitOrder(ctx, validLimitParams())
	require.NoError(t, err)

	f.market.set("TOKEN", "90000")
	f.vault.err = errors.New("decrypt failed")
	sched.RunCycle(ctx)

	require.Zero(t, f.router.callCount())
	stored, err := f.svc.limits.FindOne(ctx, &LimitOrder{ID: o.ID})
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
}

func TestSchedulerSkipsOrderWithoutMarketData(t *testing.T) {
	f := newFixture(t)
	sched := newTestScheduler(f)
	ctx := context.Background()

	o, err := f.svc.CreateLimitOrder(ctx, validLimitParams())
	require.NoError(t, err)

	f.market.unset("TOKEN")
	sched.RunCycle(ctx)

	require.Zero(t, f.router.callCount())
	stored, err := f.svc.limits.FindOne(ctx, &LimitOrder{ID: o.ID})
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
}

func TestSchedulerSellFillRecordsCommission(t *testing.T) {
	f := newFixture(t)
	sched := newTestScheduler(f)
	ctx := context.Background()

	p := validLimitParams()
	p.Direction = exchange.Sell
	p.SpendAmount = decimal.Zero
	p.SellPercent = d("50")
	p.TriggerMarketCap = d("500000")
	_, err := f.svc.CreateLimitOrder(ctx, p)
	require.NoError(t, err)

	f.router.counter = d("200") // sell proceeds
	f.market.set("TOKEN", "600000")
	sched.RunCycle(ctx)

	require.Equal(t, 1, f.router.callCount())
	require.Len(t, f.ledger.entries, 1)
	// 1% platform fee on 200 proceeds
	require.True(t, f.ledger.entries[0].FeeAmount.Equal(d("2")))
	require.Equal(t, int64(42), f.ledger.entries[0].ReferredID)
	require.Equal(t, "tx-1", f.ledger.entries[0].TransactionID)
}

func TestSchedulerBuyFillDoesNotRecordCommission(t *testing.T) {
	f := newFixture(t)
	sched := newTestScheduler(f)
	ctx := context.Background()

	_, err := f.svc.CreateLimitOrder(ctx, validLimitParams())
	require.NoError(t, err)

	f.market.set("TOKEN", "90000")
	sched.RunCycle(ctx)

	require.Equal(t, 1, f.router.callCount())
	require.Empty(t, f.ledger.entries)
}

func TestSchedulerSingleFlight(t *testing.T) {
	f := newFixture(t)
	sched := newTestScheduler(f)
	ctx := context.Background()

	_, err := f.svc.CreateLimitOrder(ctx, validLimitParams())
	require.NoError(t, err)
	f.market.set("TOKEN", "90000")

	// a cycle already marked in flight skips entirely
	require.True(t, sched.inFlight.CompareAndSwap(false, true))
	sched.RunCycle(ctx)
	require.Zero(t, f.router.callCount())
	sched.inFlight.Store(false)

	sched.RunCycle(ctx)
	require.Equal(t, 1, f.router.callCount())

	// concurrent callers collapse to one cycle
	f2 := newFixture(t)
	sched2 := newTestScheduler(f2)
	_, err = f2.svc.CreateLimitOrder(ctx, validLimitParams())
	require.NoError(t, err)
	f2.market.set("TOKEN", "90000")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched2.RunCycle(ctx)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, f2.router.callCount(), 1)
}
