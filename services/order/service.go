package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradepulse/pkg/config"
	"tradepulse/pkg/errutil"
	"tradepulse/pkg/exchange"
	"tradepulse/pkg/repository"
	"tradepulse/services/referral"
	"tradepulse/services/wallet"
)

// Vault resolves wallets and their signing material. *wallet.Service
// satisfies it.
type Vault interface {
	Get(ctx context.Context, walletID string) (*wallet.Wallet, error)
	ResolveSigningMaterial(ctx context.Context, walletID string) ([]byte, error)
}

// Ledger records referral commissions off sell fills. *referral.Service
// satisfies it.
type Ledger interface {
	RecordEarning(ctx context.Context, p referral.RecordEarningParams) (*referral.RecordResult, error)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Limits   repository.Repository[LimitOrder]
	Dcas     repository.Repository[DcaOrder]
	Vault    Vault
	Market   exchange.MarketData
	Router   exchange.TradeRouter
	Notifier exchange.Notifier `optional:"true"`
	Ledger   Ledger            `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	limits   repository.Repository[LimitOrder]
	dcas     repository.Repository[DcaOrder]
	vault    Vault
	market   exchange.MarketData
	router   exchange.TradeRouter
	notifier exchange.Notifier
	ledger   Ledger

	platformFeeBps  int64
	notifyOnFailure bool
}

func NewService(p Params) *Service {
	return &Service{
		db:              p.DB,
		node:            p.Node,
		limits:          p.Limits,
		dcas:            p.Dcas,
		vault:           p.Vault,
		market:          p.Market,
		router:          p.Router,
		notifier:        p.Notifier,
		ledger:          p.Ledger,
		platformFeeBps:  p.Config.Engine.PlatformFeeBps,
		notifyOnFailure: p.Config.Engine.NotifyOnFailure,
	}
}

type CreateLimitOrderParams struct {
	OwnerID          int64
	WalletID         string
	TokenAddress     string
	Direction        exchange.Direction
	SpendAmount      decimal.Decimal
	SellPercent      decimal.Decimal
	SlippageBps      int
	TriggerMarketCap decimal.Decimal
}

type CreateDCAOrderParams struct {
	OwnerID         int64
	WalletID        string
	TokenAddress    string
	Direction       exchange.Direction
	SpendAmount     decimal.Decimal
	SellPercent     decimal.Decimal
	SlippageBps     int
	IntervalMinutes int
	MaxExecutions   *int
}

func (s *Service) validateCommon(ctx context.Context, ownerID int64, walletID, token string, direction exchange.Direction, spend, percent decimal.Decimal, slippageBps int) error {
	if ownerID == 0 {
		return errutil.BadRequest("owner id is required", nil)
	}
	if walletID == "" {
		return errutil.BadRequest("wallet id is required", nil)
	}
	if token == "" {
		return errutil.BadRequest("token address is required", nil)
	}
	if !direction.Valid() {
		return errutil.BadRequest(fmt.Sprintf("unknown direction %q", direction), nil)
	}
	if slippageBps < 0 || slippageBps > 10000 {
		return errutil.BadRequest("slippage must be between 0 and 10000 bps", nil)
	}

	// buys size by absolute spend, sells by share of holdings
	switch direction {
	case exchange.Buy:
		if !spend.IsPositive() {
			return errutil.BadRequest("buy orders require a positive spend amount", nil)
		}
		if !percent.IsZero() {
			return errutil.BadRequest("buy orders must not set sell percent", nil)
		}
	case exchange.Sell:
		if !percent.IsPositive() || percent.GreaterThan(decimal.NewFromInt(100)) {
			return errutil.BadRequest("sell orders require a sell percent in (0, 100]", nil)
		}
		if !spend.IsZero() {
			return errutil.BadRequest("sell orders must not set spend amount", nil)
		}
	}

	w, err := s.vault.Get(ctx, walletID)
	if err != nil {
		return err
	}
	if w == nil {
		return errutil.NotFound(fmt.Sprintf("wallet %s not found", walletID), nil)
	}
	if w.OwnerID != ownerID {
		return errutil.BadRequest("wallet does not belong to the order owner", nil)
	}
	return nil
}

func (s *Service) CreateLimitOrder(ctx context.Context, p CreateLimitOrderParams) (*LimitOrder, error) {
	if err := s.validateCommon(ctx, p.OwnerID, p.WalletID, p.TokenAddress, p.Direction, p.SpendAmount, p.SellPercent, p.SlippageBps); err != nil {
		return nil, err
	}
	if !p.TriggerMarketCap.IsPositive() {
		return nil, errutil.BadRequest("trigger market cap must be positive", nil)
	}

	now := time.Now()
	o := &LimitOrder{
		ID:               s.node.Generate().String(),
		OwnerID:          p.OwnerID,
		WalletID:         p.WalletID,
		TokenAddress:     p.TokenAddress,
		Direction:        p.Direction,
		SpendAmount:      p.SpendAmount,
		SellPercent:      p.SellPercent,
		SlippageBps:      p.SlippageBps,
		TriggerMarketCap: p.TriggerMarketCap,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.limits.Create(ctx, o); err != nil {
		return nil, err
	}

	zap.L().Info("limit order created",
		zap.String("order_id", o.ID),
		zap.Int64("owner_id", o.OwnerID),
		zap.String("token_address", o.TokenAddress),
		zap.String("direction", string(o.Direction)),
		zap.String("trigger_market_cap", o.TriggerMarketCap.String()),
	)
	return o, nil
}

func (s *Service) CreateDCAOrder(ctx context.Context, p CreateDCAOrderParams) (*DcaOrder, error) {
	if err := s.validateCommon(ctx, p.OwnerID, p.WalletID, p.TokenAddress, p.Direction, p.SpendAmount, p.SellPercent, p.SlippageBps); err != nil {
		return nil, err
	}
	if p.IntervalMinutes <= 0 {
		return nil, errutil.BadRequest("interval must be positive", nil)
	}
	if p.MaxExecutions != nil && *p.MaxExecutions <= 0 {
		return nil, errutil.BadRequest("max executions must be positive when set", nil)
	}

	now := time.Now()
	o := &DcaOrder{
		ID:              s.node.Generate().String(),
		OwnerID:         p.OwnerID,
		WalletID:        p.WalletID,
		TokenAddress:    p.TokenAddress,
		Direction:       p.Direction,
		SpendAmount:     p.SpendAmount,
		SellPercent:     p.SellPercent,
		SlippageBps:     p.SlippageBps,
		IntervalMinutes: p.IntervalMinutes,
		MaxExecutions:   p.MaxExecutions,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if p.MaxExecutions != nil {
		o.TotalDurationMinutes = p.IntervalMinutes * *p.MaxExecutions
	}
	if err := s.dcas.Create(ctx, o); err != nil {
		return nil, err
	}

	zap.L().Info("dca order created",
		zap.String("order_id", o.ID),
		zap.Int64("owner_id", o.OwnerID),
		zap.String("token_address", o.TokenAddress),
		zap.String("direction", string(o.Direction)),
		zap.Int("interval_minutes", o.IntervalMinutes),
	)
	return o, nil
}

func (s *Service) PendingLimitOrders(ctx context.Context) ([]*LimitOrder, error) {
	return s.limits.Find(ctx, &LimitOrder{Status: StatusPending})
}

func (s *Service) PendingDcaOrders(ctx context.Context) ([]*DcaOrder, error) {
	return s.dcas.Find(ctx, &DcaOrder{Status: StatusPending})
}

func (s *Service) ListLimitOrders(ctx context.Context, ownerID int64) ([]*LimitOrder, error) {
	return s.limits.Find(ctx, &LimitOrder{OwnerID: ownerID})
}

func (s *Service) ListDcaOrders(ctx context.Context, ownerID int64) ([]*DcaOrder, error) {
	return s.dcas.Find(ctx, &DcaOrder{OwnerID: ownerID})
}

// processLimitOrder evaluates and, when triggered, executes one limit order
// at the given time. All failure modes leave the order pending for the next
// cycle; the state flip to completed happens only after a confirmed fill.
func (s *Service) processLimitOrder(ctx context.Context, o *LimitOrder, now time.Time) {
	log := zap.L().With(
		zap.String("order_id", o.ID),
		zap.Int64("owner_id", o.OwnerID),
		zap.String("token_address", o.TokenAddress),
	)

	marketCap, err := s.market.GetMarketCap(ctx, o.TokenAddress)
	if err != nil {
		if errors.Is(err, exchange.ErrUnavailable) {
			log.Debug("market cap unavailable, skipping order this cycle")
		} else {
			log.Warn("market data lookup failed", zap.Error(err))
		}
		return
	}

	if !LimitTriggered(o, marketCap) {
		return
	}

	log.Info("limit order triggered",
		zap.String("market_cap", marketCap.String()),
		zap.String("trigger_market_cap", o.TriggerMarketCap.String()),
	)

	res, err := s.executeSwap(ctx, o.WalletID, o.TokenAddress, o.Direction, o.SpendAmount, o.SellPercent, o.SlippageBps, log)
	if err != nil {
		s.notifyFailure(ctx, o.OwnerID, fmt.Sprintf("⚠️ Limit %s on %s failed, will retry: %v", o.Direction, o.TokenAddress, err))
		return
	}

	if err := s.limits.Update(ctx, o.ID, map[string]any{
		"status":     StatusCompleted,
		"updated_at": now,
	}); err != nil {
		log.Error("failed to mark limit order completed", zap.Error(err))
		return
	}
	o.Status = StatusCompleted

	s.afterFill(ctx, fillInfo{
		ownerID:   o.OwnerID,
		walletID:  o.WalletID,
		token:     o.TokenAddress,
		direction: o.Direction,
		spend:     o.SpendAmount,
		percent:   o.SellPercent,
		result:    res,
		summary:   fmt.Sprintf("✅ Limit %s on %s filled", o.Direction, o.TokenAddress),
	})
}

// processDcaOrder executes one due DCA order and advances its cadence. The
// execution counter and timestamp move only after a confirmed fill, so a
// failed cycle retries on the next poll.
func (s *Service) processDcaOrder(ctx context.Context, o *DcaOrder, now time.Time) {
	log := zap.L().With(
		zap.String("order_id", o.ID),
		zap.Int64("owner_id", o.OwnerID),
		zap.String("token_address", o.TokenAddress),
	)

	if !DcaDue(o, now) {
		return
	}

	res, err := s.executeSwap(ctx, o.WalletID, o.TokenAddress, o.Direction, o.SpendAmount, o.SellPercent, o.SlippageBps, log)
	if err != nil {
		s.notifyFailure(ctx, o.OwnerID, fmt.Sprintf("⚠️ DCA %s on %s failed, will retry: %v", o.Direction, o.TokenAddress, err))
		return
	}

	executed := o.ExecutedCount + 1
	updates := map[string]any{
		"executed_count":   executed,
		"last_executed_at": now,
		"updated_at":       now,
	}
	done := o.MaxExecutions != nil && executed >= *o.MaxExecutions
	if done {
		updates["status"] = StatusCompleted
	}
	if err := s.dcas.Update(ctx, o.ID, updates); err != nil {
		log.Error("failed to advance dca order", zap.Error(err))
		return
	}
	o.ExecutedCount = executed
	o.LastExecutedAt = &now
	if done {
		o.Status = StatusCompleted
	}

	summary := fmt.Sprintf("✅ DCA %s on %s executed (%d", o.Direction, o.TokenAddress, executed)
	if o.MaxExecutions != nil {
		summary += fmt.Sprintf("/%d", *o.MaxExecutions)
	}
	summary += ")"
	if done {
		summary += ", schedule complete"
	}

	s.afterFill(ctx, fillInfo{
		ownerID:   o.OwnerID,
		walletID:  o.WalletID,
		token:     o.TokenAddress,
		direction: o.Direction,
		spend:     o.SpendAmount,
		percent:   o.SellPercent,
		result:    res,
		summary:   summary,
	})
}

func (s *Service) executeSwap(ctx context.Context, walletID, token string, direction exchange.Direction, spend, percent decimal.Decimal, slippageBps int, log *zap.Logger) (*exchange.SwapResult, error) {
	w, err := s.vault.Get(ctx, walletID)
	if err != nil {
		log.Warn("wallet lookup failed", zap.Error(err))
		return nil, err
	}
	if w == nil {
		log.Warn("wallet missing, skipping order", zap.String("wallet_id", walletID))
		return nil, errutil.NotFound("wallet not found", nil)
	}

	material, err := s.vault.ResolveSigningMaterial(ctx, walletID)
	if err != nil {
		log.Error("failed to resolve signing material", zap.Error(err))
		return nil, err
	}

	res, err := s.router.Swap(ctx, exchange.SwapRequest{
		TokenAddress:    token,
		Direction:       direction,
		Amount:          spend,
		Percent:         percent,
		SlippageBps:     slippageBps,
		SigningMaterial: material,
	})
	if err != nil {
		log.Warn("swap failed, order stays pending", zap.Error(err))
		return nil, err
	}

	log.Info("swap executed",
		zap.String("transaction_id", res.TransactionID),
		zap.String("counterpart_amount", res.CounterpartAmount.String()),
	)
	return res, nil
}

type fillInfo struct {
	ownerID   int64
	walletID  string
	token     string
	direction exchange.Direction
	spend     decimal.Decimal
	percent   decimal.Decimal
	result    *exchange.SwapResult
	summary   string
}

// afterFill handles the post-trade side effects: owner notification and, on
// sells, the referral commission off the platform fee. Neither can fail the
// fill; the swap already happened.
func (s *Service) afterFill(ctx context.Context, fill fillInfo) {
	if s.notifier != nil {
		var sized string
		if fill.direction == exchange.Buy {
			sized = fmt.Sprintf("spent %s, received %s %s", fill.spend, fill.result.CounterpartAmount, fill.token)
		} else {
			sized = fmt.Sprintf("sold %s%% of %s for %s", fill.percent, fill.token, fill.result.CounterpartAmount)
		}
		s.notifier.Notify(ctx, fill.ownerID, fmt.Sprintf("%s\n%s\nTx: %s", fill.summary, sized, fill.result.TransactionID))
	}

	if fill.direction != exchange.Sell || s.ledger == nil || s.platformFeeBps <= 0 {
		return
	}

	fee := fill.result.CounterpartAmount.
		Mul(decimal.NewFromInt(s.platformFeeBps)).
		Div(decimal.NewFromInt(10000))
	if !fee.IsPositive() {
		return
	}

	res, err := s.ledger.RecordEarning(ctx, referral.RecordEarningParams{
		ReferredID:    fill.ownerID,
		WalletID:      fill.walletID,
		TokenAddress:  fill.token,
		FeeAmount:     fee,
		TransactionID: fill.result.TransactionID,
	})
	if err != nil {
		zap.L().Warn("failed to record referral earning",
			zap.String("transaction_id", fill.result.TransactionID),
			zap.Error(err),
		)
		return
	}
	if res.Outcome == referral.OutcomeDuplicate {
		zap.L().Debug("fee already ledgered for transaction",
			zap.String("transaction_id", fill.result.TransactionID),
		)
	}
}

func (s *Service) notifyFailure(ctx context.Context, ownerID int64, message string) {
	if !s.notifyOnFailure || s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, ownerID, message)
}
