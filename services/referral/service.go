package referral

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"tradepulse/pkg/config"
	"tradepulse/pkg/db/option"
	"tradepulse/pkg/errutil"
	"tradepulse/pkg/exchange"
	"tradepulse/pkg/repository"
)

// WalletResolver yields the payout destination for a referrer.
type WalletResolver interface {
	OldestWalletAddress(ctx context.Context, ownerID int64) (string, error)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Edges    repository.Repository[ReferralEdge]
	Earnings repository.Repository[CommissionEarning]
	Wallets  WalletResolver         `optional:"true"`
	Transfer exchange.FundsTransfer `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	edges    repository.Repository[ReferralEdge]
	earnings repository.Repository[CommissionEarning]
	wallets  WalletResolver
	transfer exchange.FundsTransfer

	feeCeiling        decimal.Decimal
	retryBatchSize    int
	attemptsWarnAfter int

	now func() time.Time
}

// defaultFeeCeiling bounds the fee fed into the ledger when no ceiling is
// configured. An upstream pricing bug must not mint an outsized commission.
var defaultFeeCeiling = decimal.NewFromInt(10000)

func NewService(p Params) *Service {
	ceiling := defaultFeeCeiling
	if p.Config.Referral.FeeCeiling != "" {
		v, err := decimal.NewFromString(p.Config.Referral.FeeCeiling)
		if err != nil {
			zap.L().Warn("invalid referral fee ceiling, keeping default",
				zap.String("fee_ceiling", p.Config.Referral.FeeCeiling),
				zap.String("default", defaultFeeCeiling.String()),
				zap.Error(err),
			)
		} else {
			ceiling = v
		}
	}

	batch := p.Config.Referral.RetryBatchSize
	if batch <= 0 {
		batch = 50
	}

	return &Service{
		db:                p.DB,
		node:              p.Node,
		edges:             p.Edges,
		earnings:          p.Earnings,
		wallets:           p.Wallets,
		transfer:          p.Transfer,
		feeCeiling:        ceiling,
		retryBatchSize:    batch,
		attemptsWarnAfter: p.Config.Referral.AttemptsWarnAfter,
		now:               time.Now,
	}
}

// RegisterEdge records that referred was brought in by referrer. The first
// registration wins; any later attempt for the same referred account is a
// no-op returning the existing edge.
func (s *Service) RegisterEdge(ctx context.Context, referrerID, referredID int64) (*ReferralEdge, error) {
	if referrerID == 0 || referredID == 0 {
		return nil, errutil.BadRequest("referrer and referred ids are required", nil)
	}
	if referrerID == referredID {
		return nil, errutil.BadRequest("an account cannot refer itself", nil)
	}

	existing, err := s.edges.FindOne(ctx, &ReferralEdge{ReferredID: referredID})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	edge := &ReferralEdge{
		ID:         s.node.Generate().String(),
		ReferrerID: referrerID,
		ReferredID: referredID,
		CreatedAt:  s.now(),
	}
	if err := s.edges.Create(ctx, edge); err != nil {
		// lost the insert race, the earlier registration stands
		if existing, ferr := s.edges.FindOne(ctx, &ReferralEdge{ReferredID: referredID}); ferr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return edge, nil
}

// Outcome of a RecordEarning call.
type Outcome string

const (
	OutcomeRecorded   Outcome = "recorded"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeNoReferrer Outcome = "no_referrer"
)

type RecordEarningParams struct {
	ReferredID    int64
	WalletID      string
	TokenAddress  string
	FeeAmount     decimal.Decimal
	TransactionID string
}

type RecordResult struct {
	Outcome Outcome
	Earning *CommissionEarning
}

// RecordEarning turns a platform fee from a referred account's trade into an
// uncredited commission row. The call is idempotent by transaction id: the
// first call for a given trade creates the row, every later call is a
// duplicate no-op regardless of the amounts passed.
func (s *Service) RecordEarning(ctx context.Context, p RecordEarningParams) (*RecordResult, error) {
	if p.TransactionID == "" {
		return nil, errutil.BadRequest("transaction id is required", nil)
	}
	if p.ReferredID == 0 {
		return nil, errutil.BadRequest("referred id is required", nil)
	}
	if !p.FeeAmount.IsPositive() {
		return nil, errutil.BadRequest("fee amount must be positive", nil)
	}

	span := trace.SpanFromContext(ctx)
	log := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
		zap.String("transaction_id", p.TransactionID),
	)

	fee := p.FeeAmount
	if s.feeCeiling.IsPositive() && fee.GreaterThan(s.feeCeiling) {
		log.Warn("fee amount above ceiling, capping",
			zap.String("fee_amount", fee.String()),
			zap.String("fee_ceiling", s.feeCeiling.String()),
		)
		fee = s.feeCeiling
	}

	var result RecordResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		earnings := s.earnings.WithTrx(tx)
		edges := s.edges.WithTrx(tx)

		existing, err := earnings.FindOne(ctx, &CommissionEarning{TransactionID: p.TransactionID}, option.WithLockingUpdate())
		if err != nil {
			return err
		}
		if existing != nil {
			result = RecordResult{Outcome: OutcomeDuplicate, Earning: existing}
			return nil
		}

		edge, err := edges.FindOne(ctx, &ReferralEdge{ReferredID: p.ReferredID})
		if err != nil {
			return err
		}
		if edge == nil {
			result = RecordResult{Outcome: OutcomeNoReferrer}
			return nil
		}

		now := s.now()
		rate := RateFor(edge.CreatedAt, now)
		// keep the pre-cap fee and the tier next to the row for operators
		meta, _ := json.Marshal(map[string]string{
			"wallet_id":     p.WalletID,
			"token_address": p.TokenAddress,
			"submitted_fee": p.FeeAmount.String(),
			"rate_tier":     rate.String(),
		})
		earning := &CommissionEarning{
			ID:               s.node.Generate().String(),
			ReferrerID:       edge.ReferrerID,
			ReferredID:       p.ReferredID,
			WalletID:         p.WalletID,
			TokenAddress:     p.TokenAddress,
			GrossFeeAmount:   fee,
			CommissionRate:   rate,
			CommissionAmount: fee.Mul(rate),
			TransactionID:    p.TransactionID,
			Credited:         false,
			Attempts:         0,
			Metadata:         datatypes.JSON(meta),
			CreatedAt:        now,
		}
		if err := earnings.Create(ctx, earning); err != nil {
			// concurrent insert for the same trade, re-read and report duplicate
			if existing, ferr := earnings.FindOne(ctx, &CommissionEarning{TransactionID: p.TransactionID}); ferr == nil && existing != nil {
				result = RecordResult{Outcome: OutcomeDuplicate, Earning: existing}
				return nil
			}
			return err
		}
		result = RecordResult{Outcome: OutcomeRecorded, Earning: earning}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// immediate best-effort payout; a failure here lands with the retry sweep
	if result.Outcome == OutcomeRecorded {
		log.Info("commission earning recorded",
			zap.Int64("referrer_id", result.Earning.ReferrerID),
			zap.String("commission_rate", result.Earning.CommissionRate.String()),
			zap.String("commission_amount", result.Earning.CommissionAmount.String()),
		)
		s.creditOne(ctx, result.Earning)
	}
	return &result, nil
}

// Earnings lists a referrer's commission rows, newest first.
func (s *Service) Earnings(ctx context.Context, referrerID int64, limit int) ([]*CommissionEarning, error) {
	if referrerID == 0 {
		return nil, errutil.BadRequest("referrer id is required", nil)
	}
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "desc", Allow: map[string]bool{"created_at": true}}),
	}
	if limit > 0 {
		opts = append(opts, option.WithLimit(limit))
	}
	return s.earnings.Find(ctx, &CommissionEarning{ReferrerID: referrerID}, opts...)
}

// TotalUncredited sums the outstanding commission owed to a referrer.
func (s *Service) TotalUncredited(ctx context.Context, referrerID int64) (decimal.Decimal, error) {
	rows, err := s.earnings.Find(ctx, &CommissionEarning{ReferrerID: referrerID},
		option.ApplyOperator(option.Condition{Field: "credited", Operator: option.EQ, Value: false}),
	)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.CommissionAmount)
	}
	return total, nil
}

// CreditPending works through uncredited earnings oldest first and attempts
// to pay each one out. Per-row failures are logged and counted, never
// propagated; rows that keep failing stay uncredited for the next sweep.
func (s *Service) CreditPending(ctx context.Context) (credited int, err error) {
	rows, err := s.earnings.Find(ctx, &CommissionEarning{},
		option.ApplyOperator(option.Condition{Field: "credited", Operator: option.EQ, Value: false}),
		option.WithSortBy(option.QuerySortBy{SortBy: "created_at", OrderBy: "asc", Allow: map[string]bool{"created_at": true}}),
		option.WithLimit(s.retryBatchSize),
	)
	if err != nil {
		return 0, err
	}

	for _, row := range rows {
		if ctx.Err() != nil {
			return credited, ctx.Err()
		}
		if s.creditOne(ctx, row) {
			credited++
		}
	}
	return credited, nil
}

func (s *Service) creditOne(ctx context.Context, earning *CommissionEarning) bool {
	log := zap.L().With(
		zap.String("earning_id", earning.ID),
		zap.Int64("referrer_id", earning.ReferrerID),
		zap.String("transaction_id", earning.TransactionID),
	)

	if s.wallets == nil || s.transfer == nil {
		log.Warn("commission payout skipped, no payout backend configured")
		return false
	}

	address, err := s.wallets.OldestWalletAddress(ctx, earning.ReferrerID)
	if err != nil {
		s.bumpAttempts(ctx, earning, log, fmt.Errorf("resolve payout wallet: %w", err))
		return false
	}
	if address == "" {
		s.bumpAttempts(ctx, earning, log, errors.New("referrer has no payout wallet"))
		return false
	}

	if _, err := s.transfer.Send(ctx, address, earning.CommissionAmount); err != nil {
		s.bumpAttempts(ctx, earning, log, fmt.Errorf("send commission: %w", err))
		return false
	}

	// attempts counts failed credits only; a clean send leaves it alone
	now := s.now()
	if err := s.earnings.Update(ctx, earning.ID, map[string]any{
		"credited":    true,
		"credited_at": now,
	}); err != nil {
		// the transfer went out but the flip failed; the next sweep will
		// retry and the transaction_id guard keeps the ledger row unique
		log.Error("commission sent but credit flag update failed", zap.Error(err))
		return false
	}
	earning.Credited = true
	earning.CreditedAt = &now

	log.Info("commission credited",
		zap.String("address", address),
		zap.String("amount", earning.CommissionAmount.String()),
	)
	return true
}

func (s *Service) bumpAttempts(ctx context.Context, earning *CommissionEarning, log *zap.Logger, cause error) {
	attempts := earning.Attempts + 1
	if err := s.earnings.Update(ctx, earning.ID, map[string]any{"attempts": attempts}); err != nil {
		log.Error("failed to bump credit attempts", zap.Error(err))
	}
	earning.Attempts = attempts
	if s.attemptsWarnAfter > 0 && attempts >= s.attemptsWarnAfter {
		log.Warn("commission credit still failing after repeated attempts",
			zap.Int("attempts", attempts),
			zap.Error(cause),
		)
		return
	}
	log.Info("commission credit attempt failed, will retry", zap.Int("attempts", attempts), zap.Error(cause))
}
