package wallet

import (
	"context"
	"time"

	"tradepulse/pkg/db/option"
	"tradepulse/pkg/errutil"
	"tradepulse/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	keeper *Keeper

	wallets repository.Repository[Wallet]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Keeper *Keeper
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		keeper:  p.Keeper,
		wallets: repository.ProvideStore[Wallet](p.DB),
	}
}

// Import seals the provided signing material and stores the wallet. Key
// generation and derivation happen upstream; this is storage only.
func (s *Service) Import(ctx context.Context, ownerID int64, address string, secret []byte) (*Wallet, error) {
	if address == "" {
		return nil, errutil.ValidationFailed("address is required", nil)
	}
	if len(secret) == 0 {
		return nil, errutil.ValidationFailed("signing material is required", nil)
	}

	exist, err := s.wallets.FindOne(ctx, &Wallet{Address: address})
	if err != nil {
		return nil, err
	}
	if exist != nil {
		return nil, errutil.Conflict("wallet address already imported", nil)
	}

	sealed, err := s.keeper.Seal(secret)
	if err != nil {
		zap.L().Error("failed to seal wallet key", zap.Error(err))
		return nil, errutil.Internal("failed to seal wallet key", err, errutil.WithErr(err))
	}

	w := &Wallet{
		ID:           s.node.Generate().String(),
		OwnerID:      ownerID,
		Address:      address,
		EncryptedKey: sealed,
		CreatedAt:    time.Now(),
	}
	if err := s.wallets.Create(ctx, w); err != nil {
		return nil, err
	}

	return w, nil
}

// Get returns (nil, nil) when the wallet does not exist.
func (s *Service) Get(ctx context.Context, walletID string) (*Wallet, error) {
	return s.wallets.FindOne(ctx, &Wallet{ID: walletID})
}

// ResolveSigningMaterial decrypts the stored key for a wallet. A decryption
// failure is returned as-is; there is no fallback.
func (s *Service) ResolveSigningMaterial(ctx context.Context, walletID string) ([]byte, error) {
	w, err := s.wallets.FindOne(ctx, &Wallet{ID: walletID})
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, errutil.NotFound("wallet not found", nil)
	}

	secret, err := s.keeper.Open(w.EncryptedKey)
	if err != nil {
		zap.L().Error("failed to decrypt signing material",
			zap.String("wallet_id", walletID),
			zap.Error(err),
		)
		return nil, errutil.Internal("failed to decrypt signing material", err, errutil.WithErr(err))
	}

	return secret, nil
}

// OldestWallet returns the owner's earliest-registered wallet, or (nil, nil)
// when the owner has none.
func (s *Service) OldestWallet(ctx context.Context, ownerID int64) (*Wallet, error) {
	return s.wallets.FindOne(ctx, &Wallet{OwnerID: ownerID}, option.WithSortBy(option.QuerySortBy{
		SortBy:  "created_at",
		OrderBy: "asc",
		Allow: map[string]bool{
			"created_at": true,
		},
	}))
}

// OldestWalletAddress is the payout destination used for commission credits.
func (s *Service) OldestWalletAddress(ctx context.Context, ownerID int64) (string, error) {
	w, err := s.OldestWallet(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if w == nil {
		return "", nil
	}
	return w.Address, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID int64) ([]*Wallet, error) {
	return s.wallets.Find(ctx, &Wallet{OwnerID: ownerID})
}
