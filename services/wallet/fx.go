package wallet

import (
	"tradepulse/pkg/config"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("wallet.service",
	fx.Provide(
		provideKeeper,
		NewService,
	),
)

func provideKeeper(cfg *config.Config) (*Keeper, error) {
	return NewKeeper(cfg.Wallet.SecretKey)
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Wallet{})
}
