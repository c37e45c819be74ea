package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradepulse/internal/httpapi"
	"tradepulse/pkg/config"
	"tradepulse/pkg/db"
	"tradepulse/pkg/dexrouter"
	"tradepulse/pkg/gen"
	"tradepulse/pkg/health"
	"tradepulse/pkg/logger"
	"tradepulse/pkg/marketdata"
	"tradepulse/pkg/otelcol"
	"tradepulse/pkg/redis"
	"tradepulse/pkg/secretmanager"
	"tradepulse/pkg/server"
	"tradepulse/pkg/telegram"
	"tradepulse/services/order"
	"tradepulse/services/referral"
	"tradepulse/services/wallet"
)

// engine hosts the HTTP API and the order poll loop.
func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		otelcol.Module,
		db.Module,
		redis.Module,
		gen.Module,
		marketdata.Module,
		dexrouter.Module,
		telegram.Module,
		fx.Provide(
			func(s *wallet.Service) order.Vault { return s },
			func(s *referral.Service) order.Ledger { return s },
			func(s *wallet.Service) referral.WalletResolver { return s },
		),
		wallet.Module,
		referral.Module,
		order.Module,
		health.Module,
		httpapi.Module,
		server.ProvideHTTPServer,
		fx.Invoke(migrate),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

func migrate(db *gorm.DB) error {
	for _, fn := range []func(*gorm.DB) error{
		wallet.AutoMigrate,
		order.AutoMigrate,
		referral.AutoMigrate,
	} {
		if err := fn(db); err != nil {
			return err
		}
	}
	return nil
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
