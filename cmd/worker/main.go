package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"tradepulse/pkg/config"
	"tradepulse/pkg/db"
	"tradepulse/pkg/dexrouter"
	"tradepulse/pkg/gen"
	"tradepulse/pkg/logger"
	"tradepulse/pkg/secretmanager"
	"tradepulse/pkg/task"
	"tradepulse/services/referral"
	"tradepulse/services/wallet"
)

// worker runs the commission credit sweeps off the asynq queue.
func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		gen.Module,
		task.Client,
		task.Server,
		dexrouter.Module,
		fx.Provide(
			func(s *wallet.Service) referral.WalletResolver { return s },
		),
		wallet.Module,
		referral.Module,
		referral.WorkerModule,
		fx.Invoke(referral.AutoMigrate),
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
