package referral

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"tradepulse/pkg/repository"
)

var Module = fx.Module("referral",
	fx.Provide(
		repository.ProvideStore[ReferralEdge],
		repository.ProvideStore[CommissionEarning],
		NewService,
	),
)

// WorkerModule wires the credit retry task handler and its cron trigger on
// top of Module. Only the worker binary mounts it.
var WorkerModule = fx.Module("referral:worker",
	fx.Invoke(registerTaskHandlers, startCreditSchedule),
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ReferralEdge{}, &CommissionEarning{})
}
