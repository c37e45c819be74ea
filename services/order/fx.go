package order

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"tradepulse/pkg/repository"
)

var Module = fx.Module("order",
	fx.Provide(
		repository.ProvideStore[LimitOrder],
		repository.ProvideStore[DcaOrder],
		NewService,
		NewScheduler,
	),
	fx.Invoke(StartScheduler),
)

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&LimitOrder{}, &DcaOrder{})
}
