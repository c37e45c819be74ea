package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"tradepulse/pkg/config"
	"tradepulse/pkg/health"
	"tradepulse/pkg/middleware"
)

var Module = fx.Module("httpapi",
	fx.Provide(
		NewHandler,
		NewRouter,
	),
)

func NewRouter(cfg *config.Config, h *Handler, healthSvc health.HealthService) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.Error())

	r.GET("/healthz", healthSvc.Liveness)
	r.GET("/readyz", healthSvc.Readiness)

	v1 := r.Group("/v1")
	{
		v1.POST("/wallets", h.ImportWallet)
		v1.GET("/wallets", h.ListWallets)

		v1.POST("/orders/limit", h.CreateLimitOrder)
		v1.POST("/orders/dca", h.CreateDCAOrder)
		v1.GET("/orders", h.ListOrders)

		v1.POST("/referrals", h.RegisterReferral)
		v1.GET("/referrals/earnings", h.ListEarnings)
	}

	return r
}
