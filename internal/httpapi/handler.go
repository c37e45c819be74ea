package httpapi

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"tradepulse/pkg/errutil"
	"tradepulse/pkg/exchange"
	"tradepulse/services/order"
	"tradepulse/services/referral"
	"tradepulse/services/wallet"
)

type Handler struct {
	orders    *order.Service
	wallets   *wallet.Service
	referrals *referral.Service
}

func NewHandler(orders *order.Service, wallets *wallet.Service, referrals *referral.Service) *Handler {
	return &Handler{
		orders:    orders,
		wallets:   wallets,
		referrals: referrals,
	}
}

type importWalletRequest struct {
	OwnerID int64  `json:"owner_id" binding:"required"`
	Address string `json:"address" binding:"required"`
	Secret  string `json:"secret" binding:"required"`
}

func (h *Handler) ImportWallet(c *gin.Context) {
	var req importWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest(err.Error(), nil))
		return
	}

	secret, err := base64.StdEncoding.DecodeString(req.Secret)
	if err != nil {
		c.Error(errutil.BadRequest("secret must be base64 encoded", nil))
		return
	}

	w, err := h.wallets.Import(c.Request.Context(), req.OwnerID, req.Address, secret)
	if err != nil {
		c.Error(err)
		return
	}

	// never echo key material back
	c.JSON(http.StatusCreated, gin.H{
		"id":         w.ID,
		"owner_id":   w.OwnerID,
		"address":    w.Address,
		"created_at": w.CreatedAt,
	})
}

func (h *Handler) ListWallets(c *gin.Context) {
	ownerID, err := ownerIDQuery(c)
	if err != nil {
		c.Error(err)
		return
	}

	wallets, err := h.wallets.ListByOwner(c.Request.Context(), ownerID)
	if err != nil {
		c.Error(err)
		return
	}

	out := make([]gin.H, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, gin.H{
			"id":         w.ID,
			"owner_id":   w.OwnerID,
			"address":    w.Address,
			"created_at": w.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"wallets": out})
}

type createLimitOrderRequest struct {
	OwnerID          int64  `json:"owner_id" binding:"required"`
	WalletID         string `json:"wallet_id" binding:"required"`
	TokenAddress     string `json:"token_address" binding:"required"`
	Direction        string `json:"direction" binding:"required,oneof=buy sell"`
	SpendAmount      string `json:"spend_amount"`
	SellPercent      string `json:"sell_percent"`
	SlippageBps      int    `json:"slippage_bps"`
	TriggerMarketCap string `json:"trigger_market_cap" binding:"required"`
}

func (h *Handler) CreateLimitOrder(c *gin.Context) {
	var req createLimitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest(err.Error(), nil))
		return
	}

	spend, err := optionalDecimal(req.SpendAmount, "spend_amount")
	if err != nil {
		c.Error(err)
		return
	}
	percent, err := optionalDecimal(req.SellPercent, "sell_percent")
	if err != nil {
		c.Error(err)
		return
	}
	trigger, err := optionalDecimal(req.TriggerMarketCap, "trigger_market_cap")
	if err != nil {
		c.Error(err)
		return
	}

	o, err := h.orders.CreateLimitOrder(c.Request.Context(), order.CreateLimitOrderParams{
		OwnerID:          req.OwnerID,
		WalletID:         req.WalletID,
		TokenAddress:     req.TokenAddress,
		Direction:        exchange.Direction(req.Direction),
		SpendAmount:      spend,
		SellPercent:      percent,
		SlippageBps:      req.SlippageBps,
		TriggerMarketCap: trigger,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

type createDCAOrderRequest struct {
	OwnerID         int64  `json:"owner_id" binding:"required"`
	WalletID        string `json:"wallet_id" binding:"required"`
	TokenAddress    string `json:"token_address" binding:"required"`
	Direction       string `json:"direction" binding:"required,oneof=buy sell"`
	SpendAmount     string `json:"spend_amount"`
	SellPercent     string `json:"sell_percent"`
	SlippageBps     int    `json:"slippage_bps"`
	IntervalMinutes int    `json:"interval_minutes" binding:"required,min=1"`
	MaxExecutions   *int   `json:"max_executions"`
}

func (h *Handler) CreateDCAOrder(c *gin.Context) {
	var req createDCAOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest(err.Error(), nil))
		return
	}

	spend, err := optionalDecimal(req.SpendAmount, "spend_amount")
	if err != nil {
		c.Error(err)
		return
	}
	percent, err := optionalDecimal(req.SellPercent, "sell_percent")
	if err != nil {
		c.Error(err)
		return
	}

	o, err := h.orders.CreateDCAOrder(c.Request.Context(), order.CreateDCAOrderParams{
		OwnerID:         req.OwnerID,
		WalletID:        req.WalletID,
		TokenAddress:    req.TokenAddress,
		Direction:       exchange.Direction(req.Direction),
		SpendAmount:     spend,
		SellPercent:     percent,
		SlippageBps:     req.SlippageBps,
		IntervalMinutes: req.IntervalMinutes,
		MaxExecutions:   req.MaxExecutions,
	})
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *Handler) ListOrders(c *gin.Context) {
	ownerID, err := ownerIDQuery(c)
	if err != nil {
		c.Error(err)
		return
	}

	limits, err := h.orders.ListLimitOrders(c.Request.Context(), ownerID)
	if err != nil {
		c.Error(err)
		return
	}
	dcas, err := h.orders.ListDcaOrders(c.Request.Context(), ownerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"limit_orders": limits,
		"dca_orders":   dcas,
	})
}

type registerReferralRequest struct {
	ReferrerID int64 `json:"referrer_id" binding:"required"`
	ReferredID int64 `json:"referred_id" binding:"required"`
}

func (h *Handler) RegisterReferral(c *gin.Context) {
	var req registerReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest(err.Error(), nil))
		return
	}

	edge, err := h.referrals.RegisterEdge(c.Request.Context(), req.ReferrerID, req.ReferredID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

func (h *Handler) ListEarnings(c *gin.Context) {
	referrerID, err := int64Query(c, "referrer_id")
	if err != nil {
		c.Error(err)
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.Error(errutil.BadRequest("limit must be a non-negative integer", nil))
			return
		}
	}

	earnings, err := h.referrals.Earnings(c.Request.Context(), referrerID, limit)
	if err != nil {
		c.Error(err)
		return
	}
	total, err := h.referrals.TotalUncredited(c.Request.Context(), referrerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"earnings":         earnings,
		"total_uncredited": total,
	})
}

func ownerIDQuery(c *gin.Context) (int64, error) {
	return int64Query(c, "owner_id")
}

func int64Query(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, errutil.BadRequest(fmt.Sprintf("%s is required", name), nil)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errutil.BadRequest(fmt.Sprintf("%s must be an integer", name), nil)
	}
	return v, nil
}

func optionalDecimal(raw, name string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errutil.BadRequest(fmt.Sprintf("%s must be a decimal string", name), nil)
	}
	return v, nil
}
