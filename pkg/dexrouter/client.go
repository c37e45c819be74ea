package dexrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tradepulse/pkg/config"
	"tradepulse/pkg/exchange"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
)

var Module = fx.Module("dexrouter",
	fx.Provide(New),
)

type Result struct {
	fx.Out
	Router   exchange.TradeRouter
	Transfer exchange.FundsTransfer
}

func New(cfg *config.Config) Result {
	timeout := cfg.Router.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: cfg.Router.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
	return Result{Router: c, Transfer: c}
}

// Client talks to the DEX router sidecar. The sidecar owns route selection,
// holdings resolution for percentage sells, and transaction submission; this
// client only ships the request and reads back realized amounts.
type Client struct {
	baseURL string
	http    *http.Client
}

type swapRequest struct {
	ReferenceID     string          `json:"reference_id"`
	TokenAddress    string          `json:"token_address"`
	Direction       string          `json:"direction"`
	Amount          decimal.Decimal `json:"amount,omitempty"`
	Percent         decimal.Decimal `json:"percent,omitempty"`
	SlippageBps     int             `json:"slippage_bps"`
	SigningMaterial string          `json:"signing_material"`
}

type swapResponse struct {
	CounterpartAmount decimal.Decimal `json:"counterpart_amount"`
	TransactionID     string          `json:"transaction_id"`
	Error             string          `json:"error,omitempty"`
}

func (c *Client) Swap(ctx context.Context, req exchange.SwapRequest) (*exchange.SwapResult, error) {
	body := swapRequest{
		ReferenceID:     uuid.NewString(),
		TokenAddress:    req.TokenAddress,
		Direction:       string(req.Direction),
		Amount:          req.Amount,
		Percent:         req.Percent,
		SlippageBps:     req.SlippageBps,
		SigningMaterial: base64.StdEncoding.EncodeToString(req.SigningMaterial),
	}

	var resp swapResponse
	if err := c.post(ctx, "/v1/swap", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("router rejected swap: %s", resp.Error)
	}

	return &exchange.SwapResult{
		CounterpartAmount: resp.CounterpartAmount,
		TransactionID:     resp.TransactionID,
	}, nil
}

type transferRequest struct {
	ReferenceID string          `json:"reference_id"`
	ToAddress   string          `json:"to_address"`
	Amount      decimal.Decimal `json:"amount"`
}

type transferResponse struct {
	TransactionID string `json:"transaction_id"`
	Error         string `json:"error,omitempty"`
}

func (c *Client) Send(ctx context.Context, toAddress string, amount decimal.Decimal) (string, error) {
	body := transferRequest{
		ReferenceID: uuid.NewString(),
		ToAddress:   toAddress,
		Amount:      amount,
	}

	var resp transferResponse
	if err := c.post(ctx, "/v1/transfer", body, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("router rejected transfer: %s", resp.Error)
	}

	return resp.TransactionID, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("router returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
