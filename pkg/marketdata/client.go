package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tradepulse/pkg/config"
	"tradepulse/pkg/exchange"
	"tradepulse/pkg/rediskey"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("marketdata",
	fx.Provide(New),
)

type Params struct {
	fx.In
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func New(p Params) exchange.MarketData {
	ttl := p.Config.MarketData.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	timeout := p.Config.MarketData.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: p.Config.MarketData.BaseURL,
		http:    &http.Client{Timeout: timeout},
		redis:   p.Redis,
		ttl:     ttl,
	}
}

// Client resolves token market caps from the aggregator HTTP source with a
// short-TTL redis read-through cache in front of it.
type Client struct {
	baseURL string
	http    *http.Client
	redis   *redis.Client
	ttl     time.Duration
}

type marketCapResponse struct {
	MarketCap decimal.Decimal `json:"market_cap"`
}

func (c *Client) GetMarketCap(ctx context.Context, tokenAddress string) (decimal.Decimal, error) {
	key := rediskey.BuildMarketCapKey(tokenAddress)

	if c.redis != nil {
		cached, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			if cap, derr := decimal.NewFromString(cached); derr == nil {
				return cap, nil
			}
		} else if err != redis.Nil {
			zap.L().Debug("marketcap cache read failed", zap.String("token", tokenAddress), zap.Error(err))
		}
	}

	url := fmt.Sprintf("%s/v1/tokens/%s/marketcap", c.baseURL, tokenAddress)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", exchange.ErrUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", exchange.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: status %d", exchange.ErrUnavailable, resp.StatusCode)
	}

	var body marketCapResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", exchange.ErrUnavailable, err)
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, key, body.MarketCap.String(), c.ttl).Err(); err != nil {
			zap.L().Debug("marketcap cache write failed", zap.String("token", tokenAddress), zap.Error(err))
		}
	}

	return body.MarketCap, nil
}
