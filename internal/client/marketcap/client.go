package marketcap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://frontend-api.pump.fun"

// Client fetches token valuations from the pump.fun frontend API.
type Client struct {
	host       string
	httpClient *http.Client
}

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body)
}

func NewClient(httpClient *http.Client, host string) *Client {
	if host == "" {
		host = DefaultBaseURL
	}
	host = strings.TrimRight(host, "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		host:       host,
		httpClient: httpClient,
	}
}

func (c *Client) doRequest(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

// Coin is the subset of the upstream coin payload we care about. The API has
// shipped the market cap under several names over time, so all of them are
// mapped and resolved in MarketCap.
type Coin struct {
	USDMarketCap decimal.Decimal `json:"usd_market_cap"`
	MarketCapSnk decimal.Decimal `json:"market_cap"`
	MarketCapCml decimal.Decimal `json:"marketCap"`
	Price        decimal.Decimal `json:"price"`
	TotalSupply  decimal.Decimal `json:"total_supply"`
}

// MarketCap resolves the first usable valuation field, falling back to
// price * total_supply when no precomputed cap is present.
func (co Coin) MarketCap() (decimal.Decimal, bool) {
	for _, v := range []decimal.Decimal{co.USDMarketCap, co.MarketCapSnk, co.MarketCapCml} {
		if v.IsPositive() {
			return v, true
		}
	}
	if co.Price.IsPositive() && co.TotalSupply.IsPositive() {
		return co.Price.Mul(co.TotalSupply), true
	}
	return decimal.Zero, false
}

func (c *Client) GetCoin(ctx context.Context, tokenAddress string) (*Coin, error) {
	if tokenAddress == "" {
		return nil, fmt.Errorf("token address is required")
	}
	body, err := c.doRequest(ctx, "/coins/"+tokenAddress)
	if err != nil {
		return nil, err
	}
	var coin Coin
	if err := json.Unmarshal(body, &coin); err != nil {
		return nil, fmt.Errorf("failed to parse coin payload: %w", err)
	}
	return &coin, nil
}

// GetMarketCap fetches the token and resolves its USD market cap.
func (c *Client) GetMarketCap(ctx context.Context, tokenAddress string) (decimal.Decimal, error) {
	coin, err := c.GetCoin(ctx, tokenAddress)
	if err != nil {
		return decimal.Zero, err
	}
	mc, ok := coin.MarketCap()
	if !ok {
		return decimal.Zero, fmt.Errorf("coin %s has no usable market cap fields", tokenAddress)
	}
	return mc, nil
}
