package marketcap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const DefaultTradeWSSURL = "wss://pumpportal.fun/api/data"

type tradeSubscribeRequest struct {
	Method string   `json:"method"`
	Keys   []string `json:"keys,omitempty"`
}

// Tick is a single valuation observation pushed by the trade feed.
type Tick struct {
	Token        string          `json:"mint"`
	USDMarketCap decimal.Decimal `json:"usd_market_cap"`
	MarketCapSol decimal.Decimal `json:"marketCapSol"`
	TxType       string          `json:"txType"`
}

// MarketCap picks the USD cap when present, otherwise the SOL-denominated one.
func (t Tick) MarketCap() (decimal.Decimal, bool) {
	if t.USDMarketCap.IsPositive() {
		return t.USDMarketCap, true
	}
	if t.MarketCapSol.IsPositive() {
		return t.MarketCapSol, true
	}
	return decimal.Zero, false
}

type WSClient struct {
	url  string
	conn *websocket.Conn
}

func NewWSClient(url string) *WSClient {
	if strings.TrimSpace(url) == "" {
		url = DefaultTradeWSSURL
	}
	return &WSClient{url: url}
}

func (c *WSClient) Connect(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("ws client is nil")
	}
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	conn.SetReadLimit(1 << 20) // 1MB
	c.conn = conn
	return nil
}

func (c *WSClient) Close(status websocket.StatusCode, reason string) error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close(status, reason)
}

func (c *WSClient) SubscribeTokenTrades(ctx context.Context, tokens []string) error {
	if c == nil || c.conn == nil {
		return fmt.Errorf("ws not connected")
	}
	req := tradeSubscribeRequest{
		Method: "subscribeTokenTrade",
		Keys:   tokens,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *WSClient) Read(ctx context.Context) (Tick, []byte, error) {
	if c == nil || c.conn == nil {
		return Tick{}, nil, fmt.Errorf("ws not connected")
	}
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		return Tick{}, nil, err
	}
	var tick Tick
	_ = json.Unmarshal(data, &tick)
	return tick, data, nil
}

type TickStreamOptions struct {
	URL               string
	Tokens            []string
	HeartbeatInterval time.Duration
	PingTimeout       time.Duration
	BackoffMin        time.Duration
	BackoffMax        time.Duration
	Logger            *zap.Logger
}

// TickStream keeps a trade-feed subscription alive, reconnecting with
// exponential backoff and jitter when the upstream drops the connection.
type TickStream struct {
	opts      TickStreamOptions
	seenFirst bool
}

func NewTickStream(opts TickStreamOptions) *TickStream {
	if opts.URL == "" {
		opts.URL = DefaultTradeWSSURL
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = 20 * time.Second
	}
	if opts.PingTimeout == 0 {
		opts.PingTimeout = 5 * time.Second
	}
	if opts.BackoffMin == 0 {
		opts.BackoffMin = 1 * time.Second
	}
	if opts.BackoffMax == 0 {
		opts.BackoffMax = 30 * time.Second
	}
	return &TickStream{opts: opts}
}

func (s *TickStream) Run(ctx context.Context, onTick func(Tick, []byte)) error {
	if s == nil {
		return fmt.Errorf("stream is nil")
	}
	if len(s.opts.Tokens) == 0 {
		return fmt.Errorf("no tokens to subscribe")
	}
	backoff := s.opts.BackoffMin
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		client := NewWSClient(s.opts.URL)
		if err := client.Connect(ctx); err != nil {
			if s.opts.Logger != nil {
				s.opts.Logger.Warn("trade ws connect failed", zap.Error(err))
			}
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, s.opts.BackoffMax)
			continue
		}
		if s.opts.Logger != nil {
			s.opts.Logger.Info("trade ws connected")
		}
		if err := client.SubscribeTokenTrades(ctx, s.opts.Tokens); err != nil {
			if s.opts.Logger != nil {
				s.opts.Logger.Warn("trade ws subscribe failed", zap.Error(err))
			}
			_ = client.Close(websocket.StatusInternalError, "subscribe failed")
			if err := sleepWithJitter(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, s.opts.BackoffMax)
			continue
		}
		if s.opts.Logger != nil {
			s.opts.Logger.Info("trade ws subscribed", zap.Int("tokens", len(s.opts.Tokens)))
		}
		backoff = s.opts.BackoffMin

		err := s.consume(ctx, client, onTick)
		_ = client.Close(websocket.StatusNormalClosure, "reconnect")
		if err == nil || errors.Is(err, context.Canceled) {
			return err
		}
		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, s.opts.BackoffMax)
	}
}

func (s *TickStream) consume(ctx context.Context, client *WSClient, onTick func(Tick, []byte)) error {
	if client == nil {
		return fmt.Errorf("ws client is nil")
	}
	heartbeatErr := make(chan error, 1)
	heartbeatCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(s.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-heartbeatCtx.Done():
				heartbeatErr <- heartbeatCtx.Err()
				return
			case <-ticker.C:
				pingCtx, cancelPing := context.WithTimeout(heartbeatCtx, s.opts.PingTimeout)
				err := client.conn.Ping(pingCtx)
				cancelPing()
				if err != nil {
					heartbeatErr <- err
					return
				}
			}
		}
	}()

	for {
		select {
		case err := <-heartbeatErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		default:
		}
		tick, raw, err := client.Read(ctx)
		if err != nil {
			if s.opts.Logger != nil && !errors.Is(err, context.Canceled) {
				s.opts.Logger.Warn("trade ws read failed", zap.Error(err))
			}
			return err
		}
		if s.opts.Logger != nil && !s.seenFirst {
			s.seenFirst = true
			s.opts.Logger.Info("trade ws first message", zap.String("tx_type", tick.TxType))
		}
		if onTick != nil {
			onTick(tick, raw)
		}
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	jitter := time.Duration(rand.Int63n(int64(base / 2)))
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
