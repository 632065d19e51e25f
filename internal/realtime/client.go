package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
)

type RefreshReason string

const (
	RefreshConnect    RefreshReason = "connect"
	RefreshInvalidate RefreshReason = "invalidate"
)

// RefreshFunc re-reads authoritative state, typically by calling the slots
// endpoint again. Calls are serialized.
type RefreshFunc func(ctx context.Context, reason RefreshReason)

type ClientConfig struct {
	URL            string
	Header         http.Header
	Debounce       time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Dialer         *websocket.Dialer
	Logger         *slog.Logger
}

// Client keeps a websocket subscription alive and turns invalidation frames
// into debounced refreshes. Missed events during a disconnect are covered by
// the refresh that follows every successful (re)connect.
type Client struct {
	cfg     ClientConfig
	refresh RefreshFunc
	mu      sync.Mutex
}

func NewClient(cfg ClientConfig, refresh RefreshFunc) *Client {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{cfg: cfg, refresh: refresh}
}

// Run connects and reconnects with exponential backoff until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = c.cfg.MaxBackoff

	for {
		err := c.session(ctx, bo)
		if ctx.Err() != nil {
			return nil
		}

		wait := bo.NextBackOff()
		c.cfg.Logger.Warn("realtime connection lost", "err", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (c *Client) session(ctx context.Context, bo *backoff.ExponentialBackOff) error {
	conn, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	bo.Reset()
	c.doRefresh(ctx, RefreshConnect)

	deb := NewDebouncer(c.cfg.Debounce, func() { c.doRefresh(ctx, RefreshInvalidate) })
	defer deb.Stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.cfg.Logger.Debug("ignore malformed realtime frame", "err", err)
			continue
		}
		if f.Type == FrameInvalidate {
			deb.Trigger()
		}
	}
}

func (c *Client) doRefresh(ctx context.Context, reason RefreshReason) {
	if ctx.Err() != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refresh(ctx, reason)
}
