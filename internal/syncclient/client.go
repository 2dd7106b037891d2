// Package syncclient keeps a local copy of the family board fresh by
// listening on the push channel and refetching everything on each signal.
package syncclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/dukerupert/famboard/internal/websocket"
)

// State is the connection state of the push channel.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Fetch reloads one resource.
type Fetch struct {
	Name string
	Fn   func(ctx context.Context) error
}

type Config struct {
	// URL of the push channel, e.g. ws://host:8080/dashboard/ws.
	URL    string
	Header http.Header

	Fetches      []Fetch
	FetchTimeout time.Duration

	MinBackoff time.Duration
	MaxBackoff time.Duration

	// OnState and OnRefresh are optional hooks, called synchronously.
	OnState   func(State)
	OnRefresh func(error)

	Logger *slog.Logger
}

type Client struct {
	cfg   Config
	state atomic.Int32
	log   *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{cfg: cfg, log: cfg.Logger.With("component", "syncclient")}
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.log.Debug("sync state", "state", s)
	if c.cfg.OnState != nil {
		c.cfg.OnState(s)
	}
}

func (c *Client) backoff() retry.Backoff {
	b := retry.NewExponential(c.cfg.MinBackoff)
	b = retry.WithJitterPercent(10, b)
	return retry.WithCappedDuration(c.cfg.MaxBackoff, b)
}

// Run connects, refetches on every refresh signal, and reconnects with
// capped exponential backoff whenever the channel drops. It returns nil when
// ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	defer c.setState(Disconnected)

	for {
		var conn *ws.Conn
		err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
			c.setState(Connecting)
			cn, _, err := ws.Dial(ctx, c.cfg.URL, &ws.DialOptions{HTTPHeader: c.cfg.Header})
			if err != nil {
				c.setState(Disconnected)
				c.log.Warn("sync connect failed", "error", err)
				return retry.RetryableError(err)
			}
			conn = cn
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("connect sync channel: %w", err)
		}

		c.setState(Connected)
		err = c.serve(ctx, conn)
		c.setState(Disconnected)
		if ctx.Err() != nil {
			return nil
		}
		c.log.Info("sync channel dropped", "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.MinBackoff):
		}
	}
}

// serve runs one connection. A refetch is queued on connect and after each
// signal; signals arriving during a refetch collapse into one more refetch.
func (c *Client) serve(ctx context.Context, conn *ws.Conn) error {
	defer conn.CloseNow()

	pending := make(chan struct{}, 1)
	pending <- struct{}{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			_, data, err := conn.Read(gctx)
			if err != nil {
				return err
			}
			var msg websocket.Message
			if err := json.Unmarshal(data, &msg); err != nil || msg.Type != websocket.TypeRefresh {
				continue
			}
			select {
			case pending <- struct{}{}:
			default:
			}
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-pending:
				err := c.Refetch(gctx)
				if err != nil && gctx.Err() == nil {
					c.log.Warn("refetch failed, retrying on next signal", "error", err)
				}
				if c.cfg.OnRefresh != nil {
					c.cfg.OnRefresh(err)
				}
			}
		}
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Refetch runs every configured fetch concurrently and waits for all of
// them, bounded by the fetch timeout.
func (c *Client) Refetch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, f := range c.cfg.Fetches {
		g.Go(func() error {
			if err := f.Fn(ctx); err != nil {
				return fmt.Errorf("fetch %s: %w", f.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}
