package kraken

// connector.go: Kraken ticker websocket with reconnect.
//
// One goroutine owns the connection: dial → subscribe → read until the
// socket dies, then sleep with exponential backoff and start over. Stop()
// closes the live socket so a blocked ReadMessage returns immediately.

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alejandrodnm/latencybot/internal/domain"
	"github.com/alejandrodnm/latencybot/internal/obs"
)

const defaultWSURL = "wss://ws.kraken.com"

// Config controls the connector.
type Config struct {
	URL                  string
	Pair                 string
	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration
	PingInterval         time.Duration // 0 disables keepalive pings
	PongTimeout          time.Duration
	HandshakeTimeout     time.Duration
	BufferSize           int
}

// DefaultConfig returns production defaults for pair.
func DefaultConfig(pair string) Config {
	return Config{
		URL:                  defaultWSURL,
		Pair:                 pair,
		ReconnectInterval:    1 * time.Second,
		MaxReconnectInterval: 8 * time.Second,
		PingInterval:         20 * time.Second,
		PongTimeout:          10 * time.Second,
		HandshakeTimeout:     10 * time.Second,
		BufferSize:           256,
	}
}

// Connector streams normalized ticks for one Kraken pair.
type Connector struct {
	cfg     Config
	pair    string
	dialer  *websocket.Dialer
	metrics *obs.Metrics
	now     func() time.Time

	mu   sync.Mutex
	conn *websocket.Conn
	live chan domain.PriceTick // non-nil while a loop is running

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewConnector creates a Connector. metrics may be nil.
func NewConnector(cfg Config, metrics *obs.Metrics) *Connector {
	def := DefaultConfig(cfg.Pair)
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = def.ReconnectInterval
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = def.MaxReconnectInterval
	}
	if cfg.PingInterval > 0 && cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.BufferSize < 0 {
		cfg.BufferSize = 0
	}

	return &Connector{
		cfg:     cfg,
		pair:    strings.ToUpper(cfg.Pair),
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		metrics: metrics,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Pair returns the upper-cased pair this connector subscribes to.
func (c *Connector) Pair() string {
	return c.pair
}

// Stream starts the connection loop and returns the tick channel. The
// channel is closed once Stop is called or ctx is cancelled. While a loop is
// running Stream returns its channel instead of dialing a second socket.
// Calling Stream again after a previous stream ended starts a fresh loop;
// after Stop the returned channel is already closed.
func (c *Connector) Stream(ctx context.Context) <-chan domain.PriceTick {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live != nil {
		return c.live
	}
	out := make(chan domain.PriceTick, c.cfg.BufferSize)
	if c.stopped() {
		close(out)
		return out
	}
	c.live = out
	go c.run(ctx, out)
	return out
}

// Stop ends the stream: the in-flight read is unblocked and no reconnect
// is attempted. Idempotent.
func (c *Connector) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		slog.Info("kraken: stopping stream", "pair", c.pair)
	})
	c.closeConn()
}

func (c *Connector) stopped() bool {
	select {
	case <-c.stopCh:
		return true
	default:
		return false
	}
}

func (c *Connector) run(ctx context.Context, out chan domain.PriceTick) {
	defer func() {
		c.mu.Lock()
		c.live = nil
		c.mu.Unlock()
		close(out)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	backoff := NewBackoff(c.cfg.ReconnectInterval, c.cfg.MaxReconnectInterval)
	attempt := 0

	for ctx.Err() == nil {
		err := c.session(ctx, out, backoff)
		if ctx.Err() != nil {
			return
		}

		attempt++
		wait := backoff.Next()
		c.metrics.IncReconnect()
		slog.Warn("kraken: stream interrupted, reconnecting",
			"pair", c.pair,
			"attempt", attempt,
			"backoff", wait,
			"err", err,
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session runs one connection and returns why it ended. A close frame from
// the server is reported as an error too; only cancellation returns nil.
func (c *Connector) session(ctx context.Context, out chan<- domain.PriceTick, backoff *Backoff) error {
	slog.Debug("kraken: connecting", "url", c.cfg.URL, "pair", c.pair)

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	c.setConn(conn)
	defer c.closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := conn.WriteMessage(websocket.TextMessage, c.subscribePayload()); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	backoff.Reset()
	slog.Info("kraken: subscribed", "pair", c.pair)

	if c.cfg.PingInterval > 0 {
		readWindow := c.cfg.PingInterval + c.cfg.PongTimeout
		conn.SetReadDeadline(time.Now().Add(readWindow))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(readWindow))
		})
		go c.pingLoop(conn, done)
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		if c.cfg.PingInterval > 0 {
			conn.SetReadDeadline(time.Now().Add(c.cfg.PingInterval + c.cfg.PongTimeout))
		}

		tick, ok, err := ParseMessage(raw, c.pair, c.now())
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		if !ok {
			continue
		}

		select {
		case out <- tick:
		case <-ctx.Done():
			return nil
		}
	}
}

// pingLoop sends keepalive pings; a missing pong lets the read deadline
// expire and the session reconnects.
func (c *Connector) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.PongTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Debug("kraken: ping failed", "pair", c.pair, "err", err)
				conn.Close()
				return
			}
		}
	}
}

type subscribeRequest struct {
	Event        string           `json:"event"`
	Pair         []string         `json:"pair"`
	Subscription subscriptionName `json:"subscription"`
}

type subscriptionName struct {
	Name string `json:"name"`
}

func (c *Connector) subscribePayload() []byte {
	b, _ := json.Marshal(subscribeRequest{
		Event:        "subscribe",
		Pair:         []string{c.pair},
		Subscription: subscriptionName{Name: tickerChannel},
	})
	return b
}

func (c *Connector) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Connector) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
