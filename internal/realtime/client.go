// Package realtime subscribes to the backend's websocket event stream and
// dispatches {event, payload} frames to registered handlers. The client is
// a system.Service: the application manager owns connect, reconnect and
// teardown.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/dinehall/boardlink/internal/metrics"
	"github.com/dinehall/boardlink/internal/system"
	"github.com/dinehall/boardlink/pkg/logger"
)

var _ system.Service = (*Client)(nil)

const (
	handshakeTimeout = 10 * time.Second
	heartbeatEvery   = 30 * time.Second
	writeTimeout     = 5 * time.Second

	reconnectInitial = time.Second
	reconnectMax     = time.Minute
)

// Handler processes one event payload.
type Handler func(payload gjson.Result)

type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Client is a reconnecting websocket subscriber.
type Client struct {
	url     string
	log     *logger.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	handlers map[string][]Handler
	conn     *websocket.Conn
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
}

// New creates a client for the given ws:// or wss:// URL.
func New(url string, m *metrics.Metrics, log *logger.Logger) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("realtime: URL is required")
	}
	if m == nil {
		m = metrics.New()
	}
	if log == nil {
		log = logger.NewDefault("realtime")
	}
	return &Client{
		url:      url,
		log:      log,
		metrics:  m,
		handlers: make(map[string][]Handler),
	}, nil
}

// On registers a handler for the named event. Registration is expected
// before Start; handlers run on the read loop goroutine.
func (c *Client) On(event string, fn Handler) {
	c.mu.Lock()
	c.handlers[event] = append(c.handlers[event], fn)
	c.mu.Unlock()
}

func (c *Client) Name() string { return "realtime" }

// Start connects and keeps the subscription alive, reconnecting with
// exponential backoff on any failure.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(runCtx)
	}()

	c.log.WithField("url", c.url).Info("realtime feed started")
	return nil
}

func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	conn := c.conn
	c.running = false
	c.cancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.log.Info("realtime feed stopped")
	return nil
}

func (c *Client) run(ctx context.Context) {
	backoff := reconnectInitial
	for {
		if ctx.Err() != nil {
			return
		}

		err := c.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.log.WithError(err).Warn("realtime session ended")
		}

		c.metrics.WSReconnects.Inc()
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectMax {
			backoff = reconnectMax
		}
	}
}

// session dials once and reads frames until the connection drops.
func (c *Client) session(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("realtime: dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	c.log.Info("realtime feed connected")

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go c.heartbeat(heartbeatCtx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("realtime: read: %w", err)
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.log.WithError(err).Debug("discarding malformed realtime frame")
			continue
		}
		if f.Event == "" {
			continue
		}
		c.dispatch(f.Event, gjson.ParseBytes(f.Payload))
	}
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *Client) dispatch(event string, payload gjson.Result) {
	c.mu.Lock()
	handlers := append([]Handler(nil), c.handlers[event]...)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(payload)
	}
}
