package profiler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"CustodianSync/internal/domain/models"
	drepo "CustodianSync/internal/domain/repository"

	"github.com/gorilla/websocket"
)

// Client implements MetricStream against the performance profiler
// WebSocket feed.
type Client struct {
	token          string
	websocketURL   string
	profiles       []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	conn      *websocket.Conn
	connected bool
}

// New creates a profiler MetricStream.
func New(token, websocketURL string, profiles []string, reconnectDelay, pingInterval time.Duration) drepo.MetricStream {
	return &Client{
		token:          token,
		websocketURL:   websocketURL,
		profiles:       profiles,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("profiler connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	log.Printf("profiler: connected")
	return nil
}

// Subscribe subscribes to configured profile ids.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("profiler not connected")
	}
	for _, p := range c.profiles {
		msg := map[string]string{"type": "subscribe", "profile": p}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", p, err)
		}
		log.Printf("profiler: subscribed %s", p)
	}
	return nil
}

type wsSample struct {
	P string  `json:"p"`
	M string  `json:"m"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type wsMessage struct {
	Type string     `json:"type"`
	Data []wsSample `json:"data"`
}

// Read streams metric samples and errors.
func (c *Client) Read(ctx context.Context) (<-chan *models.MetricSample, <-chan error) {
	samples := make(chan *models.MetricSample, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(samples)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("profiler conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("profiler read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-sample frames
					continue
				}
				if m.Type != "sample" {
					continue
				}
				for _, d := range m.Data {
					sample := &models.MetricSample{
						ProfileID: d.P,
						Metric:    models.MetricType(d.M),
						Value:     d.V,
						Timestamp: time.UnixMilli(d.T),
					}
					select {
					case samples <- sample:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return samples, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
