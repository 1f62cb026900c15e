package nats

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/camnode/internal/events"
)

// Client publishes camera results over NATS and receives detection
// control commands. Gracefully degrades when NATS is unavailable: every
// publish becomes a no-op until the connection comes back.
type Client struct {
	url       string
	deviceID  string
	conn      *nats.Conn
	sub       *nats.Subscription
	logger    *slog.Logger
	mu        sync.RWMutex
	onControl func(ControlMessage)
	connected bool
}

// NewClient creates a NATS client for one camera device.
func NewClient(url, devicePath string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	deviceID := DeviceID(devicePath)

	return &Client{
		url:      url,
		deviceID: deviceID,
		logger:   logger.With("component", "nats-client", "device_id", deviceID),
	}
}

// SetURL replaces the server URL. Takes effect on the next Connect; used
// when the embedded server's address is only known after it starts.
func (c *Client) SetURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.url = url
}

// Connect establishes a connection to the NATS server.
// Returns the error but leaves the client usable (graceful degradation).
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	opts := []nats.Option{
		nats.Name("camnode-" + c.deviceID),
		nats.ReconnectWait(2 * time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			} else {
				c.logger.Debug("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.mu.Lock()
			c.connected = true
			c.mu.Unlock()
			c.logger.Info("NATS reconnected")
			// Resubscribe to control commands after reconnect
			c.subscribeControlLocked()
		}),
		nats.ConnectHandler(func(_ *nats.Conn) {
			c.logger.Debug("NATS connected")
		}),
	}

	conn, err := nats.Connect(c.url, opts...)
	if err != nil {
		c.logger.Warn("Failed to connect to NATS, running in offline mode", "error", err)
		return err
	}

	c.conn = conn
	c.connected = true
	c.logger.Info("Connected to NATS", "url", c.url)

	// Subscribe to control commands
	c.subscribeControlLocked()

	return nil
}

// subscribeControlLocked subscribes to control commands (must hold lock).
func (c *Client) subscribeControlLocked() {
	if c.conn == nil || c.onControl == nil {
		return
	}

	subject := SubjectControlDetection(c.deviceID)
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		ctrl, err := UnmarshalControl(msg.Data)
		if err != nil {
			c.logger.Warn("Failed to unmarshal control message", "error", err)
			return
		}

		c.logger.Info("Received control command", "action", ctrl.Action, "reason", ctrl.Reason)

		c.mu.RLock()
		handler := c.onControl
		c.mu.RUnlock()
		if handler != nil {
			handler(ctrl)
		}
	})
	if err != nil {
		c.logger.Warn("Failed to subscribe to control commands", "error", err)
		return
	}

	// Unsubscribe from old subscription if exists
	if c.sub != nil {
		_ = c.sub.Unsubscribe()
	}
	c.sub = sub
}

// OnControl sets the callback for detection control commands.
func (c *Client) OnControl(fn func(ControlMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onControl = fn

	// Subscribe if already connected
	if c.conn != nil && c.connected {
		c.subscribeControlLocked()
	}
}

// PublishDetection publishes one frame's detection result to NATS.
// No-op if not connected (graceful degradation).
func (c *Client) PublishDetection(e events.DetectionEvent) {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if conn == nil || !connected {
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("Failed to marshal detection", "error", err)
		return
	}

	subject := SubjectDetections(c.deviceID)
	if err := conn.Publish(subject, data); err != nil {
		c.logger.Warn("Failed to publish detection", "error", err)
	}
}

// PublishCapture publishes a still-capture notice to NATS.
// No-op if not connected (graceful degradation).
func (c *Client) PublishCapture(m CaptureMessage) {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if conn == nil || !connected {
		return
	}

	data, err := m.Marshal()
	if err != nil {
		c.logger.Warn("Failed to marshal capture notice", "error", err)
		return
	}

	subject := SubjectCaptures(c.deviceID)
	if err := conn.Publish(subject, data); err != nil {
		c.logger.Warn("Failed to publish capture notice", "error", err)
	}
}

// IsConnected returns true if connected to NATS.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.conn != nil
}

// Close closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sub != nil {
		_ = c.sub.Unsubscribe()
		c.sub = nil
	}

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	c.connected = false
	c.logger.Debug("NATS client closed")
}
