package nats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/smazurov/camnode/internal/events"
)

// Bridge subscribes to camera subjects on NATS and forwards messages to
// the local event bus. SSE clients of this node then see detections and
// captures published by any camnode process on the bus, not only the
// local one.
type Bridge struct {
	url      string
	localID  string
	eventBus *events.Bus
	conn     *nats.Conn
	subs     []*nats.Subscription
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewBridge creates a new NATS-to-EventBus bridge. Messages published by
// localDevice are skipped: the local pipeline already puts those on the
// bus directly.
func NewBridge(url, localDevice string, eventBus *events.Bus, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}

	return &Bridge{
		url:      url,
		localID:  DeviceID(localDevice),
		eventBus: eventBus,
		logger:   logger.With("component", "nats-bridge"),
	}
}

// SetURL replaces the server URL. Takes effect on the next Start.
func (b *Bridge) SetURL(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.url = url
}

// Start connects to NATS and subscribes to camera subjects.
func (b *Bridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := nats.Connect(b.url,
		nats.Name("camnode-bridge"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS bridge disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS bridge reconnected")
		}),
	)
	if err != nil {
		return err
	}

	b.conn = conn
	b.logger.Info("NATS bridge connected", "url", b.url)

	// Subscribe to all detection results using wildcard
	detectionsSub, err := conn.Subscribe(SubjectCamerasPrefix+".*.detections", b.handleDetection)
	if err != nil {
		conn.Close()
		return err
	}
	b.subs = append(b.subs, detectionsSub)

	// Subscribe to all capture notices using wildcard
	capturesSub, err := conn.Subscribe(SubjectCamerasPrefix+".*.captures", b.handleCapture)
	if err != nil {
		b.cleanup()
		return err
	}
	b.subs = append(b.subs, capturesSub)

	b.logger.Info("NATS bridge subscribed to camera subjects")
	return nil
}

// handleDetection processes incoming detection results.
func (b *Bridge) handleDetection(msg *nats.Msg) {
	if SubjectDeviceID(msg.Subject) == b.localID {
		return
	}

	e, err := UnmarshalDetection(msg.Data)
	if err != nil {
		b.logger.Warn("Failed to unmarshal detection", "error", err, "subject", msg.Subject)
		return
	}

	b.eventBus.Publish(e)
	b.logger.Debug("Published detection event", "subject", msg.Subject, "faces", len(e.Faces))
}

// handleCapture processes incoming capture notices.
func (b *Bridge) handleCapture(msg *nats.Msg) {
	if SubjectDeviceID(msg.Subject) == b.localID {
		return
	}

	m, err := UnmarshalCapture(msg.Data)
	if err != nil {
		b.logger.Warn("Failed to unmarshal capture notice", "error", err, "subject", msg.Subject)
		return
	}

	b.eventBus.Publish(events.CaptureSuccessEvent{
		DevicePath: m.Device,
		Bytes:      m.Bytes,
		Timestamp:  m.Timestamp,
	})
	b.logger.Debug("Published capture event", "device", m.Device)
}

// cleanup unsubscribes and closes connection.
func (b *Bridge) cleanup() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	b.subs = nil

	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// Stop closes the bridge connection.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cleanup()
	b.logger.Info("NATS bridge stopped")
}

// IsConnected returns true if the bridge is connected to NATS.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}
