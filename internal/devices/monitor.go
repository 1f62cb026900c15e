//go:build linux

// Package devices watches for camera hotplug events and announces them
// on the event bus.
package devices

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/pkg/linuxav/hotplug"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// Monitor listens for video4linux hotplug events and publishes
// DeviceDiscoveryEvent for each add, remove or change.
type Monitor struct {
	bus    *events.Bus
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a hotplug monitor bound to the event bus.
func NewMonitor(bus *events.Bus) *Monitor {
	return &Monitor{
		bus:    bus,
		logger: logging.GetLogger("devices"),
	}
}

// Start begins monitoring in a background goroutine. Returns an error
// when the netlink socket cannot be opened.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return nil
	}

	nl, err := hotplug.NewMonitor()
	if err != nil {
		return err
	}
	nl.AddSubsystemFilter(hotplug.SubsystemVideo4Linux)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(ctx, nl)

	m.logger.Info("Device hotplug monitoring started")
	return nil
}

// Stop ends monitoring and waits for the background goroutine.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) run(ctx context.Context, nl *hotplug.Monitor) {
	defer close(m.done)
	defer nl.Close()

	ch := make(chan hotplug.Event, 16)
	go func() {
		if err := nl.Run(ctx, ch); err != nil && ctx.Err() == nil {
			m.logger.Warn("Hotplug monitor stopped", "error", err)
		}
	}()

	for ev := range ch {
		switch ev.Action {
		case hotplug.ActionAdd, hotplug.ActionRemove, hotplug.ActionChange:
		default:
			continue
		}
		if ev.DevPath == "" {
			continue
		}

		m.logger.Info("Device event", "action", ev.Action, "device", ev.DevPath)
		m.bus.Publish(events.DeviceDiscoveryEvent{
			DevicePath: ev.DevPath,
			DeviceName: m.deviceName(ev),
			Action:     ev.Action,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// deviceName queries the driver-reported card name for added devices.
// Removed devices can no longer be opened, so the kernel name is used.
func (m *Monitor) deviceName(ev hotplug.Event) string {
	if ev.Action == hotplug.ActionRemove {
		return ev.DevName
	}

	found, err := v4l2.FindDevices()
	if err != nil {
		return ev.DevName
	}
	for _, d := range found {
		if d.DevicePath == ev.DevPath {
			return d.DeviceName
		}
	}
	return ev.DevName
}
