package nats

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	natsio "github.com/nats-io/nats.go"

	"github.com/smazurov/camnode/internal/events"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestDeviceID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/dev/video0", "video0"},
		{"/dev/v4l/by-id/usb-cam.0", "v4l-by-id-usb-cam-0"},
		{"", "camera"},
	}
	for _, tt := range tests {
		if got := DeviceID(tt.path); got != tt.want {
			t.Errorf("DeviceID(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(ServerOptions{
		Port:   14222, // Use non-default port for testing
		Name:   "test-server",
		Logger: quietLogger(),
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	if !server.IsRunning() {
		t.Error("Server should be running after Start()")
	}

	if server.ClientURL() == "" {
		t.Error("ClientURL should not be empty")
	}

	server.Stop()

	if server.IsRunning() {
		t.Error("Server should not be running after Stop()")
	}
}

func TestClientGracefulDegradation(t *testing.T) {
	// Create client with non-existent server
	client := NewClient("nats://localhost:59999", "/dev/video0", quietLogger())

	// Connect should fail but not panic
	if err := client.Connect(); err == nil {
		t.Error("Connect should fail with non-existent server")
	}

	// These should be no-ops without panicking
	client.PublishDetection(events.DetectionEvent{Ts: 1})
	client.PublishCapture(CaptureMessage{Device: "/dev/video0"})

	if client.IsConnected() {
		t.Error("Client should not be connected")
	}

	client.Close()
}

func TestPublishDetectionRoundtrip(t *testing.T) {
	server := NewServer(ServerOptions{Port: 14223, Logger: quietLogger()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	client := NewClient(server.ClientURL(), "/dev/video0", quietLogger())
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	// Raw subscriber to verify the wire format
	conn, err := natsio.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	defer conn.Close()

	received := make(chan []byte, 1)
	sub, err := conn.Subscribe(SubjectDetections("video0"), func(msg *natsio.Msg) {
		received <- msg.Data
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Unsubscribe()
	conn.Flush()

	client.PublishDetection(events.DetectionEvent{
		Ts:     1738000000123,
		Width:  800,
		Height: 640,
		Faces:  []events.FaceBox{{X: 120, Y: 80, W: 96, H: 96, Score: 0.97}},
	})

	select {
	case data := <-received:
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("payload is not JSON: %v", err)
		}
		for _, key := range []string{"ts", "width", "height", "faces"} {
			if _, ok := decoded[key]; !ok {
				t.Errorf("payload missing %q: %s", key, data)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("detection not received")
	}
}

func TestControlDispatch(t *testing.T) {
	server := NewServer(ServerOptions{Port: 14224, Logger: quietLogger()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	client := NewClient(server.ClientURL(), "/dev/video0", quietLogger())
	commands := make(chan ControlMessage, 1)
	client.OnControl(func(m ControlMessage) {
		commands <- m
	})
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	conn, err := natsio.Connect(server.ClientURL())
	if err != nil {
		t.Fatalf("publisher connect: %v", err)
	}
	defer conn.Close()

	msg := ControlMessage{Action: "stop", Device: "/dev/video0", Reason: "test"}
	data, _ := msg.Marshal()
	if err := conn.Publish(SubjectControlDetection("video0"), data); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	conn.Flush()

	select {
	case got := <-commands:
		if got.Action != "stop" || got.Reason != "test" {
			t.Fatalf("received %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("control command not dispatched")
	}
}

func TestBridgeForwardsDetections(t *testing.T) {
	server := NewServer(ServerOptions{Port: 14225, Logger: quietLogger()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	bus := events.New()
	forwarded := make(chan events.DetectionEvent, 1)
	unsub := bus.Subscribe(func(e events.DetectionEvent) {
		forwarded <- e
	})
	defer unsub()

	// The bridge is bound to video0, so video2's publishes are foreign
	// and must be forwarded.
	bridge := NewBridge(server.ClientURL(), "/dev/video0", bus, quietLogger())
	if err := bridge.Start(); err != nil {
		t.Fatalf("bridge Start: %v", err)
	}
	defer bridge.Stop()

	client := NewClient(server.ClientURL(), "/dev/video2", quietLogger())
	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	client.PublishDetection(events.DetectionEvent{Ts: 42, Width: 320, Height: 240})

	select {
	case e := <-forwarded:
		if e.Ts != 42 || e.Width != 320 {
			t.Fatalf("forwarded %+v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("detection not forwarded to bus")
	}
}

func TestSubjectDeviceID(t *testing.T) {
	cases := []struct {
		subject string
		want    string
	}{
		{"camnode.cameras.video0.detections", "video0"},
		{"camnode.cameras.video2.captures", "video2"},
		{"camnode.control.video0.detection", ""},
		{"garbage", ""},
	}
	for _, tc := range cases {
		if got := SubjectDeviceID(tc.subject); got != tc.want {
			t.Errorf("SubjectDeviceID(%q) = %q, want %q", tc.subject, got, tc.want)
		}
	}
}
