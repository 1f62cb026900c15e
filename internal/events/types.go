package events

// Event type constants for kelindar/event.
const (
	TypeCaptureSuccess uint32 = iota + 1
	TypeCaptureError
	TypeStreamStarted
	TypeStreamStopped
	TypeDetection
	TypeDetectionStarted
	TypeDetectionStopped
	TypeDeviceDiscovery
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// CaptureSuccessEvent represents a successful still capture.
type CaptureSuccessEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Bytes      int    `json:"bytes" example:"48213" doc:"Size of the captured JPEG"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Capture timestamp"`
}

// Type returns the event type identifier for CaptureSuccessEvent.
func (e CaptureSuccessEvent) Type() uint32 { return TypeCaptureSuccess }

// CaptureErrorEvent represents a failed still capture.
type CaptureErrorEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Error      string `json:"error" example:"device busy" doc:"Detailed error description"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Error timestamp"`
}

// Type returns the event type identifier for CaptureErrorEvent.
func (e CaptureErrorEvent) Type() uint32 { return TypeCaptureError }

// StreamStartedEvent is published when an MJPEG client takes the camera.
type StreamStartedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	RemoteAddr string `json:"remote_addr" example:"192.168.1.50:41234" doc:"Client address"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStartedEvent.
func (e StreamStartedEvent) Type() uint32 { return TypeStreamStarted }

// StreamStoppedEvent is published when an MJPEG client releases the camera.
type StreamStoppedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	RemoteAddr string `json:"remote_addr" example:"192.168.1.50:41234" doc:"Client address"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStoppedEvent.
func (e StreamStoppedEvent) Type() uint32 { return TypeStreamStopped }

// FaceBox is one detected face within a frame.
type FaceBox struct {
	X     int     `json:"x" example:"120" doc:"Left edge in pixels"`
	Y     int     `json:"y" example:"80" doc:"Top edge in pixels"`
	W     int     `json:"w" example:"96" doc:"Box width in pixels"`
	H     int     `json:"h" example:"96" doc:"Box height in pixels"`
	Score float64 `json:"score" example:"0.97" doc:"Detector confidence"`
}

// DetectionEvent carries the detector's result for one frame.
type DetectionEvent struct {
	Ts     int64     `json:"ts" example:"1738000000123" doc:"Frame timestamp, milliseconds since epoch"`
	Width  uint32    `json:"width" example:"800" doc:"Frame width in pixels"`
	Height uint32    `json:"height" example:"640" doc:"Frame height in pixels"`
	Faces  []FaceBox `json:"faces" doc:"Detected faces, empty when none"`
}

// Type returns the event type identifier for DetectionEvent.
func (e DetectionEvent) Type() uint32 { return TypeDetection }

// DetectionStartedEvent is published when a detection session begins.
type DetectionStartedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DetectionStartedEvent.
func (e DetectionStartedEvent) Type() uint32 { return TypeDetectionStarted }

// DetectionStoppedEvent is published after a detection session has torn down.
type DetectionStoppedEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Frames     uint64 `json:"frames" example:"1042" doc:"Frames processed during the session"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DetectionStoppedEvent.
func (e DetectionStoppedEvent) Type() uint32 { return TypeDetectionStopped }

// DeviceDiscoveryEvent represents device hotplug events.
type DeviceDiscoveryEvent struct {
	DevicePath string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	DeviceName string `json:"device_name" example:"ov5647" doc:"Driver-reported device name"`
	Action     string `json:"action" example:"added" doc:"Action type: added, removed, changed"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DeviceDiscoveryEvent.
func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
