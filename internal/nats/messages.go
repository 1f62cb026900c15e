package nats

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smazurov/camnode/internal/events"
)

// Subject prefixes for NATS topics.
const (
	SubjectCamerasPrefix = "camnode.cameras"
	SubjectControlPrefix = "camnode.control"
)

// DeviceID derives a subject-safe identifier from a device path.
// "/dev/video0" becomes "video0".
func DeviceID(devicePath string) string {
	id := strings.TrimPrefix(devicePath, "/dev/")
	id = strings.ReplaceAll(id, "/", "-")
	id = strings.ReplaceAll(id, ".", "-")
	if id == "" {
		id = "camera"
	}
	return id
}

// SubjectDeviceID extracts the device identifier from a camera subject
// like "camnode.cameras.video0.detections". Empty when the subject does
// not match that shape.
func SubjectDeviceID(subject string) string {
	parts := strings.Split(subject, ".")
	if len(parts) != 4 || parts[0]+"."+parts[1] != SubjectCamerasPrefix {
		return ""
	}
	return parts[2]
}

// SubjectDetections returns the full NATS subject for detection results.
func SubjectDetections(deviceID string) string {
	return fmt.Sprintf("%s.%s.detections", SubjectCamerasPrefix, deviceID)
}

// SubjectCaptures returns the full NATS subject for still-capture notices.
func SubjectCaptures(deviceID string) string {
	return fmt.Sprintf("%s.%s.captures", SubjectCamerasPrefix, deviceID)
}

// SubjectControlDetection returns the NATS subject for detection control
// commands.
func SubjectControlDetection(deviceID string) string {
	return fmt.Sprintf("%s.%s.detection", SubjectControlPrefix, deviceID)
}

// CaptureMessage announces a completed still capture over NATS.
type CaptureMessage struct {
	Device    string `json:"device"`
	Bytes     int    `json:"bytes"`
	Timestamp string `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m CaptureMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ControlMessage represents a control command sent to a camera node.
type ControlMessage struct {
	Action    string `json:"action"` // start, stop
	Device    string `json:"device"`
	Timestamp string `json:"timestamp"`
	Reason    string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalCapture deserializes a CaptureMessage from JSON.
func UnmarshalCapture(data []byte) (CaptureMessage, error) {
	var m CaptureMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalControl deserializes a ControlMessage from JSON.
func UnmarshalControl(data []byte) (ControlMessage, error) {
	var m ControlMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalDetection deserializes a detection result from JSON.
func UnmarshalDetection(data []byte) (events.DetectionEvent, error) {
	var e events.DetectionEvent
	err := json.Unmarshal(data, &e)
	return e, err
}
