// Package models holds the request and response bodies of the HTTP API.
package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"release-42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go toolchain version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Build platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Device models
type DeviceInfo struct {
	DevicePath string   `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	DeviceName string   `json:"device_name" example:"ov5647" doc:"Driver-reported device name"`
	Driver     string   `json:"driver" example:"esp-video" doc:"Kernel driver name"`
	BusInfo    string   `json:"bus_info,omitempty" example:"platform:esp-video" doc:"Bus information"`
	Formats    []string `json:"formats,omitempty" example:"[\"RGBP\",\"422P\"]" doc:"Supported pixel formats as FourCC strings"`
}

type DeviceListData struct {
	Devices []DeviceInfo `json:"devices" doc:"Discovered capture devices"`
	Count   int          `json:"count" example:"1" doc:"Number of devices"`
}

type DeviceListResponse struct {
	Body DeviceListData
}

// ActiveDeviceData describes the device this node serves and its
// negotiated capture format.
type ActiveDeviceData struct {
	DevicePath  string `json:"device_path" example:"/dev/video0" doc:"Path to the video device"`
	Width       uint32 `json:"width" example:"800" doc:"Negotiated frame width"`
	Height      uint32 `json:"height" example:"640" doc:"Negotiated frame height"`
	PixelFormat string `json:"pixel_format" example:"RGBP" doc:"Negotiated pixel format as FourCC"`
	Streaming   bool   `json:"streaming" example:"false" doc:"Whether a session currently owns the camera"`
}

type ActiveDeviceResponse struct {
	Body ActiveDeviceData
}

// Detection models
type DetectionStatusData struct {
	Running bool   `json:"running" example:"true" doc:"Whether a detection session is active"`
	Frames  uint64 `json:"frames" example:"1042" doc:"Frames processed by the current or last session"`
}

type DetectionStatusResponse struct {
	Body DetectionStatusData
}

type DetectionStartData struct {
	Status string `json:"status" example:"started" doc:"Session status after the request"`
}

type DetectionStartResponse struct {
	Body DetectionStartData
}

type DetectionStopData struct {
	Status string `json:"status" example:"stopped" doc:"Session status after the request"`
	Frames uint64 `json:"frames" example:"1042" doc:"Frames processed by the stopped session"`
}

type DetectionStopResponse struct {
	Body DetectionStopData
}
