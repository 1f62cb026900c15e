package v4l2

import "time"

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	Driver     string
	BusInfo    string
	Caps       uint32
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Format is the negotiated capture format of a device.
type Format struct {
	Width       uint32
	Height      uint32
	PixelFormat uint32
}

// Frame is the transient metadata for one filled buffer returned by Dequeue.
// The buffer at Index stays owned by software until it is handed back with
// Enqueue; only the first BytesUsed bytes of the mapping are valid.
type Frame struct {
	Index     uint32
	BytesUsed uint32
	Sequence  uint32
	Timestamp time.Time
}

// Common pixel format fourcc codes.
const (
	PixFmtRGB565  uint32 = 0x50424752 // 'RGBP' 16-bit RGB 5-6-5
	PixFmtRGB24   uint32 = 0x33424752 // 'RGB3' 24-bit RGB 8-8-8
	PixFmtYUV422P uint32 = 0x50323234 // '422P' planar YUV 4:2:2
	PixFmtGrey    uint32 = 0x59455247 // 'GREY' 8-bit greyscale
	PixFmtYUYV    uint32 = 0x56595559 // 'YUYV' packed YUV 4:2:2
	PixFmtMJPEG   uint32 = 0x47504A4D // 'MJPG'
	PixFmtJPEG    uint32 = 0x4745504A // 'JPEG'
	PixFmtNV12    uint32 = 0x3231564E // 'NV12'
)

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	b := make([]byte, 4)
	b[0] = byte(format & 0xFF)
	b[1] = byte((format >> 8) & 0xFF)
	b[2] = byte((format >> 16) & 0xFF)
	b[3] = byte((format >> 24) & 0xFF)
	return string(b)
}
