//go:build linux

package v4l2

// Capability flags.
const (
	V4L2_CAP_VIDEO_CAPTURE = 0x00000001
	V4L2_CAP_STREAMING     = 0x04000000
	V4L2_CAP_DEVICE_CAPS   = 0x80000000
)

// Buffer types, memory modes, and fields.
const (
	V4L2_BUF_TYPE_VIDEO_CAPTURE = 1
	V4L2_MEMORY_MMAP            = 1
	V4L2_FIELD_NONE             = 1
)

// Buffer flags.
const (
	V4L2_BUF_FLAG_MAPPED = 0x00000001
	V4L2_BUF_FLAG_QUEUED = 0x00000002
	V4L2_BUF_FLAG_DONE   = 0x00000004
	V4L2_BUF_FLAG_ERROR  = 0x00000040
)

// Format flags.
const (
	V4L2_FMT_FLAG_EMULATED = 0x0002
)

// Frame size enumeration types.
const (
	V4L2_FRMSIZE_TYPE_DISCRETE   = 1
	V4L2_FRMSIZE_TYPE_CONTINUOUS = 2
	V4L2_FRMSIZE_TYPE_STEPWISE   = 3
)
