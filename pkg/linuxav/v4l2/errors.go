package v4l2

import "errors"

// Sentinel errors for the capture pipeline. Callers match them with
// errors.Is; the wrapped error carries the underlying errno.
var (
	// ErrAllocation means the driver granted zero buffers on VIDIOC_REQBUFS.
	ErrAllocation = errors.New("v4l2: buffer allocation failed")

	// ErrMap means mapping a buffer's memory into the process failed.
	ErrMap = errors.New("v4l2: buffer mmap failed")

	// ErrDevice covers driver rejections of queue operations.
	ErrDevice = errors.New("v4l2: device error")

	// ErrInterrupted is returned by Dequeue when Interrupt was called.
	// It signals a deliberate stop, not a failure.
	ErrInterrupted = errors.New("v4l2: dequeue interrupted")

	// ErrQueueState is returned when a queue operation is attempted out of
	// order (for example Dequeue before StreamOn). This is a programming
	// error and fails fast instead of blocking.
	ErrQueueState = errors.New("v4l2: invalid queue state")

	// ErrNotCapture is returned by Open for devices without the
	// video-capture capability.
	ErrNotCapture = errors.New("v4l2: not a video capture device")
)
