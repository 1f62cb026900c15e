//go:build linux

package v4l2

import (
	"errors"
	"syscall"
	"testing"
)

// TestErrnoComparison verifies that errors.Is works with syscall.Errno,
// which Dequeue relies on for its EAGAIN and EINTR handling.
func TestErrnoComparison(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{name: "EAGAIN matches EAGAIN", err: syscall.EAGAIN, target: syscall.EAGAIN, expected: true},
		{name: "EINTR matches EINTR", err: syscall.EINTR, target: syscall.EINTR, expected: true},
		{name: "EINVAL matches EINVAL", err: syscall.EINVAL, target: syscall.EINVAL, expected: true},
		{name: "ENODEV matches ENODEV", err: syscall.ENODEV, target: syscall.ENODEV, expected: true},
		{name: "EAGAIN does not match EINTR", err: syscall.EAGAIN, target: syscall.EINTR, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.expected {
				t.Errorf("errors.Is(%v, %v) = %v, want %v",
					tt.err, tt.target, got, tt.expected)
			}
		})
	}
}

func TestFormatFourCC(t *testing.T) {
	tests := []struct {
		name     string
		format   uint32
		expected string
	}{
		{name: "RGB565", format: PixFmtRGB565, expected: "RGBP"},
		{name: "RGB24", format: PixFmtRGB24, expected: "RGB3"},
		{name: "planar YUV422", format: PixFmtYUV422P, expected: "422P"},
		{name: "greyscale", format: PixFmtGrey, expected: "GREY"},
		{name: "YUYV", format: PixFmtYUYV, expected: "YUYV"},
		{name: "MJPEG", format: PixFmtMJPEG, expected: "MJPG"},
		{name: "null bytes", format: 0, expected: "\x00\x00\x00\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatFourCC(tt.format); got != tt.expected {
				t.Errorf("FormatFourCC(%#x) = %q, want %q", tt.format, got, tt.expected)
			}
		})
	}
}

// TestQueueStateFailFast checks that operations issued out of order fail
// with ErrQueueState before touching the device.
func TestQueueStateFailFast(t *testing.T) {
	c := &Camera{fd: -1, wakeR: -1, wakeW: -1}

	if _, err := c.Dequeue(); !errors.Is(err, ErrQueueState) {
		t.Errorf("Dequeue before StreamOn: got %v, want ErrQueueState", err)
	}
	if err := c.Enqueue(0); !errors.Is(err, ErrQueueState) {
		t.Errorf("Enqueue without buffers: got %v, want ErrQueueState", err)
	}
	if err := c.StreamOn(); !errors.Is(err, ErrQueueState) {
		t.Errorf("StreamOn without buffers: got %v, want ErrQueueState", err)
	}

	// Idle teardown paths must tolerate repeated calls.
	c.StreamOff()
	c.ReleaseAll()
	c.ReleaseAll()
}

// TestDequeueRejectsOversizedFd verifies that a descriptor at or above
// FD_SETSIZE fails cleanly instead of indexing past the fd_set.
func TestDequeueRejectsOversizedFd(t *testing.T) {
	c := &Camera{fd: fdSetSize, wakeR: -1, wakeW: -1, streamOn: true}

	if _, err := c.Dequeue(); !errors.Is(err, ErrDevice) {
		t.Errorf("Dequeue with fd %d: got %v, want ErrDevice", fdSetSize, err)
	}

	c = &Camera{fd: 3, wakeR: fdSetSize + 1, wakeW: -1, streamOn: true}
	if _, err := c.Dequeue(); !errors.Is(err, ErrDevice) {
		t.Errorf("Dequeue with wake fd %d: got %v, want ErrDevice", fdSetSize+1, err)
	}
}

func TestRequestBuffersWhileMapped(t *testing.T) {
	c := &Camera{
		fd:      -1,
		buffers: []mappedBuffer{{data: make([]byte, 16)}},
	}
	if _, err := c.RequestBuffers(3); !errors.Is(err, ErrQueueState) {
		t.Errorf("RequestBuffers with live buffers: got %v, want ErrQueueState", err)
	}
}
