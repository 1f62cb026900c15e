// Package camera coordinates exclusive access to a capture device and runs
// the streaming, still-capture and raw frame sessions on top of it.
package camera

import (
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// Driver is the capture device surface the pipeline drives. *v4l2.Camera
// satisfies it; tests substitute fakes.
type Driver interface {
	// GetFormat reports the device's current capture format.
	GetFormat() (v4l2.Format, error)

	// SetFormat applies the requested format and returns what the device
	// actually accepted, which may differ.
	SetFormat(want v4l2.Format) (v4l2.Format, error)

	// RequestBuffers allocates driver-side frame buffers and returns the
	// granted count.
	RequestBuffers(count uint32) (uint32, error)

	// MapBuffer maps one allocated buffer into process memory.
	MapBuffer(index uint32) ([]byte, error)

	// Enqueue hands a buffer back to the driver for filling.
	Enqueue(index uint32) error

	// Dequeue blocks until a filled frame is available or Interrupt is
	// called.
	Dequeue() (v4l2.Frame, error)

	// StreamOn starts capture.
	StreamOn() error

	// StreamOff stops capture; in-flight buffers return to the caller.
	StreamOff()

	// ReleaseAll stops capture and unmaps every buffer.
	ReleaseAll()

	// Interrupt wakes a blocked Dequeue.
	Interrupt()
}
