//go:build linux

package v4l2

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"
	"unsafe"
)

// Camera is an open handle to a single V4L2 capture device. It owns the
// file descriptor and the buffer queue built on top of it. A Camera is
// not safe for concurrent queue operations; callers serialize sessions
// against it (one active session at a time).
type Camera struct {
	path string

	mu       sync.Mutex
	fd       int
	wakeR    int // read end of the wake pipe, watched alongside fd
	wakeW    int // write end, poked by Interrupt
	buffers  []mappedBuffer
	streamOn bool
}

type mappedBuffer struct {
	data []byte
}

// Open opens a V4L2 capture device in non-blocking mode and verifies it
// supports streaming video capture.
func Open(path string) (*Camera, error) {
	fd, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	cap := v4l2_capability{}
	if err := ioctl(fd, VIDIOC_QUERYCAP, unsafe.Pointer(&cap)); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("failed to query capabilities of %s: %w", path, err)
	}

	caps := cap.capabilities
	if caps&V4L2_CAP_DEVICE_CAPS != 0 {
		caps = cap.device_caps
	}
	if caps&V4L2_CAP_VIDEO_CAPTURE == 0 {
		syscall.Close(fd)
		return nil, fmt.Errorf("%s: %w", path, ErrNotCapture)
	}

	var pipeFds [2]int
	if err := syscall.Pipe2(pipeFds[:], syscall.O_NONBLOCK|syscall.O_CLOEXEC); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("failed to create wake pipe: %w", err)
	}

	return &Camera{
		path:  path,
		fd:    fd,
		wakeR: pipeFds[0],
		wakeW: pipeFds[1],
	}, nil
}

// Path returns the device path the camera was opened with.
func (c *Camera) Path() string {
	return c.path
}

// Close releases all mapped buffers and closes the device descriptor.
func (c *Camera) Close() error {
	c.ReleaseAll()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fd < 0 {
		return nil
	}
	syscall.Close(c.wakeR)
	syscall.Close(c.wakeW)
	err := syscall.Close(c.fd)
	c.fd = -1
	return err
}

// FindDevices finds all V4L2 video capture devices on the system.
func FindDevices() ([]DeviceInfo, error) {
	entries, err := os.ReadDir("/sys/class/video4linux")
	if err != nil {
		if os.IsNotExist(err) {
			return []DeviceInfo{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	var devices []DeviceInfo

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		devicePath := "/dev/" + entry.Name()

		fd, err := open(devicePath)
		if err != nil {
			slog.With("component", "linuxav").Debug("failed to open video device", "path", devicePath, "error", err)
			continue
		}

		cap := v4l2_capability{}
		if err := ioctl(fd, VIDIOC_QUERYCAP, unsafe.Pointer(&cap)); err != nil {
			slog.With("component", "linuxav").Debug("failed to query device capabilities", "path", devicePath, "error", err)
			syscall.Close(fd)
			continue
		}
		syscall.Close(fd)

		// Get the effective capabilities
		caps := cap.capabilities
		if caps&V4L2_CAP_DEVICE_CAPS != 0 {
			caps = cap.device_caps
		}

		// Only include video capture devices
		if caps&V4L2_CAP_VIDEO_CAPTURE == 0 {
			continue
		}

		devices = append(devices, DeviceInfo{
			DevicePath: devicePath,
			DeviceName: cstr(cap.card[:]),
			Driver:     cstr(cap.driver[:]),
			BusInfo:    cstr(cap.bus_info[:]),
			Caps:       caps,
		})
	}

	return devices, nil
}

// cstr converts a null-terminated byte slice to a Go string.
func cstr(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
