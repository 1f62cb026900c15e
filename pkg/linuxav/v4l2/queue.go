//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"log/slog"
	"syscall"
	"time"
	"unsafe"
)

// RequestBuffers asks the driver for count memory-mapped buffers and
// returns the number actually granted. It must be called before any
// mapping. Fails with ErrAllocation when the driver grants zero.
func (c *Camera) RequestBuffers(count uint32) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.buffers) != 0 || c.streamOn {
		return 0, fmt.Errorf("request with live buffers: %w", ErrQueueState)
	}

	req := v4l2_requestbuffers{
		count:  count,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}

	if err := ioctl(c.fd, VIDIOC_REQBUFS, unsafe.Pointer(&req)); err != nil {
		return 0, fmt.Errorf("%w: VIDIOC_REQBUFS: %w", ErrAllocation, err)
	}
	if req.count == 0 {
		return 0, fmt.Errorf("%w: driver granted zero buffers", ErrAllocation)
	}

	c.buffers = make([]mappedBuffer, req.count)
	return req.count, nil
}

// MapBuffer queries the geometry of buffer index and maps its memory into
// the process. Mapping is all-or-nothing per buffer: a failure leaves the
// buffer unmapped and the caller is expected to unwind the whole setup.
func (c *Camera) MapBuffer(index uint32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if int(index) >= len(c.buffers) {
		return nil, fmt.Errorf("map of unrequested buffer %d: %w", index, ErrQueueState)
	}
	if c.buffers[index].data != nil {
		return c.buffers[index].data, nil
	}

	buf := v4l2_buffer{
		index:  index,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := ioctl(c.fd, VIDIOC_QUERYBUF, unsafe.Pointer(&buf)); err != nil {
		return nil, fmt.Errorf("%w: VIDIOC_QUERYBUF %d: %w", ErrMap, index, err)
	}

	data, err := syscall.Mmap(c.fd, int64(buf.offset), int(buf.length),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap buffer %d: %w", ErrMap, index, err)
	}

	c.buffers[index].data = data
	return data, nil
}

// BufferData returns the mapped memory of buffer index, or nil when the
// buffer is not mapped. The returned slice must only be read between a
// Dequeue that delivered this index and the matching Enqueue.
func (c *Camera) BufferData(index uint32) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if int(index) >= len(c.buffers) {
		return nil
	}
	return c.buffers[index].data
}

// Enqueue hands buffer index back to the hardware for filling.
func (c *Camera) Enqueue(index uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if int(index) >= len(c.buffers) || c.buffers[index].data == nil {
		return fmt.Errorf("enqueue of unmapped buffer %d: %w", index, ErrQueueState)
	}

	buf := v4l2_buffer{
		index:  index,
		typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
		memory: V4L2_MEMORY_MMAP,
	}
	if err := ioctl(c.fd, VIDIOC_QBUF, unsafe.Pointer(&buf)); err != nil {
		return fmt.Errorf("%w: VIDIOC_QBUF %d: %w", ErrDevice, index, err)
	}
	return nil
}

// StreamOn starts the hardware capture pipeline. Any stale wake from a
// previous Interrupt is drained first.
func (c *Camera) StreamOn() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.buffers) == 0 {
		return fmt.Errorf("stream on without buffers: %w", ErrQueueState)
	}
	if c.streamOn {
		return nil
	}

	c.drainWake()

	typ := uint32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	if err := ioctl(c.fd, VIDIOC_STREAMON, unsafe.Pointer(&typ)); err != nil {
		return fmt.Errorf("%w: VIDIOC_STREAMON: %w", ErrDevice, err)
	}
	c.streamOn = true
	return nil
}

// StreamOff stops the hardware capture pipeline. It is idempotent and
// best-effort: it runs on cleanup paths, so failures are logged rather
// than propagated.
func (c *Camera) StreamOff() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.streamOn {
		return
	}

	typ := uint32(V4L2_BUF_TYPE_VIDEO_CAPTURE)
	if err := ioctl(c.fd, VIDIOC_STREAMOFF, unsafe.Pointer(&typ)); err != nil {
		slog.With("component", "linuxav").Warn("VIDIOC_STREAMOFF failed", "path", c.path, "error", err)
	}
	c.streamOn = false
}

// ReleaseAll unmaps every buffer tracked by this camera. Safe to call
// multiple times and with the stream still on (it turns it off first).
func (c *Camera) ReleaseAll() {
	c.StreamOff()

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.buffers {
		if c.buffers[i].data != nil {
			if err := syscall.Munmap(c.buffers[i].data); err != nil {
				slog.With("component", "linuxav").Warn("munmap failed", "index", i, "error", err)
			}
			c.buffers[i].data = nil
		}
	}
	c.buffers = nil
}

// Dequeue blocks until the hardware signals a filled buffer and returns
// its descriptor. The wait is cancellable: Interrupt from another
// goroutine makes Dequeue return ErrInterrupted. A dequeued buffer whose
// completion flag is unset is re-enqueued and the wait retried; it is
// never delivered to the caller.
func (c *Camera) Dequeue() (Frame, error) {
	c.mu.Lock()
	if !c.streamOn {
		c.mu.Unlock()
		return Frame{}, fmt.Errorf("dequeue with stream off: %w", ErrQueueState)
	}
	fd, wake := c.fd, c.wakeR
	c.mu.Unlock()

	// select(2) cannot watch descriptors at or above FD_SETSIZE;
	// indexing the fd_set with one would corrupt memory.
	if fd >= fdSetSize || wake >= fdSetSize {
		return Frame{}, fmt.Errorf("%w: descriptor beyond select limit %d", ErrDevice, fdSetSize)
	}

	for {
		var rfds syscall.FdSet
		fdSet(fd, &rfds)
		fdSet(wake, &rfds)
		nfds := fd
		if wake > nfds {
			nfds = wake
		}

		n, err := syscall.Select(nfds+1, &rfds, nil, nil, nil)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return Frame{}, fmt.Errorf("%w: select: %w", ErrDevice, err)
		}
		if n == 0 {
			continue
		}

		if fdIsSet(wake, &rfds) {
			c.mu.Lock()
			c.drainWake()
			c.mu.Unlock()
			return Frame{}, ErrInterrupted
		}

		if !fdIsSet(fd, &rfds) {
			continue
		}

		buf := v4l2_buffer{
			typ:    V4L2_BUF_TYPE_VIDEO_CAPTURE,
			memory: V4L2_MEMORY_MMAP,
		}
		if err := ioctl(fd, VIDIOC_DQBUF, unsafe.Pointer(&buf)); err != nil {
			if errors.Is(err, syscall.EAGAIN) {
				continue
			}
			return Frame{}, fmt.Errorf("%w: VIDIOC_DQBUF: %w", ErrDevice, err)
		}

		if buf.flags&V4L2_BUF_FLAG_ERROR != 0 || buf.bytesused == 0 {
			// Incomplete capture, hand the buffer straight back.
			if err := c.Enqueue(buf.index); err != nil {
				return Frame{}, err
			}
			continue
		}

		ts := time.Unix(int64(buf.timestamp.Sec), int64(buf.timestamp.Usec)*1000)
		if buf.timestamp.Sec == 0 && buf.timestamp.Usec == 0 {
			ts = time.Now()
		}

		return Frame{
			Index:     buf.index,
			BytesUsed: buf.bytesused,
			Sequence:  buf.sequence,
			Timestamp: ts,
		}, nil
	}
}

// Interrupt wakes a Dequeue blocked in select. The wake sticks until the
// next StreamOn, so an Interrupt racing ahead of the Dequeue still lands.
func (c *Camera) Interrupt() {
	b := [1]byte{1}
	_, _ = syscall.Write(c.wakeW, b[:])
}

// drainWake empties the wake pipe. Callers hold c.mu.
func (c *Camera) drainWake() {
	var b [16]byte
	for {
		n, err := syscall.Read(c.wakeR, b[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// fd_set geometry. The element width of Bits differs across
// architectures, so both are derived rather than hard-coded.
const (
	fdSetBits = int(unsafe.Sizeof(syscall.FdSet{}.Bits[0])) * 8
	fdSetSize = len(syscall.FdSet{}.Bits) * fdSetBits
)

func fdSet(fd int, set *syscall.FdSet) {
	set.Bits[fd/fdSetBits] |= 1 << (uint(fd) % uint(fdSetBits))
}

func fdIsSet(fd int, set *syscall.FdSet) bool {
	return set.Bits[fd/fdSetBits]&(1<<(uint(fd)%uint(fdSetBits))) != 0
}
