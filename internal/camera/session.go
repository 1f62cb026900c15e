package camera

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/smazurov/camnode/internal/metrics"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// Multipart framing for the MJPEG stream.
const (
	// Boundary separates parts of the multipart stream.
	Boundary = "123456789000000000000987654321"

	// StreamContentType is the top-level content type of the stream
	// response.
	StreamContentType = "multipart/x-mixed-replace;boundary=" + Boundary

	partHeader = "\r\n--" + Boundary + "\r\n" +
		"Content-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n"
)

// Stream owns the camera for the life of the writer and pushes an MJPEG
// multipart stream into it. It returns ErrBusy when the camera cannot be
// acquired, nil when the client went away or Interrupt stopped the
// session, and a driver or encode error otherwise. Buffers and the
// device are released before return in every case.
func (p *Pipeline) Stream(w io.Writer) error {
	if !p.lock.Acquire() {
		metrics.IncBusyRejections(p.device, "stream")
		return ErrBusy
	}
	defer p.lock.Release()

	if err := p.open(); err != nil {
		return err
	}
	defer p.close()

	metrics.IncStreamClients(p.device)
	defer metrics.DecStreamClients(p.device)
	p.logger.Info("stream session started", "device", p.device)
	defer p.logger.Info("stream session ended", "device", p.device)

	for {
		jpg, err := p.nextJPEG()
		if err != nil {
			if errors.Is(err, v4l2.ErrInterrupted) {
				return nil
			}
			return err
		}

		if _, err := fmt.Fprintf(w, partHeader, len(jpg)); err != nil {
			return nil // client disconnected
		}
		if _, err := w.Write(jpg); err != nil {
			return nil
		}
		metrics.AddStreamBytes(p.device, len(jpg))

		if f, ok := w.(interface{ Flush() }); ok {
			f.Flush()
		}
	}
}

// CaptureFrame grabs a single frame and returns its JPEG encoding. The
// returned slice is a copy the caller owns. ErrBusy means another
// session held the camera for the whole lock timeout.
func (p *Pipeline) CaptureFrame() ([]byte, error) {
	if !p.lock.Acquire() {
		metrics.IncBusyRejections(p.device, "capture")
		return nil, ErrBusy
	}
	defer p.lock.Release()

	if err := p.open(); err != nil {
		return nil, err
	}
	defer p.close()

	jpg, err := p.nextJPEG()
	if err != nil {
		return nil, err
	}

	// The encoder buffer is reused; hand the caller its own copy.
	out := make([]byte, len(jpg))
	copy(out, jpg)

	p.logger.Info("frame captured", "device", p.device, "bytes", len(out))
	return out, nil
}

// Interrupt wakes whatever session is blocked in Dequeue so it can shut
// down.
func (p *Pipeline) Interrupt() {
	p.drv.Interrupt()
}

// RawSession exposes decoded-free frame access to the detection runner.
// It holds the camera lock from OpenRaw until Close.
type RawSession struct {
	p *Pipeline

	mu     sync.Mutex
	closed bool
}

// OpenRaw acquires the camera and starts capture without the JPEG stage.
// The caller must Close the session to release the device. Returns
// ErrBusy when the lock wait timed out.
func (p *Pipeline) OpenRaw() (*RawSession, error) {
	if !p.lock.Acquire() {
		metrics.IncBusyRejections(p.device, "detection")
		return nil, ErrBusy
	}
	if err := p.open(); err != nil {
		p.lock.Release()
		return nil, err
	}
	return &RawSession{p: p}, nil
}

// Format reports the negotiated capture format of the session.
func (s *RawSession) Format() v4l2.Format {
	return s.p.format
}

// Next blocks for the next filled frame and returns it with its raw
// bytes. The caller must hand the buffer back with Requeue before the
// next call.
func (s *RawSession) Next() (v4l2.Frame, []byte, error) {
	frame, err := s.p.drv.Dequeue()
	if err != nil {
		return v4l2.Frame{}, nil, err
	}
	metrics.IncFramesDequeued(s.p.device)

	raw := s.p.mapped[frame.Index]
	if uint32(len(raw)) > frame.BytesUsed {
		raw = raw[:frame.BytesUsed]
	}
	return frame, raw, nil
}

// Requeue returns a dequeued buffer to the driver.
func (s *RawSession) Requeue(index uint32) error {
	return s.p.drv.Enqueue(index)
}

// Interrupt wakes a blocked Next. After Close it is a no-op: the wake
// pipe is shared, and a late wake would abort whichever session owns the
// camera next.
func (s *RawSession) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.p.drv.Interrupt()
}

// Close stops capture, releases buffers and gives up the camera lock.
func (s *RawSession) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.p.close()
	s.p.lock.Release()
}
