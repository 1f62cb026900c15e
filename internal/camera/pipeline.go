package camera

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/camnode/internal/encoder"
	"github.com/smazurov/camnode/internal/metrics"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// ErrBusy is returned when the camera lock could not be acquired within
// its timeout: another session holds the device.
var ErrBusy = errors.New("camera: device busy")

// DefaultBufferCount is the number of driver buffers a session requests.
const DefaultBufferCount = 3

// Config tunes a pipeline.
type Config struct {
	// Buffers is the driver buffer count per session.
	Buffers uint32
	// Quality is the JPEG quality for encoded output.
	Quality int
	// LockTimeout bounds the wait for camera ownership.
	LockTimeout time.Duration
}

// Pipeline binds one capture device to its access lock and encoder. All
// sessions (stream, capture, raw) go through it, so at most one of them
// owns the device at a time.
type Pipeline struct {
	device string
	drv    Driver
	lock   *AccessLock
	enc    *encoder.Encoder
	cfg    Config
	logger *slog.Logger

	// format is the negotiated capture format, set by Negotiate.
	format v4l2.Format

	// mapped holds the session's buffer mappings, indexed by buffer
	// index. Valid between open and close; only the lock holder touches
	// it.
	mapped [][]byte
}

// NewPipeline wires a pipeline around an open driver. Call Negotiate
// before starting sessions.
func NewPipeline(device string, drv Driver, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Buffers == 0 {
		cfg.Buffers = DefaultBufferCount
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		device: device,
		drv:    drv,
		lock:   NewAccessLock(cfg.LockTimeout),
		enc:    encoder.New(cfg.Quality, logger),
		cfg:    cfg,
		logger: logger,
	}
}

// Device returns the device path the pipeline drives.
func (p *Pipeline) Device() string { return p.device }

// Format returns the negotiated capture format. Zero before Negotiate.
func (p *Pipeline) Format() v4l2.Format { return p.format }

// Lock exposes the access lock so cooperating components (the detection
// runner) share camera ownership with HTTP sessions.
func (p *Pipeline) Lock() *AccessLock { return p.lock }

// Negotiate settles on a capture format the encoder can consume. The
// sensor's native geometry is kept; only the pixel format is steered:
// RGB565 first, then planar YUV 4:2:2, then whatever the device already
// produces. An unconvertible native format fails here rather than on the
// first frame.
func (p *Pipeline) Negotiate() error {
	current, err := p.drv.GetFormat()
	if err != nil {
		return fmt.Errorf("query format: %w", err)
	}

	preferred := []uint32{v4l2.PixFmtRGB565, v4l2.PixFmtYUV422P}
	got := current
	for _, pf := range preferred {
		want := v4l2.Format{Width: current.Width, Height: current.Height, PixelFormat: pf}
		actual, err := p.drv.SetFormat(want)
		if err != nil {
			p.logger.Debug("format rejected",
				"device", p.device, "format", v4l2.FormatFourCC(pf), "error", err)
			continue
		}
		got = actual
		if actual.PixelFormat == pf {
			break
		}
	}

	if err := p.enc.Configure(got.Width, got.Height, got.PixelFormat); err != nil {
		return fmt.Errorf("device %s produces %s: %w",
			p.device, v4l2.FormatFourCC(got.PixelFormat), err)
	}

	p.format = got
	p.logger.Info("capture format negotiated",
		"device", p.device,
		"width", got.Width, "height", got.Height,
		"format", v4l2.FormatFourCC(got.PixelFormat))
	return nil
}

// open runs the buffer setup handshake: request, map and enqueue every
// buffer, then start streaming. On any failure it unwinds what was done
// and returns the driver to its idle state. The caller owns the lock.
func (p *Pipeline) open() error {
	granted, err := p.drv.RequestBuffers(p.cfg.Buffers)
	if err != nil {
		return fmt.Errorf("request buffers: %w", err)
	}
	if granted < p.cfg.Buffers {
		p.logger.Warn("driver granted fewer buffers",
			"device", p.device, "want", p.cfg.Buffers, "got", granted)
	}

	p.mapped = make([][]byte, granted)
	for i := uint32(0); i < granted; i++ {
		data, err := p.drv.MapBuffer(i)
		if err != nil {
			p.drv.ReleaseAll()
			p.mapped = nil
			return fmt.Errorf("map buffer %d: %w", i, err)
		}
		p.mapped[i] = data
		if err := p.drv.Enqueue(i); err != nil {
			p.drv.ReleaseAll()
			p.mapped = nil
			return fmt.Errorf("enqueue buffer %d: %w", i, err)
		}
	}

	if err := p.drv.StreamOn(); err != nil {
		p.drv.ReleaseAll()
		p.mapped = nil
		return fmt.Errorf("stream on: %w", err)
	}
	return nil
}

// close tears a session down: stop streaming, unmap everything.
func (p *Pipeline) close() {
	p.drv.ReleaseAll()
	p.mapped = nil
}

// nextJPEG dequeues one frame, encodes it and re-enqueues the buffer.
// The returned slice belongs to the encoder and is valid until the next
// call.
func (p *Pipeline) nextJPEG() ([]byte, error) {
	frame, err := p.drv.Dequeue()
	if err != nil {
		return nil, err
	}
	metrics.IncFramesDequeued(p.device)

	raw := p.mapped[frame.Index]
	if uint32(len(raw)) > frame.BytesUsed {
		raw = raw[:frame.BytesUsed]
	}

	start := time.Now()
	jpg, encErr := p.enc.Encode(raw)

	// The buffer goes back to the driver no matter how encoding went;
	// losing one starves the queue.
	if err := p.drv.Enqueue(frame.Index); err != nil {
		return nil, fmt.Errorf("re-enqueue buffer %d: %w", frame.Index, err)
	}

	if encErr != nil {
		return nil, encErr
	}
	metrics.IncFramesEncoded(p.device)
	metrics.ObserveEncodeDuration(p.device, time.Since(start).Seconds())
	return jpg, nil
}
