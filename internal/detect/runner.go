package detect

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/metrics"
	"github.com/smazurov/camnode/internal/nats"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// ErrAlreadyRunning is returned by Start when a detection session is
// active.
var ErrAlreadyRunning = errors.New("detect: session already running")

// Runner drives the background detection session. Start takes the
// camera through the shared access lock, so detection excludes streaming
// and capture the same way they exclude each other.
type Runner struct {
	pipeline *camera.Pipeline
	detector Detector
	bus      *events.Bus
	nc       *nats.Client // nil when NATS publishing is disabled
	logger   *slog.Logger

	// interval is the minimum spacing between detector invocations.
	// Frames arriving faster are requeued untouched.
	interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	session *camera.RawSession

	frames atomic.Uint64
}

// NewRunner wires a detection runner. nc may be nil.
func NewRunner(pipeline *camera.Pipeline, detector Detector, bus *events.Bus, nc *nats.Client, interval time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		pipeline: pipeline,
		detector: detector,
		bus:      bus,
		nc:       nc,
		interval: interval,
		logger:   logger,
	}
}

// Running reports whether a detection session is active.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Frames returns the number of frames processed by the current or most
// recent session.
func (r *Runner) Frames() uint64 {
	return r.frames.Load()
}

// Start acquires the camera and launches the detection loop. It returns
// ErrAlreadyRunning when a session is active and camera.ErrBusy when
// another session holds the device.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyRunning
	}

	session, err := r.pipeline.OpenRaw()
	if err != nil {
		return err
	}

	r.session = session
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.running = true
	r.frames.Store(0)

	device := r.pipeline.Device()
	metrics.SetDetectRunning(device, true)
	r.bus.Publish(events.DetectionStartedEvent{
		DevicePath: device,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
	r.logger.Info("detection session started", "device", device, "interval", r.interval)

	go r.run(session, r.stop, r.done)
	return nil
}

// Stop asks the running session to finish and blocks until the camera
// has been released. Calling Stop when no session runs is a no-op.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	// Claim the shutdown before releasing the mutex so a concurrent
	// Stop cannot close the same channel twice.
	r.running = false
	stop := r.stop
	done := r.done
	session := r.session
	r.session = nil
	r.mu.Unlock()

	close(stop)
	select {
	case <-done:
		// The loop already tore itself down and released the camera; a
		// wake now would land on whoever opens the device next.
	default:
		// Cut the wait short if the loop is blocked on the next frame.
		session.Interrupt()
	}
	<-done
}

// run is the detection loop. It owns the session and closes it on exit,
// whether it was stopped or died on a driver error.
func (r *Runner) run(session *camera.RawSession, stop, done chan struct{}) {
	device := r.pipeline.Device()
	format := session.Format()

	defer func() {
		session.Close()
		r.mu.Lock()
		r.running = false
		r.session = nil
		r.mu.Unlock()
		metrics.SetDetectRunning(device, false)
		r.bus.Publish(events.DetectionStoppedEvent{
			DevicePath: device,
			Frames:     r.frames.Load(),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
		r.logger.Info("detection session ended", "device", device, "frames", r.frames.Load())
		close(done)
	}()

	var lastDetect time.Time
	statWindow := time.Now()
	statFrames := 0
	statFaces := 0

	for {
		select {
		case <-stop:
			return
		default:
		}

		frame, raw, err := session.Next()
		if err != nil {
			if errors.Is(err, v4l2.ErrInterrupted) {
				return
			}
			r.logger.Error("frame dequeue failed", "device", device, "error", err)
			return
		}

		r.frames.Add(1)
		statFrames++
		metrics.IncDetectFrames(device)

		if r.interval <= 0 || time.Since(lastDetect) >= r.interval {
			lastDetect = time.Now()
			start := lastDetect

			faces, detErr := r.detector.Detect(raw, format)
			if detErr != nil {
				r.logger.Warn("detector failed on frame", "device", device, "error", detErr)
			} else {
				metrics.ObserveDetectDuration(device, time.Since(start).Seconds())
				metrics.AddDetectFaces(device, len(faces))
				statFaces += len(faces)
				r.publish(frame, format, faces)
			}
		}

		if err := session.Requeue(frame.Index); err != nil {
			r.logger.Error("buffer requeue failed", "device", device, "error", err)
			return
		}

		if elapsed := time.Since(statWindow); elapsed >= time.Second {
			fps := float64(statFrames) / elapsed.Seconds()
			r.logger.Debug("detection throughput",
				"device", device, "fps", fps, "faces", statFaces)
			statWindow = time.Now()
			statFrames = 0
			statFaces = 0
		}
	}
}

// publish fans one result out to the event bus and NATS.
func (r *Runner) publish(frame v4l2.Frame, format v4l2.Format, faces []events.FaceBox) {
	if faces == nil {
		faces = []events.FaceBox{}
	}
	e := events.DetectionEvent{
		Ts:     frame.Timestamp.UnixMilli(),
		Width:  format.Width,
		Height: format.Height,
		Faces:  faces,
	}

	r.bus.Publish(e)
	if r.nc != nil {
		r.nc.PublishDetection(e)
	}
}
