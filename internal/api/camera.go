package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/nats"
)

const indexPage = `<!DOCTYPE html>
<html>
<head>
<title>Camnode</title>
<style>body{font-family:sans-serif;margin:1em}img{max-width:100%}</style>
</head>
<body>
<h1>Camnode</h1>
<p>
<button onclick="location.reload()">Refresh</button>
<button onclick="window.open('/capture')">Capture</button>
<a href="/docs">API docs</a>
</p>
<img src="/stream" alt="camera stream">
</body>
</html>
`

// registerCameraRoutes wires the binary camera endpoints directly on the
// mux. They stream multipart and JPEG payloads, which does not fit the
// Huma request/response model.
func (s *Server) registerCameraRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /stream", s.handleStream)
	s.mux.HandleFunc("GET /capture", s.handleCapture)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexPage)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		http.Error(w, "no camera configured", http.StatusServiceUnavailable)
		return
	}

	s.logger.Info("Stream client connected", "remote", r.RemoteAddr)

	w.Header().Set("Content-Type", camera.StreamContentType)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-cache")

	if s.eventBus != nil {
		s.eventBus.Publish(events.StreamStartedEvent{
			DevicePath: s.pipeline.Device(),
			RemoteAddr: r.RemoteAddr,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}

	err := s.pipeline.Stream(w)

	if s.eventBus != nil {
		s.eventBus.Publish(events.StreamStoppedEvent{
			DevicePath: s.pipeline.Device(),
			RemoteAddr: r.RemoteAddr,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}

	if err != nil {
		if errors.Is(err, camera.ErrBusy) {
			s.logger.Warn("Stream rejected, camera busy", "remote", r.RemoteAddr)
			http.Error(w, "camera busy", http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("Stream failed", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "stream failed", http.StatusInternalServerError)
		return
	}

	s.logger.Info("Stream client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		http.Error(w, "no camera configured", http.StatusServiceUnavailable)
		return
	}

	jpeg, err := s.pipeline.CaptureFrame()
	if err != nil {
		if s.eventBus != nil {
			s.eventBus.Publish(events.CaptureErrorEvent{
				DevicePath: s.pipeline.Device(),
				Error:      err.Error(),
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
			})
		}
		if errors.Is(err, camera.ErrBusy) {
			s.logger.Warn("Capture rejected, camera busy", "remote", r.RemoteAddr)
			http.Error(w, "camera busy", http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("Capture failed", "remote", r.RemoteAddr, "error", err)
		http.Error(w, "capture failed", http.StatusInternalServerError)
		return
	}

	if s.eventBus != nil {
		s.eventBus.Publish(events.CaptureSuccessEvent{
			DevicePath: s.pipeline.Device(),
			Bytes:      len(jpeg),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}
	if s.options.Nats != nil {
		s.options.Nats.PublishCapture(nats.CaptureMessage{
			Device:    s.pipeline.Device(),
			Bytes:     len(jpeg),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", "inline; filename=capture.jpg")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(jpeg)))
	if _, err := w.Write(jpeg); err != nil {
		s.logger.Debug("Capture write failed", "remote", r.RemoteAddr, "error", err)
	}
}
