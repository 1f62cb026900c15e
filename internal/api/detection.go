package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camnode/internal/api/models"
	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/detect"
)

// registerDetectionRoutes sets up face detection control endpoints
func (s *Server) registerDetectionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-detection-status",
		Method:      http.MethodGet,
		Path:        "/api/detection",
		Summary:     "Detection status",
		Description: "Get the state of the face detection session",
		Tags:        []string{"detection"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DetectionStatusResponse, error) {
		if s.runner == nil {
			return nil, huma.Error503ServiceUnavailable("Detection not configured")
		}
		return &models.DetectionStatusResponse{
			Body: models.DetectionStatusData{
				Running: s.runner.Running(),
				Frames:  s.runner.Frames(),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "start-detection",
		Method:      http.MethodPost,
		Path:        "/api/detection",
		Summary:     "Start detection",
		Description: "Start the background face detection session; results are delivered over SSE and NATS",
		Tags:        []string{"detection"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DetectionStartResponse, error) {
		if s.runner == nil {
			return nil, huma.Error503ServiceUnavailable("Detection not configured")
		}

		if err := s.runner.Start(); err != nil {
			switch {
			case errors.Is(err, detect.ErrAlreadyRunning):
				return nil, huma.Error409Conflict("Detection already running")
			case errors.Is(err, camera.ErrBusy):
				return nil, huma.Error503ServiceUnavailable("Camera busy")
			default:
				return nil, huma.Error500InternalServerError("Failed to start detection", err)
			}
		}

		return &models.DetectionStartResponse{
			Body: models.DetectionStartData{Status: "started"},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "stop-detection",
		Method:      http.MethodDelete,
		Path:        "/api/detection",
		Summary:     "Stop detection",
		Description: "Stop the face detection session and release the camera",
		Tags:        []string{"detection"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DetectionStopResponse, error) {
		if s.runner == nil {
			return nil, huma.Error503ServiceUnavailable("Detection not configured")
		}

		s.runner.Stop()
		frames := s.runner.Frames()

		return &models.DetectionStopResponse{
			Body: models.DetectionStopData{
				Status: "stopped",
				Frames: frames,
			},
		}, nil
	})
}
