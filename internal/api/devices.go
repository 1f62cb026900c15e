package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/camnode/internal/api/models"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// registerDeviceRoutes sets up device discovery endpoints
func (s *Server) registerDeviceRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List devices",
		Description: "List V4L2 capture devices present on the system with their supported formats",
		Tags:        []string{"devices"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.DeviceListResponse, error) {
		found, err := v4l2.FindDevices()
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to enumerate devices", err)
		}

		devices := make([]models.DeviceInfo, 0, len(found))
		for _, d := range found {
			info := models.DeviceInfo{
				DevicePath: d.DevicePath,
				DeviceName: d.DeviceName,
				Driver:     d.Driver,
				BusInfo:    d.BusInfo,
			}
			formats, err := v4l2.GetFormats(d.DevicePath)
			if err != nil {
				s.logger.Debug("Failed to query formats", "device", d.DevicePath, "error", err)
			}
			for _, f := range formats {
				info.Formats = append(info.Formats, f.FormatName)
			}
			devices = append(devices, info)
		}

		return &models.DeviceListResponse{
			Body: models.DeviceListData{
				Devices: devices,
				Count:   len(devices),
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-active-device",
		Method:      http.MethodGet,
		Path:        "/api/device",
		Summary:     "Active device",
		Description: "Get the negotiated capture format of the active camera",
		Tags:        []string{"devices"},
		Security:    withAuth(),
	}, func(ctx context.Context, input *struct{}) (*models.ActiveDeviceResponse, error) {
		if s.pipeline == nil {
			return nil, huma.Error503ServiceUnavailable("No camera configured")
		}

		format := s.pipeline.Format()

		// The camera is in use exactly when the access token cannot be
		// taken. Give it straight back if we got it.
		streaming := false
		if s.pipeline.Lock().TryAcquire() {
			s.pipeline.Lock().Release()
		} else {
			streaming = true
		}

		return &models.ActiveDeviceResponse{
			Body: models.ActiveDeviceData{
				DevicePath:  s.pipeline.Device(),
				Width:       format.Width,
				Height:      format.Height,
				PixelFormat: v4l2.FormatFourCC(format.PixelFormat),
				Streaming:   streaming,
			},
		}, nil
	})
}
