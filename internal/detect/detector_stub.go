//go:build !gocv

package detect

import (
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// nullDetector reports no faces. It keeps the detection session, its
// event stream and its NATS publishing fully functional on builds
// without OpenCV; every frame yields an empty face list.
type nullDetector struct{}

// NewDetector returns the null detector. The model path is accepted and
// ignored so callers are build-tag agnostic. Build with -tags gocv for
// cascade-based detection.
func NewDetector(modelPath string) (Detector, error) {
	_ = modelPath
	return nullDetector{}, nil
}

func (nullDetector) Detect(raw []byte, format v4l2.Format) ([]events.FaceBox, error) {
	return nil, nil
}

func (nullDetector) Close() error { return nil }
