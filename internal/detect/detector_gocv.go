//go:build gocv

package detect

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// cascadeDetector runs a Haar cascade classifier over the luma plane.
type cascadeDetector struct {
	classifier gocv.CascadeClassifier
}

// NewDetector loads a Haar cascade model from the given path.
func NewDetector(modelPath string) (Detector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(modelPath) {
		classifier.Close()
		return nil, fmt.Errorf("detect: cannot load cascade model %q", modelPath)
	}
	return &cascadeDetector{classifier: classifier}, nil
}

func (d *cascadeDetector) Detect(raw []byte, format v4l2.Format) ([]events.FaceBox, error) {
	grey, err := greyMat(raw, format)
	if err != nil {
		return nil, err
	}
	defer grey.Close()

	rects := d.classifier.DetectMultiScale(grey)
	if len(rects) == 0 {
		return nil, nil
	}

	faces := make([]events.FaceBox, 0, len(rects))
	for _, r := range rects {
		faces = append(faces, events.FaceBox{
			X: r.Min.X,
			Y: r.Min.Y,
			W: r.Dx(),
			H: r.Dy(),
			// Cascade classifiers do not expose per-box confidence.
			Score: 1.0,
		})
	}
	return faces, nil
}

func (d *cascadeDetector) Close() error {
	return d.classifier.Close()
}

// greyMat extracts a single-channel greyscale Mat from a raw frame.
func greyMat(raw []byte, format v4l2.Format) (gocv.Mat, error) {
	w, h := int(format.Width), int(format.Height)

	switch format.PixelFormat {
	case v4l2.PixFmtGrey:
		return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, raw[:w*h])

	case v4l2.PixFmtYUV422P:
		// The luma plane leads the buffer; chroma is ignored.
		return gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, raw[:w*h])

	case v4l2.PixFmtRGB565:
		src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC2, raw[:w*h*2])
		if err != nil {
			return gocv.Mat{}, err
		}
		defer src.Close()
		grey := gocv.NewMat()
		gocv.CvtColor(src, &grey, gocv.ColorBGR565ToGray)
		return grey, nil

	case v4l2.PixFmtRGB24:
		src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, raw[:w*h*3])
		if err != nil {
			return gocv.Mat{}, err
		}
		defer src.Close()
		grey := gocv.NewMat()
		gocv.CvtColor(src, &grey, gocv.ColorRGBToGray)
		return grey, nil
	}

	return gocv.Mat{}, fmt.Errorf("detect: unsupported frame format %s",
		v4l2.FormatFourCC(format.PixelFormat))
}
