// Package detect runs the background face detection session: it owns the
// camera through a raw frame session, feeds frames to a Detector and
// publishes results to the event bus and NATS.
package detect

import (
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// Detector finds faces in one raw frame. Implementations are not
// required to be safe for concurrent use; the runner calls Detect from a
// single goroutine.
type Detector interface {
	// Detect scans a raw frame in the given capture format and returns
	// the faces found, empty when none.
	Detect(raw []byte, format v4l2.Format) ([]events.FaceBox, error)

	// Close releases detector resources.
	Close() error
}
