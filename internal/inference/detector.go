// Package inference defines the external detection engine capability.
// The engine itself is a black box: given an image it returns a list of
// labeled, scored bounding boxes. Implementations live under
// internal/platform so alternate backends can be swapped in without
// touching pipeline logic.
package inference

import (
	"context"

	"github.com/visionforge/detect-api/internal/domain"
)

// Detector runs object detection on a single image. An empty result is a
// valid outcome, not an error.
type Detector interface {
	// Detect returns the detections found in the given encoded image.
	Detect(ctx context.Context, image []byte, filename string) ([]domain.Detection, error)

	// ModelInfo returns the name and version of the backing model, recorded
	// on each job for provenance.
	ModelInfo() (name, version string)
}
