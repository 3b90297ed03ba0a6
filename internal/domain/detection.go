package domain

import "errors"

// Common validation errors for Detection.
var (
	ErrEmptyDetectionLabel     = errors.New("detection label cannot be empty")
	ErrInvalidConfidence       = errors.New("detection confidence must be between 0 and 1")
	ErrInvalidBoundingBox      = errors.New("detection bounding box must have x1 < x2 and y1 < y2")
	ErrNegativeBoundingBoxEdge = errors.New("detection bounding box coordinates cannot be negative")
)

// BoundingBox is an axis-aligned box in pixel coordinates with the origin
// at the top-left of the image.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the horizontal extent of the box in pixels.
func (b BoundingBox) Width() int {
	return b.X2 - b.X1
}

// Height returns the vertical extent of the box in pixels.
func (b BoundingBox) Height() int {
	return b.Y2 - b.Y1
}

// Detection is one inference result produced by the detection engine for
// an image: a class label, a confidence score and a bounding box.
type Detection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// Validate checks if the Detection has valid data.
func (d Detection) Validate() error {
	if d.Label == "" {
		return ErrEmptyDetectionLabel
	}

	if d.Confidence < 0 || d.Confidence > 1 {
		return ErrInvalidConfidence
	}

	if d.Box.X1 < 0 || d.Box.Y1 < 0 {
		return ErrNegativeBoundingBoxEdge
	}

	if d.Box.X1 >= d.Box.X2 || d.Box.Y1 >= d.Box.Y2 {
		return ErrInvalidBoundingBox
	}

	return nil
}
