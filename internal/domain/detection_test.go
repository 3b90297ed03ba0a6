package domain

import "testing"

func TestDetectionValidate(t *testing.T) {
	t.Parallel()

	valid := Detection{
		Label:      "person",
		Confidence: 0.87,
		Box:        BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 220},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(d *Detection)
		want   error
	}{
		{"empty label", func(d *Detection) { d.Label = "" }, ErrEmptyDetectionLabel},
		{"negative confidence", func(d *Detection) { d.Confidence = -0.1 }, ErrInvalidConfidence},
		{"confidence above one", func(d *Detection) { d.Confidence = 1.5 }, ErrInvalidConfidence},
		{"negative origin", func(d *Detection) { d.Box.X1 = -1 }, ErrNegativeBoundingBoxEdge},
		{"inverted x", func(d *Detection) { d.Box.X1, d.Box.X2 = 110, 10 }, ErrInvalidBoundingBox},
		{"inverted y", func(d *Detection) { d.Box.Y1, d.Box.Y2 = 220, 20 }, ErrInvalidBoundingBox},
		{"zero-width box", func(d *Detection) { d.Box.X2 = d.Box.X1 }, ErrInvalidBoundingBox},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := valid
			tc.mutate(&d)
			if err := d.Validate(); err != tc.want {
				t.Errorf("Expected error %v, got %v", tc.want, err)
			}
		})
	}
}

func TestBoundingBoxDimensions(t *testing.T) {
	t.Parallel()

	b := BoundingBox{X1: 5, Y1: 10, X2: 25, Y2: 70}
	if b.Width() != 20 {
		t.Errorf("Expected width 20, got %d", b.Width())
	}
	if b.Height() != 60 {
		t.Errorf("Expected height 60, got %d", b.Height())
	}
}
