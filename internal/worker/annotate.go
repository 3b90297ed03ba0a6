package worker

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/visionforge/detect-api/internal/domain"
)

// csvHeader is the fixed first row of every detections table.
var csvHeader = []string{"label", "confidence", "x1", "y1", "x2", "y2"}

// boxColor is the annotation color for boxes and captions.
var boxColor = color.NRGBA{G: 255, A: 255}

// boxThickness is the border width of drawn bounding boxes in pixels.
const boxThickness = 2

// Annotate draws each detection's bounding box and a label+confidence
// caption onto a copy of the image. The source image is never modified;
// with zero detections the result is a visual copy.
func Annotate(src image.Image, detections []domain.Detection) *image.NRGBA {
	img := imaging.Clone(src)

	for _, det := range detections {
		drawBox(img, det.Box)
		drawCaption(img, det)
	}

	return img
}

// drawBox draws the four borders of a bounding box, clamped to the image.
func drawBox(img *image.NRGBA, box domain.BoundingBox) {
	bounds := img.Bounds()

	fill := func(x1, y1, x2, y2 int) {
		for y := max(y1, bounds.Min.Y); y < min(y2, bounds.Max.Y); y++ {
			for x := max(x1, bounds.Min.X); x < min(x2, bounds.Max.X); x++ {
				img.SetNRGBA(x, y, boxColor)
			}
		}
	}

	fill(box.X1, box.Y1, box.X2, box.Y1+boxThickness)             // top
	fill(box.X1, box.Y2-boxThickness, box.X2, box.Y2)             // bottom
	fill(box.X1, box.Y1, box.X1+boxThickness, box.Y2)             // left
	fill(box.X2-boxThickness, box.Y1, box.X2, box.Y2)             // right
}

// drawCaption renders "label 0.87" just above the box, or inside its top
// edge when the box touches the top of the image.
func drawCaption(img *image.NRGBA, det domain.Detection) {
	caption := fmt.Sprintf("%s %.2f", det.Label, det.Confidence)

	y := det.Box.Y1 - 4
	if y < basicfont.Face7x13.Height {
		y = det.Box.Y1 + basicfont.Face7x13.Height
	}

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(boxColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(det.Box.X1, y),
	}
	drawer.DrawString(caption)
}

// RenderCSV builds the detections table: a fixed header row followed by
// one row per detection with confidence rounded to 3 decimals and integer
// pixel coordinates.
func RenderCSV(detections []domain.Detection) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for _, det := range detections {
		row := []string{
			det.Label,
			strconv.FormatFloat(det.Confidence, 'f', 3, 64),
			strconv.Itoa(det.Box.X1),
			strconv.Itoa(det.Box.Y1),
			strconv.Itoa(det.Box.X2),
			strconv.Itoa(det.Box.Y2),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return buf.Bytes(), nil
}
