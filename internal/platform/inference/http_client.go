// Package inference provides the HTTP client for the external detection
// service. The image is posted as multipart form data; the service
// responds with JSON detections.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/visionforge/detect-api/internal/config"
	"github.com/visionforge/detect-api/internal/domain"
)

// HTTPDetector implements inference.Detector against a remote detection
// service endpoint.
type HTTPDetector struct {
	url          string
	modelName    string
	modelVersion string
	client       *http.Client
}

// NewHTTPDetector creates a detector client from configuration. The
// configured timeout bounds each detection call end to end.
func NewHTTPDetector(cfg config.InferenceConfig) *HTTPDetector {
	return &HTTPDetector{
		url:          cfg.URL,
		modelName:    cfg.ModelName,
		modelVersion: cfg.ModelVersion,
		client:       &http.Client{Timeout: cfg.Timeout},
	}
}

// ModelInfo returns the configured model name and version.
func (d *HTTPDetector) ModelInfo() (string, string) {
	return d.modelName, d.modelVersion
}

// detectResponse is the wire format of the detection service.
type detectResponse struct {
	Detections []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		X1         int     `json:"x1"`
		Y1         int     `json:"y1"`
		X2         int     `json:"x2"`
		Y2         int     `json:"y2"`
	} `json:"detections"`
}

// Detect posts the image to the detection service and decodes the result.
func (d *HTTPDetector) Detect(ctx context.Context, image []byte, filename string) ([]domain.Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}

	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status %d", resp.StatusCode)
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	detections := make([]domain.Detection, 0, len(result.Detections))
	for _, raw := range result.Detections {
		det := domain.Detection{
			Label:      raw.Label,
			Confidence: raw.Confidence,
			Box:        domain.BoundingBox{X1: raw.X1, Y1: raw.Y1, X2: raw.X2, Y2: raw.Y2},
		}
		if err := det.Validate(); err != nil {
			return nil, fmt.Errorf("invalid detection from engine: %w", err)
		}
		detections = append(detections, det)
	}

	return detections, nil
}
