package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/visionforge/detect-api/internal/artifact"
	"github.com/visionforge/detect-api/internal/inference"
	"github.com/visionforge/detect-api/internal/platform/logger"
	"github.com/visionforge/detect-api/internal/queue"
)

// Pipeline drives one job through download, detection, annotation and
// artifact upload. It holds no per-job state; a single Pipeline is shared
// by all consumers and each Execute call keeps its temporary resources
// private to that attempt.
type Pipeline struct {
	artifacts artifact.Store
	detector  inference.Detector
	tempDir   string
}

// NewPipeline creates a Pipeline. tempDir may be empty to use the system
// temp directory.
func NewPipeline(artifacts artifact.Store, detector inference.Detector, tempDir string) *Pipeline {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Pipeline{
		artifacts: artifacts,
		detector:  detector,
		tempDir:   tempDir,
	}
}

// Result reports where a completed run put its artifacts and how many
// detections the engine returned.
type Result struct {
	OverlayKey     string
	ResultsKey     string
	DetectionCount int
}

// Execute runs the full pipeline for one queue message. Artifact keys are
// derived deterministically from the source key, so re-executing the same
// message overwrites the previous attempt's outputs instead of adding new
// ones. All temporary files are removed on every exit path.
func (p *Pipeline) Execute(ctx context.Context, msg queue.Message) (*Result, error) {
	log := logger.FromContext(ctx)

	// Stage 1: validate the object key before touching anything.
	key, err := artifact.ParseKey(msg.ObjectKey)
	if err != nil {
		return nil, stageErr(StageValidate, err)
	}
	if err := key.Validate(); err != nil {
		return nil, stageErr(StageValidate, err)
	}

	// Scoped workspace for this attempt; the job ID in the prefix keeps
	// concurrent jobs from ever sharing paths.
	workDir, err := os.MkdirTemp(p.tempDir, fmt.Sprintf("job-%d-", msg.JobID))
	if err != nil {
		return nil, stageErr(StageDownload, fmt.Errorf("create temp dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Error("failed to clean up job workspace", "dir", workDir, "error", err)
		}
	}()

	// Stage 2: local copy of the source image.
	sourcePath := filepath.Join(workDir, "source."+key.Ext)
	if err := p.download(ctx, msg.ObjectKey, sourcePath); err != nil {
		return nil, stageErr(StageDownload, err)
	}

	imageData, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, stageErr(StageDownload, fmt.Errorf("read local copy: %w", err))
	}

	// Stage 3: run detection. Zero detections is a valid outcome.
	detections, err := p.detector.Detect(ctx, imageData, filepath.Base(msg.ObjectKey))
	if err != nil {
		return nil, stageErr(StageDetect, err)
	}

	// Stage 4: decode, draw, and build the detections table.
	src, err := imaging.Decode(bytes.NewReader(imageData))
	if err != nil {
		return nil, stageErr(StageAnnotate, fmt.Errorf("decode image: %w", err))
	}

	annotated := Annotate(src, detections)

	csvData, err := RenderCSV(detections)
	if err != nil {
		return nil, stageErr(StageAnnotate, err)
	}

	// Stage 5: encode the overlay in the source format.
	format, err := imaging.FormatFromExtension(key.Ext)
	if err != nil {
		return nil, stageErr(StageAnnotate, fmt.Errorf("format for .%s: %w", key.Ext, err))
	}

	var overlayBuf bytes.Buffer
	if err := imaging.Encode(&overlayBuf, annotated, format); err != nil {
		return nil, stageErr(StageAnnotate, fmt.Errorf("encode overlay: %w", err))
	}

	// Stage 6: upload overlay then csv at the derived keys.
	overlayKey := key.OverlayKey()
	resultsKey := key.ResultsKey()

	overlayType := "image/jpeg"
	if format == imaging.PNG {
		overlayType = "image/png"
	}

	if err := p.artifacts.Put(ctx, overlayKey, bytes.NewReader(overlayBuf.Bytes()),
		int64(overlayBuf.Len()), overlayType); err != nil {
		return nil, stageErr(StageUpload, fmt.Errorf("upload overlay: %w", err))
	}

	if err := p.artifacts.Put(ctx, resultsKey, bytes.NewReader(csvData),
		int64(len(csvData)), "text/csv"); err != nil {
		return nil, stageErr(StageUpload, fmt.Errorf("upload results: %w", err))
	}

	return &Result{
		OverlayKey:     overlayKey,
		ResultsKey:     resultsKey,
		DetectionCount: len(detections),
	}, nil
}

// download streams the object at key into a local file.
func (p *Pipeline) download(ctx context.Context, key, dest string) error {
	r, err := p.artifacts.Get(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create local copy: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return fmt.Errorf("download %q: %w", key, err)
	}

	return f.Close()
}
