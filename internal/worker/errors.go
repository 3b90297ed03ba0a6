package worker

import (
	"errors"
	"fmt"
)

// Pipeline stage names, recorded in failure reasons so a failed job tells
// you where it died without digging through logs.
const (
	StageValidate = "validate"
	StageDownload = "download"
	StageDetect   = "detect"
	StageAnnotate = "annotate"
	StageUpload   = "upload"
)

// PipelineError wraps an error from a specific pipeline stage.
type PipelineError struct {
	Stage string
	Err   error
}

// Error implements the error interface for PipelineError.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &PipelineError{Stage: stage, Err: err}
}

// failureReason renders an error into the string stored on the job record.
func failureReason(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return err.Error()
}
