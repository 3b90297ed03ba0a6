package artifact

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by ParseKey.
var (
	ErrNoExtension          = errors.New("object key has no file extension")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrEmptyKey             = errors.New("object key cannot be empty")
)

// supportedExtensions are the image formats the pipeline accepts,
// lowercase and without the leading dot.
var supportedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// Key is the decomposed form of an object key. Derived-artifact names are
// pure functions of the decomposition, so reprocessing a job always lands
// on the same keys.
type Key struct {
	// Base is everything before the final dot, including any directory
	// prefix ("42/uuid_photo").
	Base string

	// Ext is the lowercased extension without the dot ("jpg").
	Ext string
}

// ParseKey decomposes an object key into base and extension. The split is
// on the last dot of the last path segment, so dotted directory names and
// multi-dot filenames decompose predictably. Keys with no extension are
// rejected rather than guessed at.
func ParseKey(key string) (Key, error) {
	if key == "" {
		return Key{}, ErrEmptyKey
	}

	lastSegment := key
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		lastSegment = key[idx+1:]
	}

	dot := strings.LastIndex(lastSegment, ".")
	if dot <= 0 || dot == len(lastSegment)-1 {
		// no dot, leading dot only, or trailing dot
		return Key{}, fmt.Errorf("%w: %q", ErrNoExtension, key)
	}

	ext := strings.ToLower(lastSegment[dot+1:])
	base := key[:len(key)-(len(lastSegment)-dot)]

	return Key{Base: base, Ext: ext}, nil
}

// Validate returns ErrUnsupportedExtension unless the key's extension is
// one of the accepted image formats.
func (k Key) Validate() error {
	if !supportedExtensions[k.Ext] {
		return fmt.Errorf("%w: .%s (only jpg and png allowed)", ErrUnsupportedExtension, k.Ext)
	}
	return nil
}

// String reassembles the original key.
func (k Key) String() string {
	return k.Base + "." + k.Ext
}

// OverlayKey derives the annotated-image key: {base}_overlay.{ext}.
func (k Key) OverlayKey() string {
	return k.Base + "_overlay." + k.Ext
}

// ResultsKey derives the detections-table key: {base}_results.csv.
func (k Key) ResultsKey() string {
	return k.Base + "_results.csv"
}

// SupportedContentType reports whether an upload content type is accepted.
func SupportedContentType(contentType string) bool {
	switch contentType {
	case "image/jpeg", "image/png":
		return true
	default:
		return false
	}
}
