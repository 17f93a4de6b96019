// Package errs holds the failure kinds surfaced by the transcription pipeline.
// Callers match them with errors.Is and errors.As.
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAudio       = errors.New("invalid audio")
	ErrModelLoad          = errors.New("model load failed")
	ErrFeatureShape       = errors.New("feature shape mismatch")
	ErrDecode             = errors.New("decode failed")
	ErrUnknownChordLabel  = errors.New("unknown chord label")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrFileNotFound       = errors.New("file not found")
	ErrInconsistentEvents = errors.New("inconsistent chord events")
	ErrBadUpload          = errors.New("unreadable upload")
	ErrUploadTooLarge     = errors.New("upload too large")
)

// UnknownChordLabelError names the label the mapper could not expand.
type UnknownChordLabelError struct {
	Label  string
	Reason string
}

func (e *UnknownChordLabelError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unknown chord label %q: %s", e.Label, e.Reason)
	}
	return fmt.Sprintf("unknown chord label %q", e.Label)
}

func (e *UnknownChordLabelError) Is(target error) bool {
	return target == ErrUnknownChordLabel
}

func NewUnknownChordLabel(label, reason string) *UnknownChordLabelError {
	return &UnknownChordLabelError{Label: label, Reason: reason}
}

// ValidationError is returned when an input path is rejected before decoding.
type ValidationError struct {
	Path string
	Ext  string
	Err  error
}

func (e *ValidationError) Error() string {
	if errors.Is(e.Err, ErrUnsupportedFormat) {
		return fmt.Sprintf("%v %q for %s: please provide a .wav or .mp3 file", e.Err, e.Ext, e.Path)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Path)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
