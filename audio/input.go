package audio

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jsphweid/chordmidi/constants"
	"github.com/jsphweid/chordmidi/errs"
	"golang.org/x/exp/slices"
)

type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatUnknown Format = "unknown"
)

func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return FormatWAV
	case ".mp3":
		return FormatMP3
	}
	return FormatUnknown
}

func IsAudioPath(path string) bool {
	return slices.Contains(constants.AudioExts, strings.ToLower(filepath.Ext(path)))
}

// ValidateInput checks that path is an existing file with an allowed extension.
// It does not look inside the file.
func ValidateInput(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return FormatUnknown, &errs.ValidationError{Path: path, Ext: ext, Err: errs.ErrFileNotFound}
	}
	if err != nil {
		return FormatUnknown, &errs.ValidationError{Path: path, Ext: ext, Err: err}
	}
	if info.IsDir() {
		return FormatUnknown, &errs.ValidationError{Path: path, Ext: ext, Err: errs.ErrFileNotFound}
	}
	if !IsAudioPath(path) {
		return FormatUnknown, &errs.ValidationError{Path: path, Ext: ext, Err: errs.ErrUnsupportedFormat}
	}
	return FormatOf(path), nil
}
