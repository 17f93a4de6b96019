package util

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/jsphweid/chordmidi/audio"
	"github.com/jsphweid/chordmidi/constants"
	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// GatherAllAudioPaths walks path and returns audio files in lexical order.
// maxNum of 0 means no limit.
func GatherAllAudioPaths(path string, maxNum int) ([]string, error) {
	var res []string
	walk := func(s string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && audio.IsAudioPath(s) {
			if maxNum == 0 || len(res) < maxNum {
				res = append(res, s)
			}
		}
		return nil
	}
	if err := filepath.WalkDir(path, walk); err != nil {
		return nil, errors.Wrapf(err, "walk %s", path)
	}
	return res, nil
}

// OutputPath derives the MIDI path for an input: same directory and base
// name, with the chords suffix and .mid extension.
func OutputPath(input string) string {
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + constants.OutputSuffix + constants.MidiExt
}

func GetKeys[A constraints.Ordered, B any](m map[A]B) []A {
	keys := make([]A, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
