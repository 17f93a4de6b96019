package chord

import (
	"github.com/jsphweid/chordmidi/errs"
	"github.com/jsphweid/chordmidi/model"
)

const (
	// C4
	rootOctaveBase = 60
	// C3, the octave an explicit bass note is placed in
	bassOctaveBase = 48
)

// semitones above the root for each supported quality
var intervals = map[model.Quality][]uint8{
	model.NoChord: nil,
	model.Major:   {0, 4, 7},
	model.Minor:   {0, 3, 7},
}

// Pitches expands a label into MIDI note numbers in ascending order.
// No-chord expands to an empty set.
func Pitches(l model.ChordLabel) (model.Notes, error) {
	steps, ok := intervals[l.Quality]
	if !ok {
		return nil, errs.NewUnknownChordLabel(Format(l), "quality has no interval table")
	}
	if l.IsNoChord() {
		return model.Notes{}, nil
	}

	notes := make(model.Notes, 0, len(steps)+1)
	if l.HasBass && l.Bass != l.Root {
		notes = append(notes, bassOctaveBase+uint8(l.Bass))
	}
	root := rootOctaveBase + uint8(l.Root)
	for _, step := range steps {
		notes = append(notes, root+step)
	}
	return notes, nil
}

// Expand parses a label and returns its pitch set.
func Expand(label string) (model.ChordLabel, model.Notes, error) {
	l, err := Parse(label)
	if err != nil {
		return l, nil, err
	}
	notes, err := Pitches(l)
	if err != nil {
		return l, nil, err
	}
	return l, notes, nil
}
