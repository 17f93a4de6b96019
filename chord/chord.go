package chord

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jsphweid/chordmidi/errs"
	"github.com/jsphweid/chordmidi/model"
	"github.com/pkg/errors"
)

const (
	noChordLabel = "N"
	// Harte-style "unknown / no chord" marker, treated as N
	unknownChordLabel = "X"

	qualitySep = ":"
	bassSep    = "/"
)

var pitchClassNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var naturals = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

var qualityNames = map[string]model.Quality{
	"maj":   model.Major,
	"major": model.Major,
	"min":   model.Minor,
	"minor": model.Minor,
}

func PitchClassName(pc model.PitchClass) string {
	return pitchClassNames[int(pc)%12]
}

// ParsePitchClass reads a note name such as "C", "F#" or "Bb".
func ParsePitchClass(s string) (model.PitchClass, error) {
	if s == "" {
		return 0, errors.New("empty pitch class")
	}
	base, ok := naturals[s[0]]
	if !ok {
		return 0, errors.Errorf("invalid note name %q", s)
	}
	pc := base
	for _, c := range s[1:] {
		switch c {
		case '#':
			pc++
		case 'b':
			pc--
		default:
			return 0, errors.Errorf("invalid accidental in %q", s)
		}
	}
	return model.PitchClass(((pc % 12) + 12) % 12), nil
}

// Parse turns a vocabulary label ("C:maj", "A:min/E", "N") into a ChordLabel.
// A label with no quality part is major. Any other quality is rejected.
func Parse(label string) (model.ChordLabel, error) {
	var res model.ChordLabel
	s := strings.TrimSpace(label)
	if s == "" {
		return res, errs.NewUnknownChordLabel(label, "empty label")
	}
	if s == noChordLabel || s == unknownChordLabel {
		res.Quality = model.NoChord
		return res, nil
	}

	rootQuality, bass, hasBass := strings.Cut(s, bassSep)
	if hasBass && strings.Contains(bass, bassSep) {
		return res, errs.NewUnknownChordLabel(label, "more than one bass separator")
	}

	rootName, qualityName, hasQuality := strings.Cut(rootQuality, qualitySep)
	root, err := ParsePitchClass(rootName)
	if err != nil {
		return res, errs.NewUnknownChordLabel(label, err.Error())
	}
	res.Root = root

	res.Quality = model.Major
	if hasQuality {
		q, ok := qualityNames[qualityName]
		if !ok {
			return res, errs.NewUnknownChordLabel(label, fmt.Sprintf("unsupported quality %q", qualityName))
		}
		res.Quality = q
	}

	if hasBass {
		b, err := ParsePitchClass(bass)
		if err != nil {
			return res, errs.NewUnknownChordLabel(label, "bass: "+err.Error())
		}
		res.Bass = b
		res.HasBass = true
	}
	return res, nil
}

// Format is the inverse of Parse for labels it produced.
func Format(l model.ChordLabel) string {
	if l.IsNoChord() {
		return noChordLabel
	}
	res := PitchClassName(l.Root) + qualitySep + l.Quality.String()
	if l.HasBass {
		res += bassSep + PitchClassName(l.Bass)
	}
	return res
}

func CreateChordKey(notes []uint8) string {
	sorted := append([]uint8(nil), notes...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})
	var res string
	for i, note := range sorted {
		res += fmt.Sprintf("%v", note)
		if i < len(sorted)-1 {
			res += "-"
		}
	}
	return res
}
