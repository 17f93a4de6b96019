package chord

import (
	"github.com/jsphweid/chordmidi/model"
	"golang.org/x/exp/slices"
)

// Identify finds the label whose expansion is exactly notes, trying every
// supported root, quality and bass. Used when reading chord files back.
func Identify(notes model.Notes) (model.ChordLabel, bool) {
	if len(notes) == 0 {
		return model.ChordLabel{Quality: model.NoChord}, true
	}
	sorted := append(model.Notes(nil), notes...)
	slices.Sort(sorted)

	for _, q := range []model.Quality{model.Major, model.Minor} {
		for root := 0; root < 12; root++ {
			l := model.ChordLabel{Root: model.PitchClass(root), Quality: q}
			if matches(l, sorted) {
				return l, true
			}
			for bass := 0; bass < 12; bass++ {
				if bass == root {
					continue
				}
				l.Bass = model.PitchClass(bass)
				l.HasBass = true
				if matches(l, sorted) {
					return l, true
				}
			}
		}
	}
	return model.ChordLabel{}, false
}

func matches(l model.ChordLabel, sorted model.Notes) bool {
	notes, err := Pitches(l)
	return err == nil && slices.Equal(notes, sorted)
}
