package model

type Notes = []uint8

// PitchClass is a note name independent of octave, 0 = C through 11 = B.
type PitchClass uint8

type Quality uint8

const (
	NoChord Quality = iota
	Major
	Minor
)

func (q Quality) String() string {
	switch q {
	case NoChord:
		return "N"
	case Major:
		return "maj"
	case Minor:
		return "min"
	}
	return "unknown"
}

type ChordLabel struct {
	Root    PitchClass
	Quality Quality
	Bass    PitchClass

	// NOTE: Bass is only meaningful when HasBass is set
	HasBass bool
}

func (l ChordLabel) IsNoChord() bool {
	return l.Quality == NoChord
}

// ChordEvent is a sustained chord. Start and Duration are in seconds.
type ChordEvent struct {
	Name     string
	Label    ChordLabel
	Start    float64
	Duration float64
	Notes    Notes
}

func (e ChordEvent) End() float64 {
	return e.Start + e.Duration
}

// ChordSequence holds one vocabulary label per analysis frame.
type ChordSequence = []string
