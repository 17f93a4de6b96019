// Package sequence turns per-frame chord labels into sustained chord events.
package sequence

import (
	"math"

	"github.com/jsphweid/chordmidi/chord"
	"github.com/jsphweid/chordmidi/constants"
	"github.com/jsphweid/chordmidi/errs"
	"github.com/jsphweid/chordmidi/model"
	"github.com/pkg/errors"
)

// NoChordPolicy decides what happens to runs of no-chord frames.
type NoChordPolicy int

const (
	// DropNoChord emits nothing for no-chord runs; later events keep their times.
	DropNoChord NoChordPolicy = iota
	// SilenceEvents emits an event with no notes for each no-chord run.
	SilenceEvents
)

// tolerance for float rounding when checking event timing
const timeEpsilon = 1e-9

type Config struct {
	// seconds per frame
	Hop     float64
	NoChord NoChordPolicy
}

func DefaultConfig() Config {
	return Config{Hop: constants.HopDuration, NoChord: DropNoChord}
}

// Merge collapses maximal runs of identical labels into one event each.
// Run [i, j] starts at i*hop and lasts (j-i+1)*hop.
func Merge(seq model.ChordSequence, cfg Config) ([]model.ChordEvent, error) {
	if !(cfg.Hop > 0) || math.IsInf(cfg.Hop, 1) {
		return nil, errors.Errorf("hop must be positive, got %v", cfg.Hop)
	}

	events := make([]model.ChordEvent, 0)
	for i := 0; i < len(seq); {
		j := i
		for j+1 < len(seq) && seq[j+1] == seq[i] {
			j++
		}

		label, notes, err := chord.Expand(seq[i])
		if err != nil {
			return nil, errors.WithMessagef(err, "frame %d", i)
		}
		if !label.IsNoChord() || cfg.NoChord == SilenceEvents {
			start := float64(i) * cfg.Hop
			end := float64(j+1) * cfg.Hop
			events = append(events, model.ChordEvent{
				Name:     seq[i],
				Label:    label,
				Start:    start,
				Duration: end - start,
				Notes:    notes,
			})
		}
		i = j + 1
	}
	return events, nil
}

// Expand re-creates per-frame labels from events. Frames not covered by an
// event are no-chord.
func Expand(events []model.ChordEvent, hop float64, frames int) model.ChordSequence {
	res := make(model.ChordSequence, frames)
	for i := range res {
		res[i] = chord.Format(model.ChordLabel{Quality: model.NoChord})
	}
	for _, e := range events {
		from := int(math.Round(e.Start / hop))
		to := int(math.Round(e.End() / hop))
		for f := from; f < to && f < frames; f++ {
			if f >= 0 {
				res[f] = e.Name
			}
		}
	}
	return res
}

// Validate checks the contract handed to the serializer: non-negative
// durations, non-decreasing starts and no overlap.
func Validate(events []model.ChordEvent) error {
	for i, e := range events {
		if e.Start < 0 || e.Duration < 0 {
			return errors.Wrapf(errs.ErrInconsistentEvents, "event %d has negative start or duration", i)
		}
		if i == 0 {
			continue
		}
		prev := events[i-1]
		if e.Start < prev.Start {
			return errors.Wrapf(errs.ErrInconsistentEvents, "event %d starts before event %d", i, i-1)
		}
		if prev.End() > e.Start+timeEpsilon {
			return errors.Wrapf(errs.ErrInconsistentEvents, "event %d overlaps event %d", i-1, i)
		}
	}
	return nil
}
