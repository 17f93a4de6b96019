package midi

import (
	"io"
	"math"
	"os"

	"github.com/jsphweid/chordmidi/constants"
	"github.com/jsphweid/chordmidi/model"
	"github.com/jsphweid/chordmidi/sequence"
	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type Options struct {
	TicksPerQuarter uint16
	Tempo           float64
	Velocity        uint8
	Channel         uint8
	TrackName       string
}

func DefaultOptions() Options {
	return Options{
		TicksPerQuarter: constants.TicksPerQuarter,
		Tempo:           constants.Tempo,
		Velocity:        constants.Velocity,
		Channel:         constants.Channel,
		TrackName:       "chords",
	}
}

func (o Options) ticksPerSecond() float64 {
	return float64(o.TicksPerQuarter) * o.Tempo / 60
}

// Build lays the events out on a single track. Times are rounded to ticks from
// absolute seconds so rounding never accumulates. Events without notes only
// advance time.
func Build(events []model.ChordEvent, opts Options) (*smf.SMF, error) {
	if err := sequence.Validate(events); err != nil {
		return nil, err
	}
	if opts.TicksPerQuarter == 0 || !(opts.Tempo > 0) || opts.Channel > 15 || opts.Velocity > 127 {
		return nil, errors.Errorf("invalid midi options %+v", opts)
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(opts.TicksPerQuarter)

	var track smf.Track
	if opts.TrackName != "" {
		track.Add(0, smf.MetaTrackSequenceName(opts.TrackName))
	}
	track.Add(0, smf.MetaTempo(opts.Tempo))

	tps := opts.ticksPerSecond()
	var cursor uint32
	for _, e := range events {
		if len(e.Notes) == 0 {
			continue
		}
		on := uint32(math.Round(e.Start * tps))
		off := uint32(math.Round(e.End() * tps))
		if on < cursor {
			on = cursor
		}
		if off <= on {
			off = on + 1
		}

		for i, n := range e.Notes {
			var delta uint32
			if i == 0 {
				delta = on - cursor
			}
			track.Add(delta, gomidi.NoteOn(opts.Channel, n, opts.Velocity))
		}
		cursor = on
		for i, n := range e.Notes {
			var delta uint32
			if i == 0 {
				delta = off - cursor
			}
			track.Add(delta, gomidi.NoteOff(opts.Channel, n))
		}
		cursor = off
	}
	track.Close(0)

	if err := s.Add(track); err != nil {
		return nil, errors.Wrap(err, "add track")
	}
	return s, nil
}

func Write(w io.Writer, events []model.ChordEvent, opts Options) error {
	s, err := Build(events, opts)
	if err != nil {
		return err
	}
	if _, err := s.WriteTo(w); err != nil {
		return errors.Wrap(err, "write midi")
	}
	return nil
}

func WriteFile(path string, events []model.ChordEvent, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create midi file")
	}
	if err := Write(f, events, opts); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
