package midi

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/jsphweid/chordmidi/chord"
	"github.com/jsphweid/chordmidi/model"
	"gitlab.com/gomidi/midi/v2/smf"
	"golang.org/x/exp/slices"
)

func ReadMidiFile(filepath string) (s *smf.SMF, e error) {
	var blank smf.SMF

	// handle panics
	// https://github.com/gomidi/midi/issues/20
	defer func() {
		if r, ok := recover().(string); ok {
			s = &blank
			e = errors.New(r)
		}
	}()

	dat, err := os.ReadFile(filepath)
	if err != nil {
		errText := fmt.Sprintf("Error reading midi file... %s", err.Error())
		return &blank, errors.New(errText)
	}
	res, err := smf.ReadFrom(bytes.NewReader(dat))
	if err != nil {
		errText := fmt.Sprintf("Error parsing midi file... %s", err.Error())
		return &blank, errors.New(errText)
	}

	return res, nil
}

type reducedEvent struct {
	// microseconds from the start of the file
	offset    int64
	isNoteOff bool
	note      uint8
}

func reduceEvents(s *smf.SMF) []reducedEvent {
	var res []reducedEvent
	for _, events := range s.Tracks {
		var absTicks int64
		for _, event := range events {
			absTicks += int64(event.Delta)
			absTime := s.TimeAt(absTicks)
			var channel, key, velocity uint8
			switch {
			case event.Message.GetNoteOn(&channel, &key, &velocity):
				res = append(res, reducedEvent{offset: absTime, isNoteOff: velocity == 0, note: key})
			case event.Message.GetNoteOff(&channel, &key, &velocity):
				res = append(res, reducedEvent{offset: absTime, isNoteOff: true, note: key})
			}
		}
	}

	// prioritize smaller offset values then note off
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].offset != res[j].offset {
			return res[i].offset < res[j].offset
		}
		return res[i].isNoteOff && !res[j].isNoteOff
	})
	return res
}

func sortedNotes(pressed map[uint8]bool) model.Notes {
	notes := make(model.Notes, 0, len(pressed))
	for n := range pressed {
		notes = append(notes, n)
	}
	slices.Sort(notes)
	return notes
}

// ReadChordEvents rebuilds chord events from note on/off state: a new event
// starts whenever the set of sounding notes changes.
func ReadChordEvents(s *smf.SMF) []model.ChordEvent {
	var res []model.ChordEvent
	events := reduceEvents(s)
	pressed := make(map[uint8]bool)

	var current model.Notes
	var currentStart int64
	for i := 0; i < len(events); {
		offset := events[i].offset
		for ; i < len(events) && events[i].offset == offset; i++ {
			if events[i].isNoteOff {
				delete(pressed, events[i].note)
			} else {
				pressed[events[i].note] = true
			}
		}

		notes := sortedNotes(pressed)
		if slices.Equal(notes, current) {
			continue
		}
		if len(current) > 0 {
			res = append(res, newEvent(current, currentStart, offset))
		}
		current = notes
		currentStart = offset
	}
	return res
}

func newEvent(notes model.Notes, startMicros, endMicros int64) model.ChordEvent {
	name := chord.CreateChordKey(notes)
	e := model.ChordEvent{
		Name:     name,
		Start:    float64(startMicros) / 1e6,
		Duration: float64(endMicros-startMicros) / 1e6,
		Notes:    notes,
	}
	if label, ok := chord.Identify(notes); ok {
		e.Name = chord.Format(label)
		e.Label = label
	}
	return e
}
