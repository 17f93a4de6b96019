// Package crf decodes the best chord path through per-frame observation
// scores under first-order transition scores.
package crf

import (
	"math"

	"github.com/jsphweid/chordmidi/chord"
	"github.com/jsphweid/chordmidi/errs"
	"github.com/jsphweid/chordmidi/model"
	"github.com/pkg/errors"
)

func finite(v float64) bool {
	// -Inf marks an impossible state and is allowed
	return !math.IsNaN(v) && !math.IsInf(v, 1)
}

// Viterbi returns the state path maximising initial + observation + transition
// scores. score and back are flat frames x states tables. Ties go to the lower
// state index.
func Viterbi(obs model.ObservationMatrix, t *Transitions) ([]int, error) {
	frames := len(obs)
	if frames == 0 {
		return nil, errors.Wrap(errs.ErrDecode, "no frames to decode")
	}
	n := t.N()
	if n == 0 || len(t.Scores) != n*n || len(t.Initial) != n {
		return nil, errors.Wrapf(errs.ErrDecode, "transitions are not a square matrix over %d states", n)
	}
	for f, row := range obs {
		if len(row) != n {
			return nil, errors.Wrapf(errs.ErrDecode, "frame %d has %d scores, transitions have %d states", f, len(row), n)
		}
		for _, v := range row {
			if !finite(v) {
				return nil, errors.Wrapf(errs.ErrDecode, "frame %d has a non-finite score", f)
			}
		}
	}

	score := make([]float64, frames*n)
	back := make([]int32, frames*n)
	for j := 0; j < n; j++ {
		score[j] = t.Initial[j] + obs[0][j]
	}
	for f := 1; f < frames; f++ {
		prev := score[(f-1)*n : f*n]
		cur := score[f*n : (f+1)*n]
		for j := 0; j < n; j++ {
			best := math.Inf(-1)
			arg := 0
			for i := 0; i < n; i++ {
				if s := prev[i] + t.Scores[i*n+j]; s > best {
					best = s
					arg = i
				}
			}
			cur[j] = best + obs[f][j]
			back[f*n+j] = int32(arg)
		}
	}

	last := score[(frames-1)*n:]
	end := 0
	for j := 1; j < n; j++ {
		if last[j] > last[end] {
			end = j
		}
	}
	path := make([]int, frames)
	path[frames-1] = end
	for f := frames - 1; f > 0; f-- {
		path[f-1] = int(back[f*n+path[f]])
	}
	return path, nil
}

type Decoder struct {
	transitions *Transitions
	vocab       *chord.Vocabulary
}

func NewDecoder(t *Transitions) (*Decoder, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	vocab, err := chord.NewVocabulary(t.Labels)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrModelLoad, "transitions vocabulary: %v", err)
	}
	return &Decoder{transitions: t, vocab: vocab}, nil
}

func (d *Decoder) Vocabulary() *chord.Vocabulary {
	return d.vocab
}

func (d *Decoder) Transitions() *Transitions {
	return d.transitions
}

// Decode returns one vocabulary label per observation row.
func (d *Decoder) Decode(obs model.ObservationMatrix) (model.ChordSequence, error) {
	path, err := Viterbi(obs, d.transitions)
	if err != nil {
		return nil, err
	}
	return d.vocab.Sequence(path), nil
}
