// Package observation scores chroma frames against every chord in a vocabulary.
package observation

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/OneOfOne/xxhash"
	"github.com/jsphweid/chordmidi/chord"
	"github.com/jsphweid/chordmidi/chroma"
	"github.com/jsphweid/chordmidi/constants"
	"github.com/jsphweid/chordmidi/errs"
	"github.com/jsphweid/chordmidi/model"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

const Version = 1

// Scorer maps chroma frames to one score row per frame.
type Scorer interface {
	Labels() []string
	Score(frames []model.ChromaFrame) (model.ObservationMatrix, error)
}

type Class struct {
	Label   string    `json:"label"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`

	// score used instead of the template when the frame is silent
	Silence float64 `json:"silence"`
}

// Model is a template model: a frame scores Scale * cos(chroma, weights) + Bias
// for each class, or the class's Silence score when the frame is quiet.
type Model struct {
	Version          int     `json:"version"`
	ChromaBins       int     `json:"chroma_bins"`
	Scale            float64 `json:"scale"`
	SilenceThreshold float64 `json:"silence_threshold"`
	Classes          []Class `json:"classes"`
}

func template(pcs ...int) []float64 {
	w := make([]float64, chroma.Bins)
	for _, pc := range pcs {
		w[pc%chroma.Bins] = 1
	}
	floats.Scale(1/floats.Norm(w, 2), w)
	return w
}

// Default builds the major/minor/no-chord model over chord.MajMin().
func Default() *Model {
	m := &Model{
		Version:          Version,
		ChromaBins:       chroma.Bins,
		Scale:            constants.ObservationScale,
		SilenceThreshold: constants.SilenceThreshold,
	}
	for _, label := range chord.MajMin() {
		l, err := chord.Parse(label)
		if err != nil {
			panic("built-in vocabulary does not parse: " + err.Error())
		}
		c := Class{Label: label}
		switch l.Quality {
		case model.NoChord:
			all := make([]int, chroma.Bins)
			for i := range all {
				all[i] = i
			}
			c.Weights = template(all...)
			c.Silence = m.Scale
		case model.Major:
			r := int(l.Root)
			c.Weights = template(r, r+4, r+7)
		case model.Minor:
			r := int(l.Root)
			c.Weights = template(r, r+3, r+7)
		}
		m.Classes = append(m.Classes, c)
	}
	return m
}

func (m *Model) Validate() error {
	if m.Version != Version {
		return errors.Wrapf(errs.ErrModelLoad, "unsupported observation model version %d", m.Version)
	}
	if m.ChromaBins != chroma.Bins {
		return errors.Wrapf(errs.ErrModelLoad, "observation model expects %d chroma bins, extractor produces %d", m.ChromaBins, chroma.Bins)
	}
	if len(m.Classes) == 0 {
		return errors.Wrap(errs.ErrModelLoad, "observation model has no classes")
	}
	if math.IsNaN(m.Scale) || math.IsInf(m.Scale, 0) || m.SilenceThreshold < 0 {
		return errors.Wrap(errs.ErrModelLoad, "observation model has invalid scale or silence threshold")
	}
	seen := make(map[string]bool)
	for i, c := range m.Classes {
		if c.Label == "" {
			return errors.Wrapf(errs.ErrModelLoad, "observation class %d has no label", i)
		}
		if seen[c.Label] {
			return errors.Wrapf(errs.ErrModelLoad, "duplicate observation class %q", c.Label)
		}
		seen[c.Label] = true
		if len(c.Weights) != m.ChromaBins {
			return errors.Wrapf(errs.ErrModelLoad, "observation class %q has %d weights, expected %d", c.Label, len(c.Weights), m.ChromaBins)
		}
		for _, v := range append([]float64{c.Bias, c.Silence}, c.Weights...) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(errs.ErrModelLoad, "observation class %q has non-finite parameters", c.Label)
			}
		}
	}
	return nil
}

func Read(r io.Reader) (*Model, error) {
	var m Model
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&m); err != nil {
		return nil, errors.Wrapf(errs.ErrModelLoad, "could not decode observation model (%v)", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrModelLoad, "could not open observation model (%v)", err)
	}
	defer f.Close()
	m, err := Read(f)
	if err != nil {
		return nil, errors.WithMessagef(err, "observation model %s", path)
	}
	return m, nil
}

func (m *Model) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(m)
}

func (m *Model) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create observation model")
	}
	if err := m.Write(f); err != nil {
		f.Close()
		return errors.Wrap(err, "write observation model")
	}
	return f.Close()
}

// Fingerprint identifies the model parameters, used to key cached results.
func (m *Model) Fingerprint() uint64 {
	data, err := json.Marshal(m)
	if err != nil {
		panic("could not marshal observation model: " + err.Error())
	}
	return xxhash.Checksum64(data)
}

func (m *Model) Labels() []string {
	res := make([]string, len(m.Classes))
	for i, c := range m.Classes {
		res[i] = c.Label
	}
	return res
}

// Score is pure: equal frames always give equal rows.
func (m *Model) Score(frames []model.ChromaFrame) (model.ObservationMatrix, error) {
	res := make(model.ObservationMatrix, len(frames))
	unit := make([]float64, m.ChromaBins)
	for i, frame := range frames {
		if len(frame) != m.ChromaBins {
			return nil, errors.Wrapf(errs.ErrFeatureShape, "frame %d has %d bins, expected %d", i, len(frame), m.ChromaBins)
		}
		row := make([]float64, len(m.Classes))
		norm := floats.Norm(frame, 2)
		if norm < m.SilenceThreshold {
			for j, c := range m.Classes {
				row[j] = c.Silence
			}
			res[i] = row
			continue
		}
		floats.ScaleTo(unit, 1/norm, frame)
		for j, c := range m.Classes {
			row[j] = m.Scale*floats.Dot(unit, c.Weights) + c.Bias
		}
		res[i] = row
	}
	return res, nil
}
