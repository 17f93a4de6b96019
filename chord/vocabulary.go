package chord

import (
	"github.com/jsphweid/chordmidi/model"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Vocabulary is the ordered, fixed set of labels a decoder can emit.
type Vocabulary struct {
	labels []string
	index  map[string]int
}

func NewVocabulary(labels []string) (*Vocabulary, error) {
	if len(labels) == 0 {
		return nil, errors.New("vocabulary is empty")
	}
	v := &Vocabulary{
		labels: append([]string(nil), labels...),
		index:  make(map[string]int, len(labels)),
	}
	for i, l := range labels {
		if l == "" {
			return nil, errors.Errorf("vocabulary entry %d is empty", i)
		}
		if _, ok := v.index[l]; ok {
			return nil, errors.Errorf("duplicate vocabulary entry %q", l)
		}
		v.index[l] = i
	}
	return v, nil
}

// MajMin returns the 25 label major/minor vocabulary: 12 major, 12 minor, then N.
func MajMin() []string {
	res := make([]string, 0, 25)
	for _, q := range []model.Quality{model.Major, model.Minor} {
		for pc := 0; pc < 12; pc++ {
			res = append(res, Format(model.ChordLabel{Root: model.PitchClass(pc), Quality: q}))
		}
	}
	return append(res, noChordLabel)
}

func (v *Vocabulary) Len() int {
	return len(v.labels)
}

func (v *Vocabulary) Label(i int) string {
	return v.labels[i]
}

func (v *Vocabulary) Index(label string) (int, bool) {
	i, ok := v.index[label]
	return i, ok
}

func (v *Vocabulary) Labels() []string {
	return append([]string(nil), v.labels...)
}

func (v *Vocabulary) Equal(other *Vocabulary) bool {
	return slices.Equal(v.labels, other.labels)
}

// Sequence turns a decoded state path into labels.
func (v *Vocabulary) Sequence(path []int) model.ChordSequence {
	res := make(model.ChordSequence, len(path))
	for i, s := range path {
		res[i] = v.labels[s]
	}
	return res
}
