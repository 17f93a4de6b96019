package crf

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jsphweid/chordmidi/chord"
	"github.com/jsphweid/chordmidi/errs"
	"github.com/jsphweid/chordmidi/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var abc = []string{"C:maj", "A:min", "N"}

func TestViterbiFollowsObservationsWithoutPenalty(t *testing.T) {
	obs := model.ObservationMatrix{
		{5, 1, 0},
		{0, 5, 1},
		{1, 0, 5},
	}
	path, err := Viterbi(obs, Default(abc, 0))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, path)
}

func TestViterbiSmoothsShortBlips(t *testing.T) {
	obs := model.ObservationMatrix{
		{5, 0, 0},
		{5, 0, 0},
		{3, 4, 0},
		{5, 0, 0},
		{5, 0, 0},
	}
	path, err := Viterbi(obs, Default(abc, 2))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, path)
}

func TestViterbiSwitchesWhenWorthIt(t *testing.T) {
	obs := model.ObservationMatrix{
		{5, 0, 0},
		{5, 0, 0},
		{0, 5, 0},
		{0, 5, 0},
	}
	path, err := Viterbi(obs, Default(abc, 2))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1}, path)
}

func TestViterbiTieBreaksToLowerIndex(t *testing.T) {
	obs := model.ObservationMatrix{
		{1, 1, 1},
		{1, 1, 1},
	}
	path, err := Viterbi(obs, Default(abc, 1))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0}, path)

	// equal predecessors for the last frame's winner
	obs = model.ObservationMatrix{
		{2, 2, 0},
		{0, 0, 9},
	}
	path, err = Viterbi(obs, Default(abc, 1))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, path)
}

func TestViterbiIsDeterministic(t *testing.T) {
	obs := model.ObservationMatrix{{1, 2, 3}, {3, 2, 1}, {2, 2, 2}, {0, 1, 0}}
	tr := Default(abc, 0.5)
	first, err := Viterbi(obs, tr)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Viterbi(obs, tr)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestViterbiHonoursForbiddenTransitions(t *testing.T) {
	tr := Default(abc, 0)
	tr.Scores[0*3+1] = math.Inf(-1)
	obs := model.ObservationMatrix{{5, 0, 0}, {0, 5, 4}}
	path, err := Viterbi(obs, tr)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, path)
}

func TestViterbiErrors(t *testing.T) {
	tr := Default(abc, 1)
	_, err := Viterbi(nil, tr)
	assert.ErrorIs(t, err, errs.ErrDecode)

	_, err = Viterbi(model.ObservationMatrix{{1, 2}}, tr)
	assert.ErrorIs(t, err, errs.ErrDecode)

	_, err = Viterbi(model.ObservationMatrix{{1, 2, 3}}, &Transitions{Labels: abc, Initial: make([]float64, 3), Scores: make([]float64, 4)})
	assert.ErrorIs(t, err, errs.ErrDecode)

	nan := model.ObservationMatrix{{1, 2, 3}}
	nan[0][1] = math.NaN()
	_, err = Viterbi(nan, tr)
	assert.ErrorIs(t, err, errs.ErrDecode)
}

func TestDecoderEmitsVocabularyLabels(t *testing.T) {
	d, err := NewDecoder(Default(abc, 1))
	require.NoError(t, err)
	seq, err := d.Decode(model.ObservationMatrix{{0, 0, 5}, {0, 5, 0}, {0, 5, 0}})
	require.NoError(t, err)
	assert.Equal(t, model.ChordSequence{"N", "A:min", "A:min"}, seq)
	for _, l := range seq {
		_, ok := d.Vocabulary().Index(l)
		assert.True(t, ok)
	}
}

func TestTransitionsRoundTrip(t *testing.T) {
	tr := Default(chord.MajMin(), 2.5)
	tr.Initial[24] = 1
	var buf bytes.Buffer
	require.NoError(t, tr.Write(&buf))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, tr, got)
	assert.Equal(t, tr.Fingerprint(), got.Fingerprint())
}

func TestReadWithoutInitialDefaultsToZero(t *testing.T) {
	text := "# tiny\nlabels C:maj N\n0 -1\n-1 0\n"
	tr, err := Read(strings.NewReader(text))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, tr.Initial)
	assert.Equal(t, -1.0, tr.At(0, 1))
}

func TestReadRejectsMalformedFiles(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"no labels":      "0 1\n1 0\n",
		"ragged":         "labels a b\n0 1\n1\n",
		"missing row":    "labels a b\n0 1\n",
		"bad number":     "labels a b\n0 x\n1 0\n",
		"duplicate":      "labels a a\n0 1\n1 0\n",
		"labels twice":   "labels a b\nlabels a b\n0 1\n1 0\n",
		"short initial":  "labels a b\ninitial 0\n0 1\n1 0\n",
		"nan":            "labels a b\n0 NaN\n1 0\n",
		"initial before": "initial 0 0\nlabels a b\n0 1\n1 0\n",
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(text))
			assert.ErrorIs(t, err, errs.ErrModelLoad)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.txt"))
	assert.ErrorIs(t, err, errs.ErrModelLoad)

	path := filepath.Join(dir, "transitions.txt")
	require.NoError(t, Default(abc, 1).Save(path))
	tr, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, abc, tr.Labels)

	require.NoError(t, os.WriteFile(path, []byte("labels a\n0 0\n"), 0644))
	_, err = Load(path)
	assert.ErrorIs(t, err, errs.ErrModelLoad)
}
