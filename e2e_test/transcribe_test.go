//go:build e2e
// +build e2e

package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jsphweid/chordmidi/audio"
	"github.com/jsphweid/chordmidi/cmd"
	"github.com/jsphweid/chordmidi/midi"
	"github.com/jsphweid/chordmidi/model"
	"github.com/jsphweid/chordmidi/pipeline"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sr = 22050

var wavPath string

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "chordmidi-e2e")
	if err != nil {
		panic(err.Error())
	}
	wavPath = filepath.Join(dir, "progression.wav")
	if err := audio.WriteWAV(wavPath, progression()); err != nil {
		panic(err.Error())
	}

	exitVal := m.Run()

	os.RemoveAll(dir)
	os.Exit(exitVal)
}

func triad(root int, third int) model.Waveform {
	return audio.Synthesize(sr, 2, audio.MidiToFreq(root), audio.MidiToFreq(root+third), audio.MidiToFreq(root+7))
}

// C major, A minor, F major, G major, then silence
func progression() model.Waveform {
	return audio.Concat(triad(60, 4), triad(57, 3), triad(65, 4), triad(55, 4), audio.Silence(sr, 1))
}

func newPipeline(t *testing.T) *pipeline.Pipeline {
	l := logrus.New()
	l.SetOutput(io.Discard)
	p, err := pipeline.New(pipeline.DefaultConfig(), pipeline.Options{Logger: l})
	require.NoError(t, err)
	return p
}

func names(events []model.ChordEvent) []string {
	var res []string
	for _, e := range events {
		res = append(res, e.Name)
	}
	return res
}

func TestProgressionToMidiFile(t *testing.T) {
	out, res, err := newPipeline(t).Run(context.Background(), wavPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"C:maj", "A:min", "F:maj", "G:maj"}, names(res.Events))

	s, err := midi.ReadMidiFile(out)
	require.NoError(t, err)
	read := midi.ReadChordEvents(s)
	require.Len(t, read, len(res.Events))
	for i := range read {
		assert.Equal(t, res.Events[i].Notes, read[i].Notes)
		assert.InDelta(t, res.Events[i].Start, read[i].Start, 0.01)
		assert.InDelta(t, res.Events[i].Duration, read[i].Duration, 0.01)
	}
}

func TestProgressionOverHTTP(t *testing.T) {
	srv := httptest.NewServer(cmd.NewRouter(newPipeline(t)))
	defer srv.Close()

	data, err := os.ReadFile(wavPath)
	require.NoError(t, err)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "progression.wav")
	require.NoError(t, err)
	fw.Write(data)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/chords", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var chords model.ChordsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&chords))
	assert.Equal(t, 90, chords.Frames)
	var got []string
	for _, e := range chords.Events {
		got = append(got, e.Chord)
	}
	assert.Equal(t, []string{"C:maj", "A:min", "F:maj", "G:maj"}, got)
}
