package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jsphweid/chordmidi/audio"
	"github.com/jsphweid/chordmidi/crf"
	"github.com/jsphweid/chordmidi/midi"
	"github.com/jsphweid/chordmidi/model"
	"github.com/jsphweid/chordmidi/observation"
	"github.com/jsphweid/chordmidi/pipeline"
	"github.com/jsphweid/chordmidi/util"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"
)

const sr = 22050

func init() {
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.PanicLevel)
}

func testPipeline(t *testing.T) *pipeline.Pipeline {
	p, err := pipeline.New(pipeline.DefaultConfig(), pipeline.Options{Logger: logger})
	require.NoError(t, err)
	return p
}

func cMajorWAV(t *testing.T) []byte {
	path := filepath.Join(t.TempDir(), "c.wav")
	triad := audio.Synthesize(sr, 1, audio.MidiToFreq(60), audio.MidiToFreq(64), audio.MidiToFreq(67))
	require.NoError(t, audio.WriteWAV(path, audio.Concat(triad, audio.Silence(sr, 1))))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func uploadRequest(t *testing.T, target, filename string, data []byte) *http.Request {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter(testPipeline(t)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestChordsEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter(testPipeline(t)).ServeHTTP(w, uploadRequest(t, "/chords", "song.wav", cMajorWAV(t)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res model.ChordsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 20, res.Frames)
	assert.InDelta(t, 0.1, res.Hop, 1e-9)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "C:maj", res.Events[0].Chord)
	assert.Equal(t, 0.0, res.Events[0].Start)
	assert.Equal(t, []int{60, 64, 67}, res.Events[0].Notes)
}

func TestTranscribeEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	NewRouter(testPipeline(t)).ServeHTTP(w, uploadRequest(t, "/transcribe", "song.wav", cMajorWAV(t)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "audio/midi", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "song_chords.mid")

	s, err := smf.ReadFrom(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	events := midi.ReadChordEvents(s)
	require.Len(t, events, 1)
	assert.Equal(t, model.Notes{60, 64, 67}, events[0].Notes)
}

func TestUploadErrors(t *testing.T) {
	router := NewRouter(testPipeline(t))

	t.Run("unsupported extension", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, "/chords", "notes.txt", []byte("hello")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		var res model.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Contains(t, res.Error, ".wav or .mp3")
	})

	t.Run("missing file field", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/chords", bytes.NewReader(nil))
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		var res model.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Contains(t, res.Error, "unreadable upload")
	})

	t.Run("body over the limit", func(t *testing.T) {
		small := newRouter(&server{p: testPipeline(t), log: logger, maxUpload: 1024})
		w := httptest.NewRecorder()
		small.ServeHTTP(w, uploadRequest(t, "/chords", "song.wav", cMajorWAV(t)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		var res model.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Contains(t, res.Error, "upload too large")
	})

	t.Run("undecodable audio", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, uploadRequest(t, "/transcribe", "broken.wav", []byte("not a wav file at all")))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/chords", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestCollectPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.wav", "a.mp3", "skip.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	paths, err := collectPaths([]string{dir, "missing.wav"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.mp3"), filepath.Join(dir, "b.wav"), "missing.wav"}, paths)
}

func TestWatcherScan(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.wav")
	require.NoError(t, os.WriteFile(first, []byte("x"), 0644))

	w := newWatcher(dir)
	changed, err := w.scan()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{first}, w.take())

	changed, err = w.scan()
	require.NoError(t, err)
	assert.False(t, changed, "unchanged files are not queued twice")
	assert.Empty(t, w.take())

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(first, later, later))
	changed, err = w.scan()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{first}, w.take())

	// an output newer than its input means the file was already handled
	done := filepath.Join(dir, "done.wav")
	require.NoError(t, os.WriteFile(done, []byte("x"), 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(done, past, past))
	require.NoError(t, os.WriteFile(util.OutputPath(done), nil, 0644))
	changed, err = w.scan()
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestExportModels(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	obsPath, transPath, err := exportModels(dir, 3)
	require.NoError(t, err)

	obs, err := observation.Load(obsPath)
	require.NoError(t, err)
	assert.Equal(t, observation.Default().Labels(), obs.Labels())

	trans, err := crf.Load(transPath)
	require.NoError(t, err)
	assert.Equal(t, obs.Labels(), trans.Labels)
	assert.Equal(t, -3.0, trans.At(0, 1))
	assert.Equal(t, 0.0, trans.At(1, 1))
}

func TestBuildPipelineFromExportedModels(t *testing.T) {
	dir := t.TempDir()
	obsPath, transPath, err := exportModels(dir, 2)
	require.NoError(t, err)

	observationPath, transitionsPath, cacheDir = obsPath, transPath, filepath.Join(dir, "cache")
	hopDuration, windowDuration = 0.1, 0.186
	defer func() { observationPath, transitionsPath, cacheDir = "", "", "" }()

	p, closeFn, err := buildPipeline()
	require.NoError(t, err)
	defer closeFn()
	assert.Len(t, p.Vocabulary(), 25)
}
