package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jsphweid/chordmidi/audio"
	"github.com/jsphweid/chordmidi/errs"
	"github.com/jsphweid/chordmidi/model"
	"github.com/jsphweid/chordmidi/pipeline"
	"github.com/jsphweid/chordmidi/util"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// request bodies larger than this are rejected
const maxUploadBytes = 64 << 20

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves chord transcription over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, closeFn, err := buildPipeline()
		if err != nil {
			return err
		}
		defer closeFn()
		return serve(cmd.Context(), serveAddr, p)
	},
}

type server struct {
	p         *pipeline.Pipeline
	log       logrus.FieldLogger
	maxUpload int64
}

func NewRouter(p *pipeline.Pipeline) http.Handler {
	return newRouter(&server{p: p, log: logger, maxUpload: maxUploadBytes})
}

func newRouter(s *server) http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/transcribe", s.handleTranscribe).Methods(http.MethodPost)
	router.HandleFunc("/chords", s.handleChords).Methods(http.MethodPost)
	router.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	return cors.Default().Handler(router)
}

func serve(ctx context.Context, addr string, p *pipeline.Pipeline) error {
	srv := &http.Server{Addr: addr, Handler: NewRouter(p), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("shutdown")
		}
	}()
	logger.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statusFor(err error) int {
	var verr *errs.ValidationError
	switch {
	case errors.Is(err, errs.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrInvalidAudio):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.WithError(err).Error("request failed")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{Error: err.Error()})
}

// saveUpload copies the multipart "file" field into a fresh directory,
// keeping the client's extension so format validation still applies. The
// returned func removes the directory.
func saveUpload(w http.ResponseWriter, r *http.Request, limit int64) (string, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		return "", noop, uploadError(err, limit)
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		return "", noop, &errs.ValidationError{Path: "file", Err: errs.ErrFileNotFound}
	}
	defer f.Close()

	name := filepath.Base(header.Filename)
	if !audio.IsAudioPath(name) {
		return "", noop, &errs.ValidationError{Path: name, Ext: filepath.Ext(name), Err: errs.ErrUnsupportedFormat}
	}

	dir := filepath.Join(os.TempDir(), "chordmidi-"+uuid.New().String())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", noop, errors.Wrap(err, "create upload dir")
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", noop, errors.Wrap(err, "create upload")
	}
	_, err = io.Copy(out, f)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", noop, errors.Wrap(err, "save upload")
	}
	return path, cleanup, nil
}

func uploadError(err error, limit int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
		return &errs.ValidationError{Path: "upload", Err: errors.Wrapf(errs.ErrUploadTooLarge, "limit is %d bytes", limit)}
	}
	return &errs.ValidationError{Path: "upload", Err: errors.Wrap(errs.ErrBadUpload, err.Error())}
}

func (s *server) transcribeUpload(w http.ResponseWriter, r *http.Request) (string, *pipeline.Result, error) {
	path, cleanup, err := saveUpload(w, r, s.maxUpload)
	if err != nil {
		return "", nil, err
	}
	defer cleanup()
	res, err := s.p.Transcribe(r.Context(), path)
	if err != nil {
		return "", nil, err
	}
	return filepath.Base(path), res, nil
}

func (s *server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	name, res, err := s.transcribeUpload(w, r)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	var buf bytes.Buffer
	if err := s.p.WriteMidi(&buf, res.Events); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(util.OutputPath(name))))
	w.Write(buf.Bytes())
}

func toResponse(res *pipeline.Result) model.ChordsResponse {
	events := make([]model.EventResult, 0, len(res.Events))
	for _, e := range res.Events {
		notes := make([]int, len(e.Notes))
		for i, n := range e.Notes {
			notes[i] = int(n)
		}
		events = append(events, model.EventResult{Chord: e.Name, Start: e.Start, Duration: e.Duration, Notes: notes})
	}
	return model.ChordsResponse{Frames: res.Frames, Hop: res.Hop, Events: events}
}

func (s *server) handleChords(w http.ResponseWriter, r *http.Request) {
	_, res, err := s.transcribeUpload(w, r)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toResponse(res))
}
