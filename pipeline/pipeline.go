// Package pipeline wires the stages of chord transcription together:
// validate, load, extract chroma, score, decode, map and sequence.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/jsphweid/chordmidi/audio"
	"github.com/jsphweid/chordmidi/cache"
	"github.com/jsphweid/chordmidi/chroma"
	"github.com/jsphweid/chordmidi/constants"
	"github.com/jsphweid/chordmidi/crf"
	"github.com/jsphweid/chordmidi/errs"
	"github.com/jsphweid/chordmidi/midi"
	"github.com/jsphweid/chordmidi/model"
	"github.com/jsphweid/chordmidi/observation"
	"github.com/jsphweid/chordmidi/sequence"
	"github.com/jsphweid/chordmidi/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Chroma  chroma.Config
	NoChord sequence.NoChordPolicy
	Midi    midi.Options
}

func DefaultConfig() Config {
	return Config{
		Chroma:  chroma.DefaultConfig(),
		NoChord: sequence.DropNoChord,
		Midi:    midi.DefaultOptions(),
	}
}

// Options carries the collaborators. Nil fields get the built-in defaults.
type Options struct {
	Loader      audio.Loader
	Observation observation.Scorer
	Transitions *crf.Transitions
	Cache       *cache.Cache
	Logger      logrus.FieldLogger
}

type fingerprinter interface {
	Fingerprint() uint64
}

// Pipeline is read-only after New and may be shared between goroutines.
type Pipeline struct {
	cfg       Config
	loader    audio.Loader
	extractor *chroma.Extractor
	scorer    observation.Scorer
	decoder   *crf.Decoder
	cache     *cache.Cache
	settings  uint64
	log       logrus.FieldLogger
}

type Result struct {
	Labels model.ChordSequence
	Events []model.ChordEvent
	// seconds per frame
	Hop    float64
	Frames int
	Cached bool
}

func New(cfg Config, opts Options) (*Pipeline, error) {
	extractor, err := chroma.New(cfg.Chroma)
	if err != nil {
		return nil, errors.Wrap(err, "chroma config")
	}

	p := &Pipeline{
		cfg:       cfg,
		loader:    opts.Loader,
		extractor: extractor,
		scorer:    opts.Observation,
		cache:     opts.Cache,
		log:       opts.Logger,
	}
	if p.loader == nil {
		p.loader = audio.NewDefaultLoader()
	}
	if p.scorer == nil {
		p.scorer = observation.Default()
	}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}
	transitions := opts.Transitions
	if transitions == nil {
		transitions = crf.Default(p.scorer.Labels(), constants.SwitchPenalty)
	}

	p.decoder, err = crf.NewDecoder(transitions)
	if err != nil {
		return nil, err
	}
	if err := checkCompatible(p.scorer.Labels(), transitions.Labels); err != nil {
		return nil, err
	}

	if p.cache != nil {
		fp, ok := p.scorer.(fingerprinter)
		if !ok {
			p.log.Warn("observation model has no fingerprint, caching disabled")
			p.cache = nil
		} else {
			p.settings = settingsFingerprint(cfg, fp.Fingerprint(), transitions.Fingerprint())
		}
	}
	return p, nil
}

func checkCompatible(observed []string, states []string) error {
	if len(observed) != len(states) {
		return errors.Wrapf(errs.ErrDecode, "observation model scores %d classes but transitions define %d states", len(observed), len(states))
	}
	for i := range observed {
		if observed[i] != states[i] {
			return errors.Wrapf(errs.ErrModelLoad, "class %d is %q in the observation model but %q in the transitions", i, observed[i], states[i])
		}
	}
	return nil
}

func settingsFingerprint(cfg Config, observationFP uint64, transitionsFP uint64) uint64 {
	s := fmt.Sprintf("%+v|%d|%x|%x", cfg.Chroma, cfg.NoChord, observationFP, transitionsFP)
	return xxhash.ChecksumString64(s)
}

func (p *Pipeline) Config() Config {
	return p.cfg
}

func (p *Pipeline) Vocabulary() []string {
	return p.decoder.Vocabulary().Labels()
}

// Detect runs everything after loading: waveform in, chord events out.
func (p *Pipeline) Detect(w model.Waveform) (*Result, error) {
	start := time.Now()
	frames, err := p.extractor.Extract(w)
	if err != nil {
		return nil, err
	}
	obs, err := p.scorer.Score(frames)
	if err != nil {
		return nil, err
	}
	if len(obs) != len(frames) {
		return nil, errors.Wrapf(errs.ErrFeatureShape, "observation model returned %d rows for %d frames", len(obs), len(frames))
	}
	labels, err := p.decoder.Decode(obs)
	if err != nil {
		return nil, err
	}
	if len(labels) != len(frames) {
		return nil, errors.Wrapf(errs.ErrDecode, "decoded %d labels for %d frames", len(labels), len(frames))
	}

	res, err := p.sequence(labels, p.extractor.HopDuration(w.SampleRate))
	if err != nil {
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"seconds": w.Duration(),
		"frames":  res.Frames,
		"events":  len(res.Events),
		"elapsed": time.Since(start),
	}).Debug("detected chords")
	return res, nil
}

func (p *Pipeline) sequence(labels model.ChordSequence, hop float64) (*Result, error) {
	events, err := sequence.Merge(labels, sequence.Config{Hop: hop, NoChord: p.cfg.NoChord})
	if err != nil {
		return nil, err
	}
	if err := sequence.Validate(events); err != nil {
		return nil, err
	}
	return &Result{Labels: labels, Events: events, Hop: hop, Frames: len(labels)}, nil
}

func (p *Pipeline) cacheKey(path string) []byte {
	if p.cache == nil {
		return nil
	}
	key, err := cache.KeyForFile(path, p.settings)
	if err != nil {
		p.log.WithError(err).Warn("skipping cache")
		return nil
	}
	return key
}

func (p *Pipeline) fromCache(key []byte) *Result {
	if key == nil {
		return nil
	}
	entry, ok, err := p.cache.Get(key)
	if err != nil {
		p.log.WithError(err).Warn("cache lookup failed")
		return nil
	}
	if !ok {
		return nil
	}
	res, err := p.sequence(entry.Labels, entry.Hop)
	if err != nil {
		p.log.WithError(err).Warn("ignoring unusable cache entry")
		return nil
	}
	res.Cached = true
	return res
}

// Transcribe validates and decodes one audio file.
func (p *Pipeline) Transcribe(ctx context.Context, path string) (*Result, error) {
	log := p.log.WithField("path", path)
	if _, err := audio.ValidateInput(path); err != nil {
		return nil, err
	}

	key := p.cacheKey(path)
	if res := p.fromCache(key); res != nil {
		log.Debug("using cached chords")
		return res, nil
	}

	w, err := p.loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"samples": len(w.Samples), "rate": w.SampleRate}).Debug("loaded audio")

	res, err := p.Detect(w)
	if err != nil {
		return nil, errors.WithMessage(err, filepath.Base(path))
	}

	if key != nil {
		if err := p.cache.Put(key, cache.Entry{Labels: res.Labels, Hop: res.Hop}); err != nil {
			log.WithError(err).Warn("could not cache chords")
		}
	}
	return res, nil
}

func (p *Pipeline) WriteMidi(w io.Writer, events []model.ChordEvent) error {
	return midi.Write(w, events, p.cfg.Midi)
}

// writeAtomic writes to a temporary file beside out and renames it into
// place, so a failed run never leaves a partial file.
func (p *Pipeline) writeAtomic(out string, events []model.ChordEvent) error {
	tmp, err := os.CreateTemp(filepath.Dir(out), ".chordmidi-*.mid")
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	defer os.Remove(tmp.Name())

	if err := p.WriteMidi(tmp, events); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close output")
	}
	return errors.Wrap(os.Rename(tmp.Name(), out), "move output into place")
}

// Run transcribes input and writes the MIDI file next to it, returning its path.
func (p *Pipeline) Run(ctx context.Context, input string) (string, *Result, error) {
	res, err := p.Transcribe(ctx, input)
	if err != nil {
		return "", nil, err
	}
	out := util.OutputPath(input)
	if err := p.writeAtomic(out, res.Events); err != nil {
		return "", nil, err
	}
	p.log.WithFields(logrus.Fields{"path": input, "output": out, "events": len(res.Events)}).Info("wrote chords")
	return out, res, nil
}
