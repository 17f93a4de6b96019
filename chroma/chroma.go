// Package chroma folds short-time spectra of a waveform into 12 pitch-class bins.
package chroma

import (
	"math"
	"math/cmplx"

	"github.com/jsphweid/chordmidi/constants"
	"github.com/jsphweid/chordmidi/errs"
	"github.com/jsphweid/chordmidi/model"
	"github.com/mjibson/go-dsp/window"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

const (
	Bins = 12

	minWindowSamples = 16
)

type Config struct {
	// stride between frames, seconds
	HopDuration float64
	// analysis window length, seconds
	WindowDuration float64
	MinFreq        float64
	MaxFreq        float64
	// frequency of A4
	Tuning float64
}

func DefaultConfig() Config {
	return Config{
		HopDuration:    constants.HopDuration,
		WindowDuration: constants.WindowDuration,
		MinFreq:        constants.MinFreq,
		MaxFreq:        constants.MaxFreq,
		Tuning:         constants.Tuning,
	}
}

type Extractor struct {
	cfg Config
}

func New(cfg Config) (*Extractor, error) {
	switch {
	case !(cfg.HopDuration > 0):
		return nil, errors.Errorf("hop duration must be positive, got %v", cfg.HopDuration)
	case !(cfg.WindowDuration > 0):
		return nil, errors.Errorf("window duration must be positive, got %v", cfg.WindowDuration)
	case !(cfg.Tuning > 0):
		return nil, errors.Errorf("tuning must be positive, got %v", cfg.Tuning)
	case !(cfg.MinFreq > 0) || !(cfg.MaxFreq > cfg.MinFreq):
		return nil, errors.Errorf("invalid frequency range [%v, %v]", cfg.MinFreq, cfg.MaxFreq)
	}
	return &Extractor{cfg: cfg}, nil
}

func (e *Extractor) Config() Config {
	return e.cfg
}

func (e *Extractor) frameSizes(sampleRate int) (hop int, win int) {
	sr := float64(sampleRate)
	hop = int(math.Round(e.cfg.HopDuration * sr))
	if hop < 1 {
		hop = 1
	}
	win = int(math.Round(e.cfg.WindowDuration * sr))
	if win < minWindowSamples {
		win = minWindowSamples
	}
	return hop, win
}

// HopDuration is the frame stride actually used at sampleRate, after rounding
// the configured hop to whole samples.
func (e *Extractor) HopDuration(sampleRate int) float64 {
	hop, _ := e.frameSizes(sampleRate)
	return float64(hop) / float64(sampleRate)
}

// NumFrames is the number of frames Extract yields for n samples.
func (e *Extractor) NumFrames(n int, sampleRate int) int {
	hop, _ := e.frameSizes(sampleRate)
	return (n + hop - 1) / hop
}

// pitch class for every FFT bin, -1 outside the analysed range
func (e *Extractor) binPitchClasses(fft *fourier.FFT, win int, sampleRate int) []int {
	res := make([]int, win/2+1)
	for k := range res {
		res[k] = -1
		if k == 0 {
			continue
		}
		f := fft.Freq(k) * float64(sampleRate)
		if f < e.cfg.MinFreq || f > e.cfg.MaxFreq {
			continue
		}
		midi := 12*math.Log2(f/e.cfg.Tuning) + 69
		res[k] = ((int(math.Round(midi)) % Bins) + Bins) % Bins
	}
	return res
}

func validate(w model.Waveform) error {
	if w.SampleRate <= 0 {
		return errors.Wrapf(errs.ErrInvalidAudio, "sample rate %d", w.SampleRate)
	}
	if len(w.Samples) == 0 {
		return errors.Wrap(errs.ErrInvalidAudio, "empty waveform")
	}
	for i, s := range w.Samples {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return errors.Wrapf(errs.ErrInvalidAudio, "non-finite sample at %d", i)
		}
	}
	return nil
}

// Extract returns one chroma frame per hop. Frame i analyses the window
// starting at sample i*hop, zero padded past the end of the waveform.
func (e *Extractor) Extract(w model.Waveform) ([]model.ChromaFrame, error) {
	if err := validate(w); err != nil {
		return nil, err
	}

	hop, win := e.frameSizes(w.SampleRate)
	numFrames := e.NumFrames(len(w.Samples), w.SampleRate)

	fft := fourier.NewFFT(win)
	coeffs := window.Hann(win)
	// a full scale sine centred on a bin has magnitude sum(w)/2
	gain := floats.Sum(coeffs) / 2
	pcs := e.binPitchClasses(fft, win, w.SampleRate)

	frames := make([]model.ChromaFrame, numFrames)
	buf := make([]float64, win)
	spec := make([]complex128, win/2+1)
	for i := 0; i < numFrames; i++ {
		start := i * hop
		for k := 0; k < win; k++ {
			if start+k < len(w.Samples) {
				buf[k] = w.Samples[start+k] * coeffs[k]
			} else {
				buf[k] = 0
			}
		}
		spec = fft.Coefficients(spec, buf)

		var power [Bins]float64
		for k, pc := range pcs {
			if pc < 0 {
				continue
			}
			m := cmplx.Abs(spec[k]) / gain
			power[pc] += m * m
		}
		frame := make(model.ChromaFrame, Bins)
		for pc, p := range power {
			frame[pc] = math.Sqrt(p)
		}
		frames[i] = frame
	}
	return frames, nil
}
