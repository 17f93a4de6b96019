package audio

import (
	"math"

	"github.com/jsphweid/chordmidi/model"
)

// harmonic amplitudes relative to the fundamental
var harmonics = []float64{1, 0.5, 0.25}

// Synthesize renders the given fundamentals with a few decaying harmonics,
// scaled so the mix never clips.
func Synthesize(sampleRate int, seconds float64, freqs ...float64) model.Waveform {
	n := int(math.Round(seconds * float64(sampleRate)))
	samples := make([]float64, n)
	if len(freqs) > 0 {
		var total float64
		for _, a := range harmonics {
			total += a
		}
		scale := 0.8 / (total * float64(len(freqs)))
		for i := range samples {
			t := float64(i) / float64(sampleRate)
			var v float64
			for _, f := range freqs {
				for h, a := range harmonics {
					v += a * math.Sin(2*math.Pi*f*float64(h+1)*t)
				}
			}
			samples[i] = v * scale
		}
	}
	return model.Waveform{Samples: samples, SampleRate: sampleRate}
}

func Silence(sampleRate int, seconds float64) model.Waveform {
	return Synthesize(sampleRate, seconds)
}

// Concat joins waveforms sharing a sample rate.
func Concat(parts ...model.Waveform) model.Waveform {
	var res model.Waveform
	for _, p := range parts {
		res.SampleRate = p.SampleRate
		res.Samples = append(res.Samples, p.Samples...)
	}
	return res
}

// MidiToFreq converts a MIDI note number to Hz, A4 = 440.
func MidiToFreq(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}
