package model

// Waveform is a mono buffer of samples in [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

func (w Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// ChromaFrame holds the energy of each pitch class, C first.
type ChromaFrame = []float64

// ObservationMatrix has one row per frame and one column per vocabulary entry.
type ObservationMatrix = [][]float64
