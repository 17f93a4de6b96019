package audio

import (
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/jsphweid/chordmidi/model"
	"github.com/pkg/errors"
)

const pcmFormat = 1

// WriteWAV stores a mono waveform as 16-bit PCM.
func WriteWAV(path string, w model.Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create wav")
	}
	enc := wav.NewEncoder(f, w.SampleRate, 16, 1, pcmFormat)
	data := make([]int, len(w.Samples))
	for i, s := range w.Samples {
		data[i] = int(math.Round(math.Max(-1, math.Min(1, s)) * 32767))
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return errors.Wrap(err, "encode wav")
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return errors.Wrap(err, "finish wav")
	}
	return f.Close()
}
