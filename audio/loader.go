package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
	"github.com/jsphweid/chordmidi/constants"
	"github.com/jsphweid/chordmidi/errs"
	"github.com/jsphweid/chordmidi/model"
	"github.com/pkg/errors"
)

// Loader decodes an audio file into a mono waveform.
type Loader interface {
	Load(ctx context.Context, path string) (model.Waveform, error)
}

// WAVLoader decodes PCM wave files natively, averaging channels to mono and
// keeping the file's sample rate.
type WAVLoader struct{}

const wavFormatPCM = 1

// NotPCMError reports a wav file whose samples are not integer PCM, such as
// IEEE float (format 3). It matches errs.ErrInvalidAudio.
type NotPCMError struct {
	Path   string
	Format uint16
}

func (e *NotPCMError) Error() string {
	return fmt.Sprintf("%v: %s uses wav format %d, only PCM is decoded natively", errs.ErrInvalidAudio, e.Path, e.Format)
}

func (e *NotPCMError) Is(target error) bool {
	return target == errs.ErrInvalidAudio
}

func (WAVLoader) Load(ctx context.Context, path string) (model.Waveform, error) {
	var res model.Waveform
	f, err := os.Open(path)
	if err != nil {
		return res, errors.Wrapf(errs.ErrInvalidAudio, "open %s (%v)", path, err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return res, errors.Wrapf(errs.ErrInvalidAudio, "%s is not a valid wav file", path)
	}
	if d.WavAudioFormat != wavFormatPCM {
		return res, &NotPCMError{Path: path, Format: d.WavAudioFormat}
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return res, errors.Wrapf(errs.ErrInvalidAudio, "decode %s (%v)", path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels <= 0 {
		return res, errors.Wrapf(errs.ErrInvalidAudio, "%s has no channel information", path)
	}

	bitDepth := int(d.BitDepth)
	if bitDepth <= 0 || bitDepth > 32 {
		return res, errors.Wrapf(errs.ErrInvalidAudio, "%s has unsupported bit depth %d", path, bitDepth)
	}
	full := float64(int64(1) << (bitDepth - 1))
	if bitDepth == 8 {
		// 8 bit wav is unsigned
		full = 128
	}

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := float64(buf.Data[i*channels+c])
			if bitDepth == 8 {
				v -= 128
			}
			sum += v / full
		}
		samples[i] = sum / float64(channels)
	}
	res.Samples = samples
	res.SampleRate = buf.Format.SampleRate
	return res, nil
}

// FFmpegLoader shells out to ffmpeg, which handles mp3 and anything else it
// can read, resampling to SampleRate.
type FFmpegLoader struct {
	Bin        string
	SampleRate int
}

func NewFFmpegLoader() FFmpegLoader {
	return FFmpegLoader{Bin: constants.GetFFmpegBin(), SampleRate: constants.SampleRate}
}

func (l FFmpegLoader) Load(ctx context.Context, path string) (model.Waveform, error) {
	var res model.Waveform
	if l.SampleRate <= 0 {
		return res, errors.Wrapf(errs.ErrInvalidAudio, "sample rate %d", l.SampleRate)
	}
	cmd := exec.CommandContext(ctx, l.Bin, "-hide_banner", "-loglevel", "error", "-i", path,
		"-f", "s16le", "-acodec", "pcm_s16le", "-ac", "1", "-ar", strconv.Itoa(l.SampleRate), "-")
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return res, errors.Wrapf(errs.ErrInvalidAudio, "ffmpeg could not decode %s: %s", path, msg)
	}

	data := out.Bytes()
	// 16-bit signed little-endian -> float64 in [-1,1]
	samples := make([]float64, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float64(v) / 32768.0
	}
	res.Samples = samples
	res.SampleRate = l.SampleRate
	return res, nil
}

// DefaultLoader picks a decoder from the file extension. Wav files that are
// not integer PCM go to FFmpeg.
type DefaultLoader struct {
	WAV    Loader
	FFmpeg Loader
}

func NewDefaultLoader() DefaultLoader {
	return DefaultLoader{WAV: WAVLoader{}, FFmpeg: NewFFmpegLoader()}
}

func (l DefaultLoader) Load(ctx context.Context, path string) (model.Waveform, error) {
	switch FormatOf(path) {
	case FormatWAV:
		w, err := l.WAV.Load(ctx, path)
		var notPCM *NotPCMError
		if errors.As(err, &notPCM) && l.FFmpeg != nil {
			return l.FFmpeg.Load(ctx, path)
		}
		return w, err
	case FormatMP3:
		return l.FFmpeg.Load(ctx, path)
	}
	return model.Waveform{}, &errs.ValidationError{Path: path, Err: errs.ErrUnsupportedFormat}
}
