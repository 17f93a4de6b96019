package constants

import "os"

const (
	SampleRate     = 22050
	HopDuration    = 0.1
	WindowDuration = 0.186
	MinFreq        = 65.0
	MaxFreq        = 2100.0
	Tuning         = 440.0

	// log-score penalty for changing chord between adjacent frames
	SwitchPenalty = 2.0

	// multiplier on cosine similarity between chroma and chord template
	ObservationScale = 10.0

	// frames whose chroma norm falls below this are treated as silence
	SilenceThreshold = 1e-3

	OutputSuffix = "_chords"
	MidiExt      = ".mid"

	TicksPerQuarter = 480
	Tempo           = 120.0
	Velocity        = 90
	Channel         = 0
)

var AudioExts = []string{".wav", ".mp3"}

func getEnv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// empty means use the built-in model
func GetObservationModelPath() string {
	return getEnv("CHORDMIDI_OBSERVATION_MODEL", "")
}

// empty means use the built-in transitions
func GetTransitionsPath() string {
	return getEnv("CHORDMIDI_TRANSITIONS", "")
}

// empty disables caching
func GetCacheDir() string {
	return getEnv("CHORDMIDI_CACHE_DIR", "")
}

func GetFFmpegBin() string {
	return getEnv("CHORDMIDI_FFMPEG", "ffmpeg")
}
