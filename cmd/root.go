package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jsphweid/chordmidi/audio"
	"github.com/jsphweid/chordmidi/cache"
	"github.com/jsphweid/chordmidi/constants"
	"github.com/jsphweid/chordmidi/crf"
	"github.com/jsphweid/chordmidi/observation"
	"github.com/jsphweid/chordmidi/pipeline"
	"github.com/jsphweid/chordmidi/sequence"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	observationPath string
	transitionsPath string
	switchPenalty   float64
	hopDuration     float64
	windowDuration  float64
	silenceEvents   bool
	cacheDir        string
	ffmpegBin       string
	verbose         bool
)

var logger = logrus.New()

var rootCmd = &cobra.Command{
	Use:   "chordmidi <audio-file>",
	Short: "Transcribes the chords of a recording into MIDI",
	Long: `Detects one chord per analysis frame in a .wav or .mp3 recording and writes
the chord progression to <name>_chords.mid next to the input.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetOutput(os.Stderr)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return transcribe(cmd.Context(), args[0])
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&observationPath, "observation-model", constants.GetObservationModelPath(), "observation model json (built-in model if empty)")
	flags.StringVar(&transitionsPath, "transitions", constants.GetTransitionsPath(), "chord transitions file (built-in transitions if empty)")
	flags.Float64Var(&switchPenalty, "switch-penalty", constants.SwitchPenalty, "penalty for changing chord, used by the built-in transitions")
	flags.Float64Var(&hopDuration, "hop", constants.HopDuration, "frame stride in seconds")
	flags.Float64Var(&windowDuration, "window", constants.WindowDuration, "analysis window in seconds")
	flags.BoolVar(&silenceEvents, "silence-events", false, "emit empty events for no-chord stretches")
	flags.StringVar(&cacheDir, "cache-dir", constants.GetCacheDir(), "directory for cached results (disabled if empty)")
	flags.StringVar(&ffmpegBin, "ffmpeg", constants.GetFFmpegBin(), "ffmpeg binary used to decode mp3")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func pipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()
	cfg.Chroma.HopDuration = hopDuration
	cfg.Chroma.WindowDuration = windowDuration
	if silenceEvents {
		cfg.NoChord = sequence.SilenceEvents
	}
	return cfg
}

// buildPipeline loads the model artifacts named by the flags. The returned
// func releases the cache.
func buildPipeline() (*pipeline.Pipeline, func(), error) {
	noop := func() {}

	obs := observation.Default()
	if observationPath != "" {
		var err error
		if obs, err = observation.Load(observationPath); err != nil {
			return nil, noop, err
		}
	}

	trans := crf.Default(obs.Labels(), switchPenalty)
	if transitionsPath != "" {
		var err error
		if trans, err = crf.Load(transitionsPath); err != nil {
			return nil, noop, err
		}
	}

	loader := audio.NewDefaultLoader()
	ffmpeg := audio.NewFFmpegLoader()
	ffmpeg.Bin = ffmpegBin
	loader.FFmpeg = ffmpeg

	opts := pipeline.Options{
		Loader:      loader,
		Observation: obs,
		Transitions: trans,
		Logger:      logger,
	}
	closeFn := noop
	if cacheDir != "" {
		c, err := cache.Open(cacheDir)
		if err != nil {
			return nil, noop, errors.WithMessage(err, "cache")
		}
		opts.Cache = c
		closeFn = func() {
			if err := c.Close(); err != nil {
				logger.WithError(err).Warn("closing cache")
			}
		}
	}

	p, err := pipeline.New(pipelineConfig(), opts)
	if err != nil {
		closeFn()
		return nil, noop, err
	}
	return p, closeFn, nil
}

func transcribe(ctx context.Context, path string) error {
	p, closeFn, err := buildPipeline()
	if err != nil {
		return err
	}
	defer closeFn()

	out, res, err := p.Run(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("Detected %d chords and saved MIDI file: %s\n", len(res.Events), out)
	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	cobra.CheckErr(err)
}
