package cmd

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/jsphweid/chordmidi/util"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/sync/errgroup"
)

var batchWorkers int

func init() {
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "files transcribed in parallel (0 = number of CPUs)")
	rootCmd.AddCommand(batchCmd)
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir-or-file>...",
	Short: "Transcribes many files in parallel",
	Long:  `Transcribes every .wav and .mp3 under the given directories, plus any files named directly.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd.Context(), args)
	},
}

func collectPaths(args []string) ([]string, error) {
	var res []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			paths, err := util.GatherAllAudioPaths(arg, 0)
			if err != nil {
				return nil, err
			}
			res = append(res, paths...)
			continue
		}
		// let the pipeline report missing or unsupported files
		res = append(res, arg)
	}
	return res, nil
}

func runBatch(ctx context.Context, args []string) error {
	paths, err := collectPaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no audio files found")
	}

	p, closeFn, err := buildPipeline()
	if err != nil {
		return err
	}
	defer closeFn()

	workers := batchWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	progress := mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	bar := progress.AddBar(int64(len(paths)),
		mpb.PrependDecorators(
			decor.Name("Transcribing: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
		),
	)

	// one pipeline is shared, its models are read-only
	failures := make([]error, len(paths))
	outputs := make([]string, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			defer bar.Increment()
			outputs[i], _, failures[i] = p.Run(gctx, path)
			return nil
		})
	}
	g.Wait()
	progress.Wait()

	var failed int
	for i, path := range paths {
		if failures[i] != nil {
			failed++
			fmt.Printf("Failed %s: %v\n", path, failures[i])
			continue
		}
		fmt.Printf("Saved %s\n", outputs[i])
	}
	if failed > 0 {
		return errors.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}
