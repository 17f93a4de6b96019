package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/jsphweid/chordmidi/pipeline"
	"github.com/jsphweid/chordmidi/util"
	"github.com/spf13/cobra"
)

var (
	watchInterval time.Duration
	watchQuiet    time.Duration
)

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "how often the directory is scanned")
	watchCmd.Flags().DurationVar(&watchQuiet, "quiet-period", 5*time.Second, "wait this long after the last change before transcribing")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Transcribes audio files as they appear in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), args[0])
	},
}

// watcher remembers modification times and collects files that changed
// since they were last seen.
type watcher struct {
	dir     string
	mu      sync.Mutex
	seen    map[string]time.Time
	pending map[string]bool
}

func newWatcher(dir string) *watcher {
	return &watcher{dir: dir, seen: make(map[string]time.Time), pending: make(map[string]bool)}
}

// up to date when the output exists and is newer than the input
func upToDate(path string, modTime time.Time) bool {
	info, err := os.Stat(util.OutputPath(path))
	return err == nil && !info.ModTime().Before(modTime)
}

func (w *watcher) scan() (bool, error) {
	paths, err := util.GatherAllAudioPaths(w.dir, 0)
	if err != nil {
		return false, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	var changed bool
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if last, ok := w.seen[path]; ok && last.Equal(info.ModTime()) {
			continue
		}
		w.seen[path] = info.ModTime()
		if upToDate(path, info.ModTime()) {
			continue
		}
		w.pending[path] = true
		changed = true
	}
	return changed, nil
}

func (w *watcher) take() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := util.GetKeys(w.pending)
	w.pending = make(map[string]bool)
	return paths
}

func runWatch(ctx context.Context, dir string) error {
	p, closeFn, err := buildPipeline()
	if err != nil {
		return err
	}
	defer closeFn()

	w := newWatcher(dir)
	debounced := debounce.New(watchQuiet)
	var running sync.Mutex
	flush := func() {
		running.Lock()
		defer running.Unlock()
		transcribeAll(ctx, p, w.take())
	}

	fmt.Printf("Watching %s\n", dir)
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()
	for {
		changed, err := w.scan()
		if err != nil {
			return err
		}
		if changed {
			debounced(flush)
		}
		select {
		case <-ctx.Done():
			running.Lock()
			defer running.Unlock()
			return nil
		case <-ticker.C:
		}
	}
}

func transcribeAll(ctx context.Context, p *pipeline.Pipeline, paths []string) {
	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		out, _, err := p.Run(ctx, path)
		if err != nil {
			fmt.Printf("Failed %s: %v\n", path, err)
			continue
		}
		fmt.Printf("Saved %s\n", out)
	}
}
