package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jsphweid/chordmidi/crf"
	"github.com/jsphweid/chordmidi/observation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	observationFile = "observation.json"
	transitionsFile = "transitions.txt"
)

func init() {
	modelCmd.AddCommand(modelExportCmd)
	rootCmd.AddCommand(modelCmd)
}

var modelCmd = &cobra.Command{
	Use:   "model",
	Short: "Works with model artifacts",
}

var modelExportCmd = &cobra.Command{
	Use:   "export <dir>",
	Short: "Writes the built-in observation model and transitions",
	Long: `Writes observation.json and transitions.txt, a starting point for trained
artifacts passed back in with --observation-model and --transitions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		obsPath, transPath, err := exportModels(args[0], switchPenalty)
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s and %s\n", obsPath, transPath)
		return nil
	},
}

func exportModels(dir string, penalty float64) (string, string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", errors.Wrap(err, "create model dir")
	}
	obs := observation.Default()
	obsPath := filepath.Join(dir, observationFile)
	if err := obs.Save(obsPath); err != nil {
		return "", "", err
	}
	transPath := filepath.Join(dir, transitionsFile)
	if err := crf.Default(obs.Labels(), penalty).Save(transPath); err != nil {
		return "", "", err
	}
	return obsPath, transPath, nil
}
