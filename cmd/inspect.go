package cmd

import (
	"fmt"

	"github.com/jsphweid/chordmidi/chord"
	"github.com/jsphweid/chordmidi/midi"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.mid>",
	Short: "Lists the chords in a MIDI file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(args[0])
	},
}

func inspect(path string) error {
	s, err := midi.ReadMidiFile(path)
	if err != nil {
		return err
	}
	events := midi.ReadChordEvents(s)
	fmt.Printf("%d chords\n", len(events))
	for _, e := range events {
		fmt.Printf("%8.3f %8.3f  %-8s %s\n", e.Start, e.Duration, e.Name, chord.CreateChordKey(e.Notes))
	}
	return nil
}
