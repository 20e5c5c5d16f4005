package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play a number of frames, optionally between a load and a save.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		frames, _ := flags.GetUint64("frames")
		from, _ := flags.GetString("load")
		into, _ := flags.GetString("save")
		paused, _ := flags.GetBool("paused")

		s, _, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Terminate()

		out := cmd.OutOrStdout()

		if from != "" {
			report, err := s.Manager().Load(from)
			if err != nil {
				return err
			}
			printReport(out, "loaded", report, s)
		}

		if paused {
			_, err = s.Controller().Pause()
			if err != nil {
				return err
			}
		}

		s.Run(frames)
		fmt.Fprintf(out, "played %d frames at %g Hz\n", frames, float64(s.Freq()))

		if into == "" {
			fmt.Fprintf(out, "  game time: %s\n", s.Clock())
			fmt.Fprintf(out, "  play time: %s\n", s.PlayTime())

			return nil
		}

		report, err := s.Manager().Save(into)
		if err != nil {
			return err
		}
		printReport(out, "saved", report, s)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().Uint64("frames", 0, "frames to play")
	playCmd.Flags().String("load", "", "save to load before playing")
	playCmd.Flags().String("save", "", "existing save to write after playing")
	playCmd.Flags().Bool("paused", false, "pause the game before playing")
}
