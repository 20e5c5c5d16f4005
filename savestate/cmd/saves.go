package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sarchlab/savestate/persistence"
	"github.com/sarchlab/savestate/simulation"
)

var newCmd = &cobra.Command{
	Use:   "new NAME",
	Short: "Create a save from the current session.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Terminate()

		playFrames(cmd, s)

		report, err := s.Manager().NewSave(args[0])
		if err != nil {
			return err
		}

		printReport(cmd.OutOrStdout(), "created", report, s)

		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save NAME",
	Short: "Save the current session into an existing save.",
	Long: "`save NAME` overwrites the save with the state of the session. " +
		"With --create, a save that does not exist yet is created.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Terminate()

		playFrames(cmd, s)

		create, _ := cmd.Flags().GetBool("create")
		verb := "saved"

		report, err := s.Manager().Save(args[0])
		if errors.Is(err, persistence.ErrUnknownSave) && create {
			verb = "created"
			report, err = s.Manager().NewSave(args[0])
		}

		if err != nil {
			return err
		}

		printReport(cmd.OutOrStdout(), verb, report, s)

		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load NAME",
	Short: "Restore a save into a new session.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Terminate()

		report, err := s.Manager().Load(args[0])
		if err != nil {
			return err
		}

		printReport(cmd.OutOrStdout(), "loaded", report, s)

		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored saves.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, _, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Terminate()

		saves := s.Manager().List()
		out := cmd.OutOrStdout()

		if len(saves) == 0 {
			fmt.Fprintf(out, "no saves in %s\n", s.Manager().Location())
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCREATED\tMODIFIED\tFRAGMENTS")

		for _, info := range saves {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				info.Name,
				humanize.Time(info.CreatedAt),
				humanize.Time(info.ModifiedAt),
				strings.Join(info.Keys, ","))
		}

		return w.Flush()
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect NAME",
	Short: "Show the fragments of a save and the time they hold.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Terminate()

		rec, ok := s.Manager().Record(args[0])
		if !ok {
			return fmt.Errorf("%w: %q", persistence.ErrUnknownSave, args[0])
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "save:     %s\n", rec.Name)
		fmt.Fprintf(out, "created:  %s\n", rec.CreatedAt.Format(timeLayout))
		fmt.Fprintf(out, "modified: %s\n", rec.ModifiedAt.Format(timeLayout))

		for _, key := range s.Manager().ContributorKeys() {
			data, ok := rec.Fragments[key]
			if !ok {
				fmt.Fprintf(out, "  %-16s missing\n", key)
				continue
			}

			fmt.Fprintf(out, "  %-16s %s\n", key, humanize.Bytes(uint64(len(data))))
		}

		report, err := s.Manager().Load(rec.Name)
		if err != nil {
			return err
		}

		printReport(out, "restored", report, s)

		return nil
	},
}

const timeLayout = "2006-01-02 15:04:05"

func init() {
	rootCmd.AddCommand(newCmd, saveCmd, loadCmd, listCmd, inspectCmd)

	newCmd.Flags().Int("frames", 0, "frames to play before saving")
	saveCmd.Flags().Int("frames", 0, "frames to play before saving")
	saveCmd.Flags().Bool("create", false, "create the save if it does not exist")
}

func playFrames(cmd *cobra.Command, s *simulation.Simulation) {
	frames, _ := cmd.Flags().GetInt("frames")
	if frames > 0 {
		s.Step(frames)
	}
}

func printReport(
	w io.Writer,
	verb string,
	report persistence.Report,
	s *simulation.Simulation,
) {
	fmt.Fprintf(w, "%s %s\n", verb, report.Save)
	fmt.Fprintf(w, "  game time: %s\n", s.Clock())
	fmt.Fprintf(w, "  play time: %s\n", s.PlayTime())

	if report.Stale {
		fmt.Fprintln(w, "  warning: save was not found in storage")
	}

	for _, f := range report.Failures {
		fmt.Fprintf(w, "  warning: %s failed: %v\n", f.HookName(), f.Err)
	}
}
