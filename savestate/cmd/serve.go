package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sarchlab/savestate/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the session in real time behind the HTTP control server.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		open, _ := flags.GetBool("open")
		port, _ := flags.GetInt("port")

		s, _, err := openSession(cmd, true, func(cfg *config.Config) {
			if open {
				cfg.Monitor.OpenBrowser = true
			}

			if flags.Changed("port") {
				cfg.Monitor.Port = port
			}
		})
		if err != nil {
			return err
		}
		defer s.Terminate()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		period := time.Duration(s.Freq().Period() * float64(time.Second))
		serveFrames(ctx, period, func() {
			s.GetMonitor().Do(func() { s.Tick() })
		})

		s.Logger().Info("server stopped", "frames", s.Frames())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("open", false, "open the control page in a browser")
	serveCmd.Flags().Int("port", 0, "port of the control server, random if 0")
}

// serveFrames calls tick once per period until ctx is done.
func serveFrames(ctx context.Context, period time.Duration, tick func()) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
