package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/docrelay/docrelay/internal/control"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single processing cycle and exit",
	Run:   runOnce,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) {
	cfg := setup()

	app, err := control.NewApp(cfg, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize service", "error", err)
		os.Exit(1)
	}

	if err := app.RunOnce(context.Background()); err != nil {
		slog.Error("Cycle failed", "error", err)
		os.Exit(1)
	}
}
