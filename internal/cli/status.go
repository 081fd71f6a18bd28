package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/docrelay/docrelay/internal/infra/storage/postgres"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent processing cycles from the database",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "number of cycles to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := setup()

	if cfg.Database.URL == "" {
		fmt.Println("status requires database.url to be configured")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	cycles, err := postgres.NewCycleRepo(db).GetRecent(ctx, statusLimit)
	if err != nil {
		slog.Error("Failed to query cycles", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "DATE\tSTATUS\tDOWNLOADS\tRECORDS\tPUBLISH\tDURATION")

	for _, c := range cycles {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d/%d\t%d\t%s\t%s\n",
			c.DateFolder,
			c.Status(),
			c.DownloadsSucceeded(), len(c.Downloads),
			c.RecordsExtracted,
			c.PublishStatus,
			c.Duration().Round(time.Millisecond))
	}
	_ = w.Flush()
}
