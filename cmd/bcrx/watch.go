package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/franz/bcr-index/internal/index"
	"github.com/franz/bcr-index/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Refresh the index whenever the recordings directory changes",
	Long: `Keep the index up to date while running.

Local directories are watched for changes; a burst of changes results in a
single refresh once the directory has been quiet for the debounce period.
Object storage cannot be watched and is refreshed on --interval instead.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before refreshing")
	watchCmd.Flags().Duration("interval", 0, "also refresh periodically (default 5m for s3)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	debounce, _ := cmd.Flags().GetDuration("debounce")
	interval, _ := cmd.Flags().GetDuration("interval")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(newPromptSelector(os.Stdin, os.Stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := refreshIndex(ctx, a); err != nil {
		return err
	}

	dir := string(a.controller.Location())
	if a.cfg.Backend == "s3" {
		dir = ""
		if interval <= 0 {
			interval = 5 * time.Minute
		}
	}

	w := watch.New(&watch.Config{
		Dir:      dir,
		Debounce: debounce,
		Interval: interval,
		Ignore:   []string{index.DocumentName, index.TempName},
		Refresh:  a.controller.Refresh,
	})
	return w.Run(ctx)
}
