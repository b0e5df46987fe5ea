package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/franz/bcr-index/internal/util"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reconcile the index with the recordings directory",
	Long: `Load the index of the recordings directory and reconcile it with the
files currently present.

New audio files get an entry built from their metadata file and file name,
entries whose audio file disappeared are dropped and everything else is kept
as is. When the directory has no index yet, one is created. With no
directory selected, you are asked for one first.`,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(newPromptSelector(os.Stdin, os.Stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	stopProgress := followProgress(a.controller, "Scanning")
	err = refreshIndex(ctx, a)
	stopProgress()
	if err != nil {
		return err
	}

	st := a.controller.State()
	fmt.Fprintf(cmd.OutOrStdout(), "%d recordings in %s\n", len(st.Index), st.Location)
	return nil
}

// refreshIndex loads the index and reconciles it, running a single pass when
// loading had to bootstrap the document
func refreshIndex(ctx context.Context, a *app) error {
	loc := a.controller.Location()
	bootstrap := loc == "" || !a.index.Inspect(ctx, loc).Exists

	if err := a.controller.Initialize(ctx); err != nil {
		return err
	}
	if bootstrap {
		return nil
	}
	return a.controller.Refresh(ctx)
}

// loadIndex initializes the controller without prompting, failing when no
// directory has been selected
func loadIndex(ctx context.Context) (*app, error) {
	a, err := newApp(nil)
	if err != nil {
		return nil, err
	}
	if err := a.controller.Initialize(ctx); err != nil {
		a.Close()
		if errors.Is(err, util.ErrNoStorageConfigured) {
			return nil, fmt.Errorf("%w (run 'bcrx select' first)", err)
		}
		return nil, err
	}
	return a, nil
}
