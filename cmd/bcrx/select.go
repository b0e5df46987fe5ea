package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/franz/bcr-index/internal/library"
	"github.com/franz/bcr-index/internal/util"
)

var selectCmd = &cobra.Command{
	Use:   "select [directory]",
	Short: "Choose the recordings directory",
	Long: `Choose the recordings directory and load its index.

Without an argument you are prompted for it. The choice is saved and used
by every other command until changed; --directory overrides it for a single
run without saving.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)
}

func runSelect(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var selector library.Selector = newPromptSelector(os.Stdin, cmd.ErrOrStderr())
	if len(args) == 1 {
		selector = fixedSelector(args[0])
	}

	a, err := newApp(selector)
	if err != nil {
		return err
	}
	defer a.Close()

	stopProgress := followProgress(a.controller, "Scanning")
	err = a.controller.SelectDirectory(ctx)
	stopProgress()
	if errors.Is(err, util.ErrSelectionCancelled) {
		return nil
	}
	if err != nil {
		return err
	}

	st := a.controller.State()
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d recordings (saved to %s)\n", st.Location, len(st.Index), a.settings.Path())
	return nil
}
