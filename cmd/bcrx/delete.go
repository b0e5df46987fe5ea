package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/franz/bcr-index/internal/util"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <audio-file>...",
	Short: "Delete recordings and their metadata files",
	Long: `Delete recordings from the recordings directory.

The audio file is removed first, then its metadata file. A recording stays
in the index unless both are gone, so a failed deletion can simply be
retried.`,
	Aliases: []string{"rm"},
	Args:    cobra.MinimumNArgs(1),
	RunE:    runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	yes, _ := cmd.Flags().GetBool("yes")
	ctx := context.Background()

	a, err := loadIndex(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	in := bufio.NewReader(os.Stdin)
	failed := 0
	for _, name := range args {
		rec, ok := a.controller.State().Index.Find(name)
		if !ok {
			util.ErrorLog("Not in index: %s", name)
			failed++
			continue
		}

		if !yes {
			what := rec.AudioFile
			if rec.HasMetadata() {
				what += " and " + rec.MetadataName()
			}
			if !confirm(in, cmd.ErrOrStderr(), fmt.Sprintf("Delete %s?", what)) {
				util.InfoLog("Skipped %s", name)
				continue
			}
		}

		if err := a.controller.DeleteRecording(ctx, name); err != nil {
			var partial *util.PartialDeleteError
			if errors.As(err, &partial) {
				util.ErrorLog("Deleted %s but not %s: %v", strings.Join(partial.Deleted, ", "), partial.Failed, partial.Err)
			} else {
				util.ErrorLog("%v", err)
			}
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d deletions failed", failed, len(args))
	}
	return nil
}

// confirm asks a yes/no question, defaulting to no
func confirm(in *bufio.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
