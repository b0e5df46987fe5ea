package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/bcr-index/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent refresh passes and deletions",
	Long: `Show the pass history kept in the history database.

Every refresh records when it ran, how long it took and what it added and
removed. Deletions are recorded with the files that were actually removed.
Use --pass to list the files a single pass added and removed.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "number of entries to show")
	historyCmd.Flags().Bool("all", false, "include every directory, not only the selected one")
	historyCmd.Flags().Bool("deletions", false, "show deletions instead of passes")
	historyCmd.Flags().String("pass", "", "show the changes of one pass")
	historyCmd.Flags().Int("prune", 0, "keep only the newest N passes per directory")
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	all, _ := cmd.Flags().GetBool("all")
	deletions, _ := cmd.Flags().GetBool("deletions")
	passID, _ := cmd.Flags().GetString("pass")
	prune, _ := cmd.Flags().GetInt("prune")
	ctx := context.Background()

	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.history == nil {
		return fmt.Errorf("history database is not available")
	}

	out := cmd.OutOrStdout()
	switch {
	case prune > 0:
		n, err := a.history.PrunePasses(ctx, prune)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d passes\n", n)
		return nil

	case passID != "":
		added, removed, err := a.history.PassChanges(ctx, passID)
		if err != nil {
			return err
		}
		for _, name := range added {
			fmt.Fprintf(out, "+ %s\n", name)
		}
		for _, name := range removed {
			fmt.Fprintf(out, "- %s\n", name)
		}
		return nil
	}

	loc := string(a.controller.Location())
	if all {
		loc = ""
	}

	if deletions {
		list, err := a.history.RecentDeletions(ctx, loc, limit)
		if err != nil {
			return err
		}
		writeDeletions(out, list, all)
		return nil
	}

	passes, err := a.history.RecentPasses(ctx, loc, limit)
	if err != nil {
		return err
	}
	writePasses(out, passes, all)
	return nil
}

func writePasses(w io.Writer, passes []*store.Pass, withLocation bool) {
	if len(passes) == 0 {
		fmt.Fprintln(w, "No passes recorded")
		return
	}
	for _, p := range passes {
		result := fmt.Sprintf("+%d -%d =%d", p.AddedCount, p.RemovedCount, p.Unchanged)
		if p.Error != "" {
			result = "failed: " + p.Error
		} else if p.MetadataErrors > 0 {
			result += fmt.Sprintf(" (%d metadata errors)", p.MetadataErrors)
		}
		line := fmt.Sprintf("%-14s  %s  %8s  %s", humanize.Time(p.StartedAt), shortID(p.ID), p.Duration.Round(time.Millisecond), result)
		if withLocation {
			line += "  " + p.Location
		}
		fmt.Fprintln(w, line)
	}
}

func writeDeletions(w io.Writer, deletions []*store.Deletion, withLocation bool) {
	if len(deletions) == 0 {
		fmt.Fprintln(w, "No deletions recorded")
		return
	}
	for _, d := range deletions {
		line := fmt.Sprintf("%-14s  %s (%d files)", humanize.Time(d.DeletedAt), d.AudioFile, len(d.DeletedFiles))
		if d.Error != "" {
			line += "  failed: " + d.Error
		}
		if withLocation {
			line += "  " + d.Location
		}
		fmt.Fprintln(w, line)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
