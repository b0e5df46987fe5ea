package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/franz/bcr-index/internal/recording"
	"github.com/franz/bcr-index/internal/util"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the recordings in the index",
	Long: `List the recordings of the selected directory as stored in its index.

Run 'bcrx refresh' first to pick up files added or removed since the last
pass.`,
	Aliases: []string{"ls"},
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("sort", "s", "date", "sort by date, name, duration or size")
	listCmd.Flags().BoolP("reverse", "r", false, "reverse the sort order")
	listCmd.Flags().Bool("json", false, "print the index as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	sortFlag, _ := cmd.Flags().GetString("sort")
	reverse, _ := cmd.Flags().GetBool("reverse")
	asJSON, _ := cmd.Flags().GetBool("json")

	key, err := recording.ParseSortKey(sortFlag)
	if err != nil {
		return err
	}

	a, err := loadIndex(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	idx := recording.Sorted(a.controller.State().Index, key, reverse)
	out := cmd.OutOrStdout()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(idx)
	}

	if len(idx) == 0 {
		util.InfoLog("No recordings in %s", a.controller.Location())
		return nil
	}
	writeTable(out, idx, util.GetTerminalWidth())
	return nil
}

// writeTable prints one line per recording, shortening names to fit width
func writeTable(w io.Writer, idx recording.Index, width int) {
	const fixed = 16 + 2 + 10 + 2 + 8 + 2 + 9 + 2
	nameWidth := width - fixed
	if nameWidth < 16 {
		nameWidth = 16
	}

	fmt.Fprintf(w, "%-16s  %-10s  %8s  %9s  %s\n", "DATE", "DIRECTION", "DURATION", "SIZE", "NAME")
	var total int64
	for _, r := range idx {
		total += r.Size
		fmt.Fprintf(w, "%-16s  %-10s  %8s  %9s  %s\n",
			formatDate(r.Date),
			formatDirection(r),
			formatDuration(r.Duration),
			humanize.Bytes(uint64(r.Size)),
			truncate(r.Name, nameWidth))
	}
	fmt.Fprintf(w, "\n%d recordings, %s\n", len(idx), humanize.Bytes(uint64(total)))
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatDirection(r recording.Recording) string {
	if r.Direction == "" {
		return "-"
	}
	if r.SimSlot > 0 {
		return fmt.Sprintf("%s/sim%d", r.Direction, r.SimSlot)
	}
	return string(r.Direction)
}

// formatDuration renders seconds as m:ss or h:mm:ss
func formatDuration(secs float64) string {
	if secs <= 0 {
		return "-"
	}
	d := time.Duration(secs * float64(time.Second)).Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max-1])) + "…"
}
