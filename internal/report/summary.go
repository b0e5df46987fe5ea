package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/franz/bcr-index/internal/recording"
	"github.com/franz/bcr-index/internal/store"
)

// SummaryReport describes one recordings directory: what its index holds and
// what recent passes and deletions did to it
type SummaryReport struct {
	GeneratedAt time.Time
	Location    string

	// Index statistics
	Recordings    int
	WithMetadata  int
	TotalSize     int64
	TotalDuration time.Duration
	ByDirection   map[recording.Direction]int
	Oldest        time.Time
	Newest        time.Time

	// History
	Passes       []*store.Pass
	FailedPasses int
	Deletions    []*store.Deletion
	TopErrors    []ErrorSummary

	// Metadata
	DatabasePath string
	EventLogPath string
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// GenerateSummaryReport builds a report for loc from its index and the
// history database. db may be nil, in which case only index statistics are
// filled in.
func GenerateSummaryReport(ctx context.Context, db *store.Store, loc string, idx recording.Index, limit int) (*SummaryReport, error) {
	report := &SummaryReport{
		GeneratedAt: time.Now(),
		Location:    loc,
		ByDirection: make(map[recording.Direction]int),
		TopErrors:   make([]ErrorSummary, 0),
	}

	for _, rec := range idx.Live() {
		report.Recordings++
		if rec.HasMetadata() {
			report.WithMetadata++
		}
		report.TotalSize += rec.Size
		report.TotalDuration += time.Duration(rec.Duration * float64(time.Second))
		if rec.Direction != "" {
			report.ByDirection[rec.Direction]++
		}
		if rec.Date.IsZero() {
			continue
		}
		if report.Oldest.IsZero() || rec.Date.Before(report.Oldest) {
			report.Oldest = rec.Date
		}
		if rec.Date.After(report.Newest) {
			report.Newest = rec.Date
		}
	}

	if db == nil {
		return report, nil
	}

	passes, err := db.RecentPasses(ctx, loc, limit)
	if err != nil {
		return nil, err
	}
	report.Passes = passes

	deletions, err := db.RecentDeletions(ctx, loc, limit)
	if err != nil {
		return nil, err
	}
	report.Deletions = deletions

	errorCounts := make(map[string]int)
	for _, p := range passes {
		if p.Error != "" {
			report.FailedPasses++
			errorCounts[p.Error]++
		}
	}
	for _, d := range deletions {
		if d.Error != "" {
			errorCounts[d.Error]++
		}
	}
	report.TopErrors = topErrors(errorCounts, 10)

	return report, nil
}

func topErrors(counts map[string]int, limit int) []ErrorSummary {
	errors := make([]ErrorSummary, 0, len(counts))
	for err, count := range counts {
		errors = append(errors, ErrorSummary{Error: err, Count: count})
	}

	// Sort by count (descending), then text for stable output
	sort.Slice(errors, func(i, j int) bool {
		if errors[i].Count != errors[j].Count {
			return errors[i].Count > errors[j].Count
		}
		return errors[i].Error < errors[j].Error
	})

	if len(errors) > limit {
		errors = errors[:limit]
	}
	return errors
}

// RenderMarkdown returns the report as Markdown
func RenderMarkdown(report *SummaryReport) string {
	var md strings.Builder

	// Header
	md.WriteString("# Call Recordings - Summary Report\n\n")
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))
	md.WriteString(fmt.Sprintf("**Location:** `%s`\n\n", report.Location))
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	md.WriteString(fmt.Sprintf("| Recordings | %d |\n", report.Recordings))
	md.WriteString(fmt.Sprintf("| With Metadata | %d |\n", report.WithMetadata))
	md.WriteString(fmt.Sprintf("| Total Size | %s |\n", humanize.Bytes(uint64(report.TotalSize))))
	if report.TotalDuration > 0 {
		md.WriteString(fmt.Sprintf("| Total Duration | %s |\n", report.TotalDuration.Round(time.Second)))
	}
	if !report.Oldest.IsZero() {
		md.WriteString(fmt.Sprintf("| Oldest | %s |\n", report.Oldest.Format("2006-01-02 15:04")))
		md.WriteString(fmt.Sprintf("| Newest | %s |\n", report.Newest.Format("2006-01-02 15:04")))
	}
	md.WriteString("\n")

	// Directions
	if len(report.ByDirection) > 0 {
		md.WriteString("## Directions\n\n")
		md.WriteString("| Direction | Count |\n")
		md.WriteString("|-----------|-------|\n")
		for _, dir := range []recording.Direction{recording.DirectionIn, recording.DirectionOut, recording.DirectionConference} {
			if n := report.ByDirection[dir]; n > 0 {
				md.WriteString(fmt.Sprintf("| %s | %d |\n", dir, n))
			}
		}
		md.WriteString("\n")
	}

	// Passes
	if len(report.Passes) > 0 {
		md.WriteString(fmt.Sprintf("## Recent Passes (%d, %d failed)\n\n", len(report.Passes), report.FailedPasses))
		md.WriteString("| Started | Duration | Added | Unchanged | Removed | Result |\n")
		md.WriteString("|---------|----------|-------|-----------|---------|--------|\n")
		for _, p := range report.Passes {
			result := "ok"
			if p.Error != "" {
				result = "failed"
			} else if p.MetadataErrors > 0 {
				result = fmt.Sprintf("%d metadata errors", p.MetadataErrors)
			}
			md.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %d | %s |\n",
				p.StartedAt.Format("2006-01-02 15:04:05"),
				p.Duration.Round(time.Millisecond),
				p.AddedCount, p.Unchanged, p.RemovedCount, result))
		}
		md.WriteString("\n")
	}

	// Deletions
	if len(report.Deletions) > 0 {
		md.WriteString("## Recent Deletions\n\n")
		md.WriteString("| When | Recording | Files Removed | Error |\n")
		md.WriteString("|------|-----------|---------------|-------|\n")
		for _, d := range report.Deletions {
			md.WriteString(fmt.Sprintf("| %s | `%s` | %d | %s |\n",
				humanize.Time(d.DeletedAt),
				truncatePath(d.AudioFile, 60),
				len(d.DeletedFiles),
				d.Error))
		}
		md.WriteString("\n")
	}

	// Errors
	if len(report.TopErrors) > 0 {
		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, err := range report.TopErrors {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", err.Count, err.Error))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by bcrx*\n")
	return md.String()
}

// WriteMarkdownReport writes the summary report as Markdown
func WriteMarkdownReport(report *SummaryReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, []byte(RenderMarkdown(report)), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// truncatePath truncates a file name to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}
