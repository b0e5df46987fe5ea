package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/franz/bcr-index/internal/index"
	"github.com/franz/bcr-index/internal/storage"
	"github.com/franz/bcr-index/internal/store"
	"github.com/franz/bcr-index/internal/util"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the configuration and recordings directory",
	Long: `Run diagnostic checks to ensure bcrx can operate correctly.

This command checks:
- Selected recordings directory and storage access
- Network filesystem detection (enables the patient retry profile)
- Index document health (schema version, leftover temp file)
- SQLite version and history database integrity

Use this command to troubleshoot issues before refreshing.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	util.InfoLog("=== bcrx doctor - diagnostics ===")
	util.InfoLog("")

	a, err := newApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	results := []checkResult{}
	loc := a.controller.Location()

	results = append(results, checkLocation(loc, a.settings.Path()))
	if loc != "" {
		results = append(results, checkStorage(ctx, a.gateway, loc))
		if a.cfg.Backend == "fs" {
			results = append(results, checkNetwork(string(loc)))
		}
		results = append(results, checkIndex(a.index.Inspect(ctx, loc)))
	}
	results = append(results, checkSQLite())
	results = append(results, checkHistory(a.history))

	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false
	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Please resolve errors before running bcrx.")
		return fmt.Errorf("diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed.")
	}
	return nil
}

// checkLocation verifies a recordings directory has been selected
func checkLocation(loc storage.Location, settingsPath string) checkResult {
	if loc == "" {
		return checkResult{
			name:    "Recordings directory",
			error:   true,
			message: "not selected (run 'bcrx select')",
		}
	}
	return checkResult{
		name:    "Recordings directory",
		message: fmt.Sprintf("%s (settings: %s)", loc, settingsPath),
	}
}

// checkStorage verifies the directory can be listed
func checkStorage(ctx context.Context, gw storage.Gateway, loc storage.Location) checkResult {
	entries, err := gw.ListFiles(ctx, loc)
	if err != nil {
		return checkResult{
			name:    "Storage",
			error:   true,
			message: fmt.Sprintf("cannot list %s: %v", loc, err),
		}
	}

	audio, sidecars := 0, 0
	for _, e := range entries {
		switch {
		case e.IsDirectory:
		case e.Type == "application/json":
			sidecars++
		case strings.HasPrefix(e.Type, "audio/"):
			audio++
		}
	}
	return checkResult{
		name:    "Storage",
		message: fmt.Sprintf("%d entries (%d audio, %d metadata)", len(entries), audio, sidecars),
	}
}

// checkNetwork reports whether the directory is on a network mount
func checkNetwork(path string) checkResult {
	info, err := util.DetectNetworkFilesystem(path)
	if err != nil {
		return checkResult{
			name:    "Filesystem",
			warning: true,
			message: fmt.Sprintf("cannot detect: %v", err),
		}
	}
	if info.IsNetwork {
		return checkResult{
			name:    "Filesystem",
			message: fmt.Sprintf("network (%s at %s), using patient retries", info.Protocol, info.MountPath),
		}
	}
	return checkResult{name: "Filesystem", message: "local"}
}

// checkIndex describes the persisted index document
func checkIndex(h *index.Health) checkResult {
	name := "Index document"
	if h.Err != nil {
		return checkResult{name: name, error: true, message: h.Err.Error()}
	}
	if !h.Exists {
		return checkResult{name: name, message: "not created yet (will be on first refresh)"}
	}

	msg := fmt.Sprintf("schema v%d, %d entries", h.SchemaVersion, h.Entries)
	warning := false
	if h.NeedsUpgrade {
		msg += fmt.Sprintf(", will be upgraded to v%d", index.SchemaVersion)
	}
	if h.StaleTemp {
		msg += fmt.Sprintf(", leftover %s from an interrupted save", index.TempName)
		warning = true
	}
	return checkResult{name: name, message: msg, warning: warning}
}

// checkSQLite verifies SQLite version
func checkSQLite() checkResult {
	// modernc.org/sqlite is built in, just verify we can get the version
	version, err := store.SQLiteVersion()
	if err != nil {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: fmt.Sprintf("unable to determine version: %v", err),
		}
	}
	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkHistory verifies the history database
func checkHistory(db *store.Store) checkResult {
	if db == nil {
		return checkResult{
			name:    "History database",
			warning: true,
			message: "unavailable, passes are not recorded",
		}
	}
	if err := db.CheckIntegrity(context.Background()); err != nil {
		return checkResult{
			name:    "History database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}
	passes, _ := db.RecentPasses(context.Background(), "", 1)
	msg := "ok, no passes yet"
	if len(passes) > 0 {
		msg = fmt.Sprintf("ok, last pass %s", passes[0].StartedAt.Format("2006-01-02 15:04"))
	}
	return checkResult{name: "History database", message: msg}
}
