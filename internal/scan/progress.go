package scan

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/franz/bcr-index/internal/util"
)

const barMax = 1000

// TerminalProgress returns a ProgressFunc that renders a progress bar on a
// terminal, or logs every tenth of the pass when stdout is redirected. The
// returned finish func clears the bar.
func TerminalProgress(description string) (ProgressFunc, func()) {
	if util.IsQuiet() {
		return func(float64) {}, func() {}
	}

	if !util.IsTerminal(os.Stdout.Fd()) {
		lastDecile := 0
		return func(fraction float64) {
			decile := int(fraction * 10)
			if decile > lastDecile {
				lastDecile = decile
				util.InfoLog("%s: %d%%", description, decile*10)
			}
		}, func() {}
	}

	bar := progressbar.NewOptions(barMax,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
	update := func(fraction float64) { _ = bar.Set(int(fraction * barMax)) }
	finish := func() { _ = bar.Finish() }
	return update, finish
}
