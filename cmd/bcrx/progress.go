package main

import (
	"github.com/franz/bcr-index/internal/library"
	"github.com/franz/bcr-index/internal/scan"
)

// followProgress renders the controller's scan progress until the returned
// stop func is called
func followProgress(ctrl *library.Controller, description string) func() {
	update, finish := scan.TerminalProgress(description)
	ch, cancel := ctrl.Subscribe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for st := range ch {
			if st.Phase == library.PhaseScanning {
				update(st.Progress)
			}
		}
	}()

	return func() {
		cancel()
		<-done
		finish()
	}
}
