package cmd

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// spinnerInterval is how often the spinner advances.
const spinnerInterval = 100 * time.Millisecond

// withSpinner runs fn while a spinner turns on stderr. Without a terminal
// on stderr fn runs silently.
func withSpinner(desc string, fn func() error) error {
	fd := os.Stderr.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return fn()
	}
	return spin(os.Stderr, desc, fn)
}

func spin(w io.Writer, desc string, fn func() error) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(spinnerInterval),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	err := fn()
	close(done)
	<-stopped
	_ = bar.Finish()
	return err
}
