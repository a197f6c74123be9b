package utils

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

const spinInterval = 100 * time.Millisecond

// StderrIsTerminal reports whether stderr is attached to a TTY.
func StderrIsTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// Spin draws an indeterminate spinner on stderr until the returned stop func is called.
// stop is safe to call more than once. When enabled is false nothing is drawn.
func Spin(description string, enabled bool) (stop func()) {
	if !enabled {
		return func() {}
	}
	return spinTo(os.Stderr, description)
}

func spinTo(w io.Writer, description string) (stop func()) {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(spinInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			bar.Finish()
		})
	}
}
