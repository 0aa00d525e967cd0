package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	progressInterval = 120 * time.Millisecond
	progressFrames   = `|/-\`
)

// progress redraws a single status line with a spinner frame and the elapsed
// time until Stop is called. It writes to its own writer so result output on
// stdout stays clean.
type progress struct {
	w       io.Writer
	message string
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func startProgress(w io.Writer, message string, interval time.Duration) (p *progress) {
	p = &progress{
		w:       w,
		message: message,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run(interval)
	return p
}

func (p *progress) run(interval time.Duration) {
	defer close(p.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	began := time.Now()
	width := 0
	for frame := 0; ; frame++ {
		line := fmt.Sprintf("%s %c %s", p.message, progressFrames[frame%len(progressFrames)], time.Since(began).Truncate(time.Second))
		pad := ""
		if len(line) < width {
			pad = strings.Repeat(" ", width-len(line))
		}
		width = len(line)
		_, _ = fmt.Fprintf(p.w, "\r%s%s", line, pad)

		select {
		case <-p.quit:
			_, _ = fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", width))
			return
		case <-ticker.C:
		}
	}
}

// Stop erases the status line and waits for the redraw loop to exit. It is
// safe to call more than once and on a nil progress.
func (p *progress) Stop() {
	if p == nil {
		return
	}
	p.once.Do(func() { close(p.quit) })
	<-p.done
}
