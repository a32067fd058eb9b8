package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"

	"videoinsight/internal/pipeline"
	"videoinsight/internal/task"
)

// progressPrinter renders pipeline progress. On a terminal it redraws one
// line; otherwise it prints a line per status change and per 10 points.
type progressPrinter struct {
	out   io.Writer
	live  bool
	mu    sync.Mutex
	state map[string]printed
}

type printed struct {
	status task.Status
	decile int
}

func newProgressPrinter(out io.Writer, allowLive bool) *progressPrinter {
	return &progressPrinter{
		out:   out,
		live:  allowLive && isTerminal(out),
		state: make(map[string]printed),
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *progressPrinter) callback(label string) pipeline.ProgressCallback {
	return func(status task.Status, progress int, message string) {
		p.mu.Lock()
		defer p.mu.Unlock()

		line := fmt.Sprintf("[%3d%%] %-11s %s", progress, status, message)
		if label != "" {
			line = label + " " + line
		}
		if p.live {
			fmt.Fprintf(p.out, "\r\033[K%s", line)
			if status.Terminal() {
				fmt.Fprintln(p.out)
			}
			return
		}

		last, seen := p.state[label]
		decile := progress / 10
		if seen && last.status == status && last.decile == decile && !status.Terminal() {
			return
		}
		p.state[label] = printed{status: status, decile: decile}
		fmt.Fprintln(p.out, strings.TrimRight(line, " "))
	}
}
