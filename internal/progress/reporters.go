package progress

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/onnwee/particle-dynamics/internal/logger"
	"github.com/onnwee/particle-dynamics/internal/metrics"
)

// Terminal rewrites a single status line on w using carriage returns.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

// NewTerminal creates a terminal reporter writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Report(r Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	eta := "unknown"
	if r.HasETA {
		eta = fmt.Sprintf("%.2f s", r.Remaining.Seconds())
	}
	fmt.Fprintf(t.w, "\rProgress: %.2f%%. Estimated time remaining: %s (%s/%s steps)",
		r.Percent, eta, humanize.Comma(int64(r.Done)), humanize.Comma(int64(r.Total)))
}

func (t *Terminal) Finish(s Summary) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "\rProgress: 100.00%%. Completed %s steps in %.2f s\n",
		humanize.Comma(int64(s.Steps)), s.Elapsed.Seconds())
}

// Log writes progress through slog, at most once per interval.
type Log struct {
	log      *slog.Logger
	interval time.Duration
	last     time.Time
}

// NewLog creates a log reporter. A zero interval logs every report.
func NewLog(interval time.Duration) *Log {
	return &Log{log: logger.WithComponent("progress"), interval: interval}
}

func (l *Log) Report(r Report) {
	now := time.Now()
	if l.interval > 0 && !l.last.IsZero() && now.Sub(l.last) < l.interval {
		return
	}
	l.last = now
	args := []any{
		"done", r.Done,
		"total", r.Total,
		"percent", fmt.Sprintf("%.2f", r.Percent),
		"elapsed", r.Elapsed.Round(time.Millisecond),
	}
	if r.HasETA {
		args = append(args, "remaining", r.Remaining.Round(time.Millisecond))
	}
	l.log.Info("Run progress", args...)
}

func (l *Log) Finish(s Summary) {
	l.log.Info("Run finished", "steps", s.Steps, "elapsed", s.Elapsed.Round(time.Millisecond))
}

// Gauge mirrors progress into Prometheus gauges.
type Gauge struct{}

func (Gauge) Report(r Report) {
	metrics.RunProgressRatio.Set(r.Percent / 100)
	if r.HasETA {
		metrics.RunRemainingSeconds.Set(r.Remaining.Seconds())
	}
}

func (Gauge) Finish(Summary) {
	metrics.RunProgressRatio.Set(1)
	metrics.RunRemainingSeconds.Set(0)
}
