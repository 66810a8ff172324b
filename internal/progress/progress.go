// Package progress turns raw step counts into progress reports and delivers
// them to terminals, logs, metrics and live subscribers.
package progress

import (
	"time"
)

// Report is a point-in-time view of a running simulation.
type Report struct {
	Done      uint64        `json:"done"`
	Total     uint64        `json:"total"`
	Percent   float64       `json:"percent"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Remaining time.Duration `json:"remaining_ns"`
	// HasETA is false until at least one step has completed.
	HasETA bool `json:"has_eta"`
}

// Summary describes a finished run.
type Summary struct {
	Steps   uint64        `json:"steps"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Reporter receives reports from the run monitor. Report is called from a
// single goroutine; Finish is called once after the last Report.
type Reporter interface {
	Report(Report)
	Finish(Summary)
}

// Estimate computes percentage and remaining time by linear extrapolation
// of the average step duration so far.
func Estimate(done, total uint64, elapsed time.Duration) Report {
	r := Report{Done: done, Total: total, Elapsed: elapsed}
	if total == 0 {
		r.Percent = 100
		r.HasETA = true
		return r
	}
	if done > total {
		done = total
		r.Done = total
	}
	r.Percent = float64(done) / float64(total) * 100
	if done == 0 {
		return r
	}
	perStep := float64(elapsed) / float64(done)
	r.Remaining = time.Duration(perStep * float64(total-done))
	r.HasETA = true
	return r
}

// Multi fans every call out to each non-nil reporter in order.
type Multi []Reporter

func (m Multi) Report(r Report) {
	for _, rep := range m {
		if rep != nil {
			rep.Report(r)
		}
	}
}

func (m Multi) Finish(s Summary) {
	for _, rep := range m {
		if rep != nil {
			rep.Finish(s)
		}
	}
}
