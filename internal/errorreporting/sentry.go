// Package errorreporting forwards run failures to Sentry when a DSN is
// configured. Every exported function is a no-op otherwise.
package errorreporting

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/onnwee/particle-dynamics/internal/simerr"
)

// Settings configures the Sentry client.
type Settings struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64
}

var enabled atomic.Bool

// Patterns scrubbed from event text before it leaves the process.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_-]{20,}`),
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|dsn)["\s:=]+[a-zA-Z0-9_:/@.-]{16,}`),
	regexp.MustCompile(`/home/[^/\s]+`),
}

// Init configures Sentry. An empty DSN disables reporting without error.
func Init(s Settings) error {
	if s.DSN == "" {
		enabled.Store(false)
		return nil
	}
	if err := ValidateDSN(s.DSN); err != nil {
		return err
	}
	release := s.Release
	if release == "" {
		release = "dev"
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              s.DSN,
		Environment:      s.Environment,
		Release:          release,
		SampleRate:       s.SampleRate,
		BeforeSend:       beforeSend,
		AttachStacktrace: true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	enabled.Store(true)
	return nil
}

// Enabled reports whether Init configured a client.
func Enabled() bool { return enabled.Load() }

func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	for i := range event.Exception {
		event.Exception[i].Value = Scrub(event.Exception[i].Value)
	}
	event.Message = Scrub(event.Message)
	for k, v := range event.Extra {
		if s, ok := v.(string); ok {
			event.Extra[k] = Scrub(s)
		}
	}
	if event.Request != nil {
		delete(event.Request.Headers, "Authorization")
		delete(event.Request.Headers, "Cookie")
		event.Request.QueryString = ""
	}
	return event
}

// Scrub redacts credentials, addresses and home directories from text.
func Scrub(text string) string {
	for _, p := range sensitivePatterns {
		text = p.ReplaceAllString(text, "[REDACTED]")
	}
	return text
}

// stepped is satisfied by errors that know the step they stopped at.
type stepped interface {
	error
	StepIndex() uint64
}

// runFailureTags derives the Sentry tags for a failed run.
func runFailureTags(err error, runID string) map[string]string {
	tags := map[string]string{"error_code": string(simerr.CodeOf(err))}
	if runID != "" {
		tags["run_id"] = runID
	}
	var s stepped
	if errors.As(err, &s) {
		tags["step"] = strconv.FormatUint(s.StepIndex(), 10)
	}
	return tags
}

// CaptureRunFailure reports a failed run tagged with its error code, run ID
// and failing step.
func CaptureRunFailure(err error, runID string, extras map[string]interface{}) {
	if err == nil || !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTags(runFailureTags(err, runID))
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// CapturePanic reports a recovered panic value.
func CapturePanic(where string, r interface{}) {
	if !Enabled() {
		return
	}
	hub := sentry.CurrentHub().Clone()
	hub.Scope().SetTag("where", where)
	if err, ok := r.(error); ok {
		hub.CaptureException(err)
		return
	}
	hub.CaptureMessage(Scrub(fmt.Sprintf("panic in %s: %v", where, r)))
}

// AddBreadcrumb records a milestone attached to later events.
func AddBreadcrumb(category, message string) {
	if !Enabled() {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	})
}

// Flush waits for buffered events to be sent.
func Flush(timeout time.Duration) bool {
	if !Enabled() {
		return true
	}
	return sentry.Flush(timeout)
}

// ValidateDSN checks that dsn looks like a Sentry DSN URL.
func ValidateDSN(dsn string) error {
	if !strings.HasPrefix(dsn, "https://") && !strings.HasPrefix(dsn, "http://") {
		return errors.New("invalid Sentry DSN format")
	}
	return nil
}
