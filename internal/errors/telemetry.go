// Package errors - telemetry integration (optional)
package errors

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"
)

// TelemetryReporter is an interface for reporting errors to telemetry systems
type TelemetryReporter interface {
	ReportError(err *EnhancedError)
	IsEnabled() bool
}

// SentryReporter implements TelemetryReporter for Sentry
type SentryReporter struct {
	enabled bool
}

// NewSentryReporter creates a new Sentry telemetry reporter
func NewSentryReporter(enabled bool) *SentryReporter {
	return &SentryReporter{enabled: enabled}
}

// InitSentry initializes the Sentry client and installs a SentryReporter.
// An empty DSN leaves telemetry disabled.
func InitSentry(dsn, release string) error {
	if dsn == "" {
		SetTelemetryReporter(nil)
		return nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          release,
		AttachStacktrace: true,
	}); err != nil {
		return New(err).
			Component("telemetry").
			Category(CategoryConfiguration).
			Context("operation", "sentry_init").
			Build()
	}
	SetTelemetryReporter(NewSentryReporter(true))
	return nil
}

// FlushSentry waits for buffered events to be delivered.
func FlushSentry(timeout time.Duration) {
	sentry.Flush(timeout)
}

// IsEnabled returns whether Sentry telemetry is enabled
func (sr *SentryReporter) IsEnabled() bool {
	return sr.enabled
}

// ReportError reports an enhanced error to Sentry with privacy protection
func (sr *SentryReporter) ReportError(ee *EnhancedError) {
	if !sr.enabled || ee.IsReported() {
		return
	}

	message := scrubMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Error()))
	title := errorTitle(ee)
	level := errorLevel(ee.Category)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_title", title)
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		for key, value := range ee.GetContext() {
			if s, ok := value.(string); ok {
				value = scrubMessage(s)
			}
			scope.SetContext(key, map[string]any{"value": value})
		}
		scope.SetLevel(level)
		scope.SetFingerprint([]string{title, ee.Component, string(ee.Category)})

		event := sentry.NewEvent()
		event.Message = message
		event.Level = level
		event.Exception = []sentry.Exception{{Type: title, Value: message}}
		sentry.CaptureEvent(event)
	})

	ee.MarkReported()
}

// errorTitle builds "Component Category Operation" for grouping in Sentry.
func errorTitle(ee *EnhancedError) string {
	var parts []string
	if ee.Component != "" && ee.Component != ComponentUnknown {
		parts = append(parts, titleCase(ee.Component))
	}
	parts = append(parts, categoryTitle(ee.Category))
	if op, ok := ee.GetContext()["operation"].(string); ok && op != "" {
		words := strings.Fields(strings.ReplaceAll(op, "_", " "))
		for i, w := range words {
			words[i] = titleCase(w)
		}
		parts = append(parts, strings.Join(words, " "))
	}
	return strings.Join(parts, " ")
}

func categoryTitle(category ErrorCategory) string {
	switch category {
	case CategoryValidation:
		return "Validation Error"
	case CategoryFileIO:
		return "File I/O Error"
	case CategoryAudioSource:
		return "Audio Source Error"
	case CategoryFrontEnd:
		return "Front-End Error"
	case CategoryDiskUsage:
		return "Disk Usage Error"
	case CategoryConfiguration:
		return "Configuration Error"
	case CategoryState:
		return "State Error"
	default:
		return titleCase(string(category))
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// errorLevel maps a category onto a Sentry level.
func errorLevel(category ErrorCategory) sentry.Level {
	switch category {
	case CategoryAudioSource, CategoryFrontEnd, CategoryTimeout, CategoryMQTTConnect, CategoryMQTTPublish:
		return sentry.LevelWarning
	case CategoryState, CategoryValidation:
		return sentry.LevelInfo
	default:
		return sentry.LevelError
	}
}

var (
	urlQueryRegex = regexp.MustCompile(`(https?://[^?\s]+)\?\S*`)
	secretRegex   = regexp.MustCompile(`(?i)(api[_-]?key|token|auth|password)[=:]\S+`)
	homeDirRegex  = regexp.MustCompile(`/home/[^/\s]+`)
)

// scrubMessage strips query strings, credentials and user home directories.
func scrubMessage(message string) string {
	scrubbed := urlQueryRegex.ReplaceAllString(message, "$1?[REDACTED]")
	scrubbed = secretRegex.ReplaceAllString(scrubbed, "$1=[REDACTED]")
	return homeDirRegex.ReplaceAllString(scrubbed, "/home/[USER]")
}
