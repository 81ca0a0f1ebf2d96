// Package debug provides category-based debug logging for the LKEAP adapters.
//
// Two orthogonal controls:
//   - Categories (WHAT to debug): controlled via LKEAP_DEBUG env or config
//   - Levels (HOW MUCH detail): controlled via LKEAP_LOG_LEVEL env or config
//
// Usage:
//
//	debug.Log("providers", "request", "model", model, "url", url)
//	if debug.Enabled("streaming") { /* expensive formatting */ }
//
// Categories: providers, streaming, rerank, config, all.
// Levels: ERROR, WARN, INFO, DEBUG, TRACE.
//
// Init installs a handler that redacts credentials from every record, so
// request payloads may be logged without leaking secret keys.
package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelTrace is below slog.LevelDebug for maximum verbosity.
// At TRACE, full untruncated request/response bodies are logged.
const LevelTrace = slog.LevelDebug - 4

// categories holds the set of enabled debug categories.
// Access is read-only after Init(), so no synchronization needed.
var categories map[string]bool

func init() {
	categories = parseCategories(os.Getenv("LKEAP_DEBUG"))
}

// Init configures the debug system. Called at startup with values
// from config and/or environment. Environment overrides config.
func Init(configCategories string, configLevel string) {
	cats := os.Getenv("LKEAP_DEBUG")
	if cats == "" {
		cats = configCategories
	}
	categories = parseCategories(cats)

	level := os.Getenv("LKEAP_LOG_LEVEL")
	if level == "" {
		level = configLevel
	}

	slog.SetDefault(slog.New(NewHandler(os.Stderr, ParseLevel(level))))
}

// NewHandler returns a text handler writing to w at the given level, wrapped
// so that secrets are redacted from messages and attributes.
func NewHandler(w io.Writer, level slog.Level) slog.Handler {
	return NewRedactedHandler(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// Enabled reports whether debug output is active for the given category.
func Enabled(category string) bool {
	return categories["all"] || categories[category]
}

// Log emits a debug message for the given category.
// If the category is not enabled, this is a no-op.
func Log(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Debug(msg, append([]any{"debug", category}, args...)...)
}

// Trace emits a trace-level message for the given category.
// Only visible when LKEAP_LOG_LEVEL=TRACE.
func Trace(category string, msg string, args ...any) {
	if !Enabled(category) {
		return
	}
	slog.Log(context.Background(), LevelTrace, msg, append([]any{"debug", category}, args...)...)
}

// TraceIsEnabled reports whether TRACE level is active for the given category.
func TraceIsEnabled(category string) bool {
	if !Enabled(category) {
		return false
	}
	return slog.Default().Enabled(context.Background(), LevelTrace)
}

// Raw writes plain text to stderr without any slog formatting. Secrets are
// still redacted. Only emitted when category is enabled AND level is TRACE.
func Raw(category string, text string) {
	if !TraceIsEnabled(category) {
		return
	}
	fmt.Fprintln(os.Stderr, Redact(text))
}

// ParseLevel converts a level string to a slog.Level.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Truncate returns s truncated to maxLen bytes, with "..." appended if truncated.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// knownCategories lists the categories the adapters log under.
var knownCategories = map[string]bool{
	"providers": true,
	"streaming": true,
	"rerank":    true,
	"config":    true,
	"all":       true,
}

// parseCategories drops unknown categories with a warning.
func parseCategories(s string) map[string]bool {
	m := make(map[string]bool)
	if s == "" {
		return m
	}
	for _, cat := range strings.Split(s, ",") {
		cat = strings.TrimSpace(strings.ToLower(cat))
		if cat == "" {
			continue
		}
		if !knownCategories[cat] {
			slog.Warn("ignoring unknown debug category", "category", cat)
			continue
		}
		m[cat] = true
	}
	return m
}
