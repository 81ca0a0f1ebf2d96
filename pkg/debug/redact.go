package debug

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// RedactedPlaceholder replaces secret values in log output.
const RedactedPlaceholder = "[REDACTED]"

var sensitivePatterns = []*regexp.Regexp{
	// Bearer tokens, as sent to the chat endpoint.
	regexp.MustCompile(`Bearer\s+[A-Za-z0-9._~+/=-]{8,}`),
	// Tencent Cloud SecretIds.
	regexp.MustCompile(`AKID[A-Za-z0-9]{16,}`),
	// "secret_key": "..." style pairs in raw JSON or YAML.
	regexp.MustCompile(`(?i)("?secret_(?:key|id)"?\s*[:=]\s*)"?[^"\s,}]+"?`),
}

// sensitiveWords are matched against whole words of an attribute key, so
// "access_token" and "secret_key" are redacted while "prompt_tokens" is not.
var sensitiveWords = map[string]bool{
	"authorization": true,
	"apikey":        true,
	"secret":        true,
	"secretid":      true,
	"secretkey":     true,
	"password":      true,
	"token":         true,
	"credential":    true,
	"credentials":   true,
}

// Redact replaces anything that looks like a credential in s.
func Redact(s string) string {
	for i, pattern := range sensitivePatterns {
		if i == len(sensitivePatterns)-1 {
			s = pattern.ReplaceAllString(s, "${1}"+RedactedPlaceholder)
			continue
		}
		s = pattern.ReplaceAllString(s, RedactedPlaceholder)
	}
	return s
}

// RedactedHandler wraps an slog.Handler and redacts secrets from records.
type RedactedHandler struct {
	inner slog.Handler
}

// NewRedactedHandler wraps inner.
func NewRedactedHandler(inner slog.Handler) *RedactedHandler {
	return &RedactedHandler{inner: inner}
}

// Enabled reports whether the handler handles records at the given level.
func (h *RedactedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle redacts the message and attributes, then delegates.
func (h *RedactedHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, Redact(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, out)
}

// WithAttrs returns a new handler with the given attributes redacted and added.
func (h *RedactedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactedHandler{inner: h.inner.WithAttrs(redacted)}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactedHandler) WithGroup(name string) slog.Handler {
	return &RedactedHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, RedactedPlaceholder)
	}
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		redacted := make([]any, len(group))
		for i, ga := range group {
			redacted[i] = redactAttr(ga)
		}
		return slog.Group(a.Key, redacted...)
	}
	return a
}

func isSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	if strings.Contains(key, "api_key") || strings.Contains(key, "api-key") {
		return true
	}
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for _, w := range words {
		if sensitiveWords[w] {
			return true
		}
	}
	return false
}
