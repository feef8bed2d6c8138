// Package observability wires structured logging for mediarr.
package observability

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/reybeld94/mediarr/internal/config"
)

// NewLogger creates a slog.Logger from the logging configuration, writing
// to stdout.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a slog.Logger writing to w. Attribute values
// under credential-looking keys are redacted, as are credential query
// parameters inside logged URLs: provider playback URLs embed the panel
// password, and those URLs end up in logs constantly.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactAttr(a)
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// SetDefault installs the logger as the process default.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// WithComponent tags a logger with the subsystem it serves.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const redactedMarker = "[REDACTED]"

// sensitiveKeys are attribute and query parameter names whose values never
// belong in logs.
var sensitiveKeys = []string{"password", "secret", "token", "apikey", "api_key", "credential"}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if k == s {
			return true
		}
	}
	return false
}

func redactAttr(a slog.Attr) slog.Attr {
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, redactedMarker)
	}
	if a.Value.Kind() == slog.KindString {
		if s := a.Value.String(); strings.Contains(s, "?") && strings.Contains(s, "://") {
			if redacted := redactURL(s); redacted != s {
				return slog.String(a.Key, redacted)
			}
		}
	}
	return a
}

// redactURL blanks credential query parameters in a URL string, leaving the
// rest of the query intact and ordered.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}

	pairs := strings.Split(u.RawQuery, "&")
	changed := false
	for i, pair := range pairs {
		key, _, ok := strings.Cut(pair, "=")
		if ok && isSensitiveKey(key) {
			pairs[i] = key + "=" + redactedMarker
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = strings.Join(pairs, "&")
	return u.String()
}
