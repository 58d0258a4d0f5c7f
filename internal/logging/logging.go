// Package logging builds the process zerolog logger and redacts URLs when SAFE_LOGS is on.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/grafana/regexp"
	"github.com/rs/zerolog"
)

// Options selects output format and verbosity.
type Options struct {
	Level    string // zerolog level name; unknown names fall back to info
	JSON     bool
	SafeLogs bool
	Out      io.Writer // defaults to os.Stderr
}

var urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[a-zA-Z0-9+%/.\-:_?&=#@+~]+`)

var safe atomic.Bool

// New returns a logger configured from opts and records the redaction setting for URL.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	safe.Store(opts.SafeLogs)
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var w io.Writer = out
	if !opts.JSON {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// URL returns u unchanged, or a placeholder when safe logging is enabled.
func URL(u string) string {
	if safe.Load() {
		return Redact(u)
	}
	return u
}

// Redact replaces every URL in text.
func Redact(text string) string {
	return urlPattern.ReplaceAllString(text, "[redacted url]")
}

// Err formats err for logging, redacting embedded URLs when safe logging is enabled.
// net/http errors quote the request URL, so errors need the same treatment as URLs.
func Err(err error) string {
	if err == nil {
		return ""
	}
	if safe.Load() {
		return Redact(err.Error())
	}
	return err.Error()
}
