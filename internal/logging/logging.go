// Package logging builds the structured logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Formats accepted by New.
const (
	FormatLogfmt = "logfmt"
	FormatJSON   = "json"
)

// New returns a logger writing format to w, stamped with a UTC timestamp and
// the caller, dropping records below lvl (debug, info, warn, error).
func New(w io.Writer, format, lvl string) (log.Logger, error) {
	var logger log.Logger
	switch strings.ToLower(format) {
	case "", FormatLogfmt:
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	case FormatJSON:
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	default:
		return nil, fmt.Errorf("unknown log format %q (want logfmt or json)", format)
	}

	opt, err := levelOption(lvl)
	if err != nil {
		return nil, err
	}
	logger = level.NewFilter(logger, opt)
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	logger = log.With(logger, "caller", log.DefaultCaller)
	return logger, nil
}

func levelOption(lvl string) (level.Option, error) {
	switch strings.ToLower(lvl) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn", "warning":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	case "none":
		return level.AllowNone(), nil
	default:
		return nil, fmt.Errorf("unknown log level %q (want debug, info, warn, error or none)", lvl)
	}
}

// OrNop returns l, or a logger that discards everything when l is nil.
func OrNop(l log.Logger) log.Logger {
	if l == nil {
		return log.NewNopLogger()
	}
	return l
}
