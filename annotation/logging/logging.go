// Package logging builds the logrus logger shared by the pipeline.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Options configures New. Zero values fall back to the ENVIRONMENT and LOG_LEVEL variables.
type Options struct {
	// Level is one of debug, info, warn, error. Empty reads LOG_LEVEL, then defaults to info.
	Level string

	// Format is "text" or "json". Empty picks text when ENVIRONMENT is unset or "local".
	Format string

	Output io.Writer
}

func New(opts Options) (*logrus.Logger, error) {
	base := logrus.New()

	format := opts.Format
	if format == "" {
		env := os.Getenv("ENVIRONMENT")
		if env == "" || env == "local" {
			format = "text"
		} else {
			format = "json"
		}
	}
	switch format {
	case "text":
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	case "json":
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	base.SetOutput(out)

	level := opts.Level
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	base.SetLevel(lvl)
	return base, nil
}

func parseLevel(s string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return logrus.InfoLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}

// Discard returns a logger that writes nowhere.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
