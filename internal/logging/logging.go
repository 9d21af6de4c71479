// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"strings"

	logger "github.com/sirupsen/logrus"

	"github.com/rigdev/repogov/internal/config"
)

// Setup applies level and format from cfg to the standard logger.
// verbose forces debug level.
func Setup(cfg config.LogConfig, out io.Writer, verbose bool) error {
	l, err := New(cfg, out, verbose)
	if err != nil {
		return err
	}
	std := logger.StandardLogger()
	std.SetOutput(l.Out)
	std.SetFormatter(l.Formatter)
	std.SetLevel(l.Level)
	return nil
}

// New builds a logger from cfg without touching the standard logger.
func New(cfg config.LogConfig, out io.Writer, verbose bool) (*logger.Logger, error) {
	l := logger.New()
	if out != nil {
		l.SetOutput(out)
	}

	level := logger.InfoLevel
	if cfg.Level != "" {
		parsed, err := logger.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}
	if verbose {
		level = logger.DebugLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		//nolint:exhaustruct // only the fields we care about
		l.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
	case "json":
		//nolint:exhaustruct // default field names
		l.SetFormatter(&logger.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return l, nil
}
