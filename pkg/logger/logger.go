// Package logger builds the structured loggers used throughout the store.
// Every component logs through a *zap.SugaredLogger tagged with the
// service name that created it, so log lines from the engine, storage, and
// compaction subsystems can be told apart in aggregate output.
package logger

import (
	"go.uber.org/zap"
)

// New builds a production-configured SugaredLogger tagged with service.
// It falls back to a no-op logger if the production config fails to build,
// since a logging failure should never prevent the store from opening.
func New(service string) *zap.SugaredLogger {
	base, err := zap.NewProduction()
	if err != nil {
		base = zap.NewNop()
	}
	return base.With(zap.String("service", service)).Sugar()
}

// NewDevelopment builds a human-readable, colorized logger intended for the
// CLI front end, where output goes to a terminal rather than a log
// aggregator.
func NewDevelopment(service string) *zap.SugaredLogger {
	base, err := zap.NewDevelopment()
	if err != nil {
		base = zap.NewNop()
	}
	return base.With(zap.String("service", service)).Sugar()
}
