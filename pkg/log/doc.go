// Package log provides bifrost's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a bridge handler that preserves the
// formatter/outputs pipeline, so every component logs with the same shape.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("bifrost"), log.Uint64("log_id", 3))
//	l.Info("segment sealed", log.Uint64("until_lsn", 42))
//
// # Configuration
//
// Use ApplyConfig to build a logger from a declarative Config (text or json).
// RedirectStdLog routes the standard library logger, which Pebble writes to,
// through a Logger.
package log
