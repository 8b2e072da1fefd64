// Package logging provides structured logging for moonsim.
//
// It wraps log/slog with configuration-driven handler selection (JSON or
// text), level filtering, and default service/version attributes. Every
// component receives a *Logger through its constructor or Deps struct and
// logs with key-value pairs.
//
// Usage:
//
//	log := logging.New(cfg.Logging, version)
//	apiLog := log.With("component", "api", "port", 7125)
//	apiLog.Info("listener bound")
package logging
