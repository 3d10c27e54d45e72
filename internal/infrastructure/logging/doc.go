// Package logging provides structured logging for Gray Logic Tracker.
//
// This package wraps Go's standard log/slog package. Every entry carries
// service=graytracker and the build version; per-router loggers add
// component=coordinator and router=<id>.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	coord.SetLogger(logger.Router("fritz"))
//
// Never log router or broker passwords.
package logging
