// Package logging provides structured logging for partcompat.
//
// This package wraps Go's standard log/slog package so every component logs
// the same way:
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// Logging is configured via the logging section of config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("linked models", "part_type", "glass", "count", 3)
//	logger.Error("failed to delete phone", "error", err)
package logging
