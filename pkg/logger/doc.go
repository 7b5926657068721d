// Package logger provides a structured logging interface for the archiver.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output on stderr with colors
// - Optional file output for long unattended runs
// - Global logger instance for easy access
//
// Console output deliberately goes to stderr: when the tool emits records on
// stdout (hydrating identifiers without an archive file), log lines must not
// interleave with the record stream.
//
// Basic Usage:
//
//	import "twarchive/pkg/logger"
//
//	// Initialize the global logger
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File:  "twarchive.log",
//	}
//	err := logger.Initialize(cfg)
//
//	// Use the global logger
//	logger.Info("Archiver started")
//	logger.WithField("query", "ferguson").Info("Search started")
//	logger.WithError(err).Error("Fetch failed")
//
// Advanced Usage:
//
//	// Create a logger instance with fields
//	log := logger.GetLogger().
//	    WithField("component", "hydrator").
//	    WithField("batch", 3)
//
//	// Use structured logging
//	log.InfoWithFields("Batch resolved", map[string]interface{}{
//	    "requested": 100,
//	    "returned":  97,
//	})
package logger
