package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs one completed HTTP exchange at a level matching its
// status: client errors warn, server errors error, everything else debug.
func LogRequest(log Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":   method,
		"url":      url,
		"status":   statusCode,
		"duration": duration,
	}

	switch {
	case statusCode >= 500:
		log.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		log.WarnWithFields("HTTP request client error", fields)
	default:
		log.DebugWithFields("HTTP request completed", fields)
	}
}

// LogArchived logs a record that was appended to the archive
func LogArchived(log Logger, screenName, id, url string) {
	log.DebugWithFields("archived", map[string]interface{}{
		"author": screenName,
		"id":     id,
		"url":    url,
	})
}

// LogQuotaWait logs a pause taken while the request quota is exhausted
func LogQuotaWait(log Logger, remaining int, reset time.Time, sleep time.Duration) {
	log.WarnWithFields("request quota exhausted, waiting", map[string]interface{}{
		"remaining": remaining,
		"reset":     reset,
		"sleep":     sleep,
		"action":    "rate_limited",
	})
}

// LogComponentStart logs a retrieval mode beginning work
func LogComponentStart(log Logger, component string, fields map[string]interface{}) {
	scoped := log.WithField("component", component)

	if len(fields) > 0 {
		scoped = scoped.WithFields(fields)
	}

	scoped.Info("component started")
}

// LogComponentStop logs a retrieval mode finishing, with the reason it ended
func LogComponentStop(log Logger, component string, reason string) {
	log.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing (useful for testing)
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
