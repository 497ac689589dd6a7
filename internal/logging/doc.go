// Package logging provides structured logging using uber/zap.
//
// Two modes are available:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Log Levels:
//   - Debug: Verbose debugging information (every record in the server)
//   - Info: General informational messages (channel lifecycle)
//   - Warn: Recoverable problems (malformed records, best-effort cleanup failures)
//   - Error: Failures returned to callers
//
// A log file can be added next to stdout, mirroring the -logfile flag of
// memipc-server. With rotation enabled the file is written through
// lumberjack and always uses the JSON encoding.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Queue opened", zap.String("queue", "/tables"))
//	logger.Error("Send failed", zap.Error(err))
package logging
