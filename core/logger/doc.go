// Package logger provides structured logging utilities built on Go's standard
// slog package, plus a set of attribute helpers for consistent log output
// across certwatch components.
//
// Attribute helpers follow the empty Attr pattern for nil safety:
//
//	log.Error("renewal failed",
//		logger.Error(err),
//		logger.Domain("example.com"),
//		logger.Component("scheduler"),
//	)
//
// A nil error produces an empty attribute, so call sites never need explicit
// nil checks.
//
// Loggers are created with New:
//
//	log := logger.New(
//		logger.WithJSONFormatter(),
//		logger.WithLevel(slog.LevelDebug),
//	)
package logger
