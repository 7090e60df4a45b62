// Package log provides the process-wide logging sink used by every
// component. It wraps log/slog with a severity enum that matches the
// vocabulary the rest of the codebase expects (Trace..Critical) and a
// single rotating file writer shared by all loggers.
package log

import "log/slog"

// Severity describes a log level.
type Severity uint8

// Severity levels, ordered from least to most severe.
const (
	TraceLevel Severity = iota
	DebugLevel
	InfoLevel
	WarningLevel
	ErrorLevel
	CriticalLevel
)

func (s Severity) String() string {
	switch s {
	case TraceLevel:
		return "TRAC"
	case DebugLevel:
		return "DEBU"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARN"
	case ErrorLevel:
		return "ERRO"
	case CriticalLevel:
		return "CRIT"
	default:
		return "NONE"
	}
}

func (s Severity) toSlogLevel() slog.Level {
	switch s {
	case TraceLevel, DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarningLevel:
		return slog.LevelWarn
	case ErrorLevel, CriticalLevel:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
