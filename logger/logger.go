// Package logger provides structured logging for the call bridge.
//
// This package wraps Go's standard log/slog with convenience functions
// for per-call logging, collaborator (ASR/LLM/TTS) call logging, and
// automatic API key redaction. All exported functions use the global
// DefaultLogger which can be configured for different log levels.
package logger

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// DefaultLogger is the global structured logger instance.
// It is safe for concurrent use and initialized with slog.LevelInfo by default.
var DefaultLogger *slog.Logger

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetLevel changes the logging level for all subsequent log operations.
// This is safe for concurrent use as it replaces the entire logger instance.
func SetLevel(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise
// sets info-level.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Info logs an informational message with structured key-value attributes.
// Args should be provided in key-value pairs: key1, value1, key2, value2, ...
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context and structured attributes.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// Warn logs a warning message with structured attributes.
// Use for recoverable errors or unexpected but non-critical situations.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// Error logs an error message with structured attributes.
// Use for errors that affect operation but don't cause complete failure.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// CollaboratorCall logs a call to an external collaborator (ASR, LLM, or
// TTS) with structured fields for observability.
func CollaboratorCall(kind, provider, callSID string, attrs ...any) {
	allAttrs := make([]any, 0, 6+len(attrs))
	allAttrs = append(allAttrs,
		"kind", kind,
		"provider", provider,
		"call_sid", callSID,
	)
	allAttrs = append(allAttrs, attrs...)
	Debug("collaborator call", allAttrs...)
}

// CollaboratorError logs a failed collaborator call. These are expected
// to degrade, not crash the session, so they log at warn level.
func CollaboratorError(kind, provider, callSID string, err error) {
	Warn("collaborator call failed",
		"kind", kind,
		"provider", provider,
		"call_sid", callSID,
		"error", err,
	)
}

// apiKeyPatterns contains compiled regular expressions for detecting
// sensitive data in logged values.
var apiKeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[a-zA-Z0-9]{32,}`),     // OpenAI-style API keys
	regexp.MustCompile(`Bearer\s+[a-zA-Z0-9_-]+`), // Bearer tokens
}

// RedactSensitiveData removes API keys and bearer tokens from strings,
// preserving the first few characters for debugging.
func RedactSensitiveData(input string) string {
	result := input
	for _, pattern := range apiKeyPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			if strings.HasPrefix(match, "Bearer ") {
				return "Bearer [REDACTED]"
			}
			if len(match) > 8 {
				return match[:4] + "...[REDACTED]"
			}
			return "[REDACTED]"
		})
	}
	return result
}
