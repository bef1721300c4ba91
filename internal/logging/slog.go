package logging

import (
	"context"
	"log/slog"
	"strings"
)

// Redacted replaces the value of any credential-bearing attribute.
const Redacted = "[REDACTED]"

var sensitiveKeys = map[string]bool{
	"password":      true,
	"old_password":  true,
	"new_password":  true,
	"password_hash": true,
	"access_token":  true,
	"refresh_token": true,
	"authorization": true,
	"cookie":        true,
}

// SlogLogger adapts *slog.Logger to Logger. Values under sensitive keys
// (passwords, hashes, tokens) are replaced with Redacted before they
// reach the handler.
type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelDebug, msg, args)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelInfo, msg, args)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelWarn, msg, args)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.log(ctx, slog.LevelError, msg, args)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(redact(args)...)}
}

func (s *SlogLogger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.Log(ctx, level, msg, redact(args)...)
}

// redact copies args, masking the value that follows a sensitive key and
// any slog.Attr with a sensitive key.
func redact(args []any) []any {
	out := make([]any, len(args))
	copy(out, args)

	for i := 0; i < len(out); i++ {
		switch v := out[i].(type) {
		case slog.Attr:
			if isSensitive(v.Key) {
				out[i] = slog.String(v.Key, Redacted)
			}
		case string:
			if i+1 < len(out) {
				if isSensitive(v) {
					out[i+1] = Redacted
				}
				i++
			}
		}
	}
	return out
}

func isSensitive(key string) bool {
	k := strings.ToLower(strings.ReplaceAll(key, "-", "_"))
	if sensitiveKeys[k] {
		return true
	}
	switch k {
	case "accesstoken", "refreshtoken", "oldpassword", "newpassword", "passwordhash":
		return true
	}
	return false
}
