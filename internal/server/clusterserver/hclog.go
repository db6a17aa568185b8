// Package clusterserver provides the slog bridge for hashicorp libraries.
package clusterserver

import (
	"bytes"
	"context"
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// hcLogger adapts slog.Logger to the hclog.Logger interface.
type hcLogger struct {
	logger *slog.Logger
	name   string
}

func newHCLogger(logger *slog.Logger, name string) *hcLogger {
	return &hcLogger{logger: logger.With("subsystem", name), name: name}
}

func (l *hcLogger) Log(level hclog.Level, msg string, args ...any) {
	l.logger.Log(context.Background(), slogLevel(level), msg, args...)
}

func slogLevel(level hclog.Level) slog.Level {
	switch level {
	case hclog.Trace, hclog.Debug:
		return slog.LevelDebug
	case hclog.Warn:
		return slog.LevelWarn
	case hclog.Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *hcLogger) Trace(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *hcLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *hcLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *hcLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *hcLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *hcLogger) enabled(level slog.Level) bool {
	return l.logger.Enabled(context.Background(), level)
}

func (l *hcLogger) IsTrace() bool { return false }
func (l *hcLogger) IsDebug() bool { return l.enabled(slog.LevelDebug) }
func (l *hcLogger) IsInfo() bool  { return l.enabled(slog.LevelInfo) }
func (l *hcLogger) IsWarn() bool  { return l.enabled(slog.LevelWarn) }
func (l *hcLogger) IsError() bool { return l.enabled(slog.LevelError) }

func (l *hcLogger) ImpliedArgs() []any { return nil }

func (l *hcLogger) With(args ...any) hclog.Logger {
	return &hcLogger{logger: l.logger.With(args...), name: l.name}
}

func (l *hcLogger) Name() string { return l.name }

func (l *hcLogger) Named(name string) hclog.Logger {
	if l.name != "" {
		name = l.name + "." + name
	}
	return &hcLogger{logger: l.logger, name: name}
}

func (l *hcLogger) ResetNamed(name string) hclog.Logger {
	return &hcLogger{logger: l.logger, name: name}
}

func (l *hcLogger) SetLevel(hclog.Level) {}

func (l *hcLogger) GetLevel() hclog.Level {
	switch {
	case l.IsDebug():
		return hclog.Debug
	case l.IsInfo():
		return hclog.Info
	case l.IsWarn():
		return hclog.Warn
	default:
		return hclog.Error
	}
}

func (l *hcLogger) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(l.StandardWriter(opts), "", 0)
}

func (l *hcLogger) StandardWriter(*hclog.StandardLoggerOptions) io.Writer {
	return &levelWriter{logger: l}
}

// levelWriter turns standard log lines such as "[WARN] memberlist: ..." into
// leveled records.
type levelWriter struct {
	logger *hcLogger
}

func (w *levelWriter) Write(p []byte) (int, error) {
	level, msg := inferLevel(string(bytes.TrimSpace(p)))
	w.logger.Log(level, msg)
	return len(p), nil
}

func inferLevel(line string) (hclog.Level, string) {
	if !strings.HasPrefix(line, "[") {
		return hclog.Info, line
	}
	end := strings.IndexByte(line, ']')
	if end < 0 {
		return hclog.Info, line
	}

	msg := strings.TrimSpace(line[end+1:])
	switch tag := strings.ToUpper(line[1:end]); tag {
	case "ERR", "ERROR":
		return hclog.Error, msg
	default:
		if level := hclog.LevelFromString(tag); level != hclog.NoLevel {
			return level, msg
		}
		return hclog.Info, line
	}
}
