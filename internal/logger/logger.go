// Package logger owns the process-wide zap logger. Until Initialize runs it
// discards everything, so packages can log from init paths and tests.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFile = "codeconnects.log"

// Log is the global logger
var Log = zap.NewNop()

// level is shared by both cores so SetLevel changes them together
var level = zap.NewAtomicLevel()

// Initialize logs human-readable lines to stdout and JSON lines to a rotated
// file. Empty arguments mean "info" and codeconnects.log.
func Initialize(logLevel string, logFile string) error {
	if logFile == "" {
		logFile = defaultLogFile
	}
	level.SetLevel(parseLogLevel(logLevel))

	rotated := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100, // MB
		MaxBackups: 5,
		MaxAge:     7, // days
		Compress:   true,
	}

	fileConfig := zap.NewProductionEncoderConfig()
	fileConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	Log = zap.New(
		zapcore.NewTee(
			zapcore.NewCore(zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()), zapcore.Lock(os.Stdout), level),
			zapcore.NewCore(zapcore.NewJSONEncoder(fileConfig), zapcore.AddSync(rotated), level),
		),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	Log.Info("Logger initialized", zap.Stringer("level", level.Level()), zap.String("file", logFile))
	return nil
}

// SetLevel changes the level of an initialized logger at runtime
func SetLevel(logLevel string) {
	level.SetLevel(parseLogLevel(logLevel))
}

// UseNop swaps the global logger for a no-op one so tests do not write log files
func UseNop() {
	Log = zap.NewNop()
}

// Close flushes buffered entries
func Close() error {
	return Log.Sync()
}

// parseLogLevel accepts the zap level names plus "warning"; anything else is info
func parseLogLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil || s == "" || l > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return l
}

// WarnWithFields logs msg at warn, attaching err when it is non-nil
func WarnWithFields(msg string, err error) {
	Log.Warn(msg, errField(err)...)
}

// ErrorWithFields logs msg at error, attaching err when it is non-nil
func ErrorWithFields(msg string, err error) {
	Log.Error(msg, errField(err)...)
}

// FatalWithFields logs msg and exits the process
func FatalWithFields(msg string, err error) {
	Log.Fatal(msg, errField(err)...)
}

func errField(err error) []zap.Field {
	if err == nil {
		return nil
	}
	return []zap.Field{zap.Error(err)}
}

func WithRequestID(requestID string) zap.Field { return zap.String("request_id", requestID) }

func WithUserID(userID string) zap.Field { return zap.String("user_id", userID) }

func WithPostID(postID string) zap.Field { return zap.String("post_id", postID) }

// WithView tags a log line with a cache view key such as "feed:user:42"
func WithView(viewKey string) zap.Field { return zap.String("view", viewKey) }

func WithIP(ip string) zap.Field { return zap.String("ip", ip) }

func WithStatus(status int) zap.Field { return zap.Int("status", status) }
