package logger

import (
	"context"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logLevel = zap.NewAtomicLevel()

// Options control where logs go
type Options struct {
	Dir        string
	Level      string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger builds a JSON file logger with rotation plus a console core.
// An empty Dir logs to the console only.
func NewLogger(serviceName string, opts Options) (*zap.Logger, error) {
	SetLogLevel(opts.Level)

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.Lock(os.Stdout),
		logLevel,
	)
	if opts.Dir == "" {
		return zap.New(consoleCore, zap.AddCaller()), nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.LevelKey = "level"
	encoderConfig.MessageKey = "msg"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	writer := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, serviceName+".log"),
		MaxSize:    orDefault(opts.MaxSizeMB, 500), // megabytes
		MaxBackups: orDefault(opts.MaxBackups, 7),
		MaxAge:     orDefault(opts.MaxAgeDays, 7), // days
		Compress:   true,
	}
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(writer), logLevel)

	return zap.New(zapcore.NewTee(fileCore, consoleCore), zap.AddCaller()), nil
}

// SetLogLevel changes the level of every logger built by NewLogger.
// Unknown levels are ignored.
func SetLogLevel(level string) bool {
	if level == "" {
		return false
	}
	zapLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return false
	}
	logLevel.SetLevel(zapLevel)
	return true
}

// Level returns the current level
func Level() zapcore.Level {
	return logLevel.Level()
}

// WithTrace adds the trace and span ids of ctx when a span is recording
func WithTrace(ctx context.Context, l *zap.Logger) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
