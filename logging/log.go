package logging

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerKey struct{}

func NewContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey{}, logger)
}

// FromContext returns the logger carried by ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// Rotation configures the rolling log file.
type Rotation struct {
	MaxFiles  int // 0 keeps all files
	MaxSizeMB int
}

var defaultRotation = Rotation{MaxFiles: 3, MaxSizeMB: 10}

type Option func(*options)

type options struct {
	rotation Rotation
}

func WithRotation(r Rotation) Option {
	return func(o *options) {
		o.rotation = r
	}
}

// New builds a logger writing to stdout at level and, if logFileName is
// set, to a rotated file at debug level.
func New(level zapcore.LevelEnabler, logFileName string, json bool, opts ...Option) *zap.Logger {
	o := options{rotation: defaultRotation}
	for _, opt := range opts {
		opt(&o)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if json {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level)}
	if logFileName != "" {
		fileLogger := &lumberjack.Logger{
			Filename:   logFileName,
			MaxSize:    o.rotation.MaxSizeMB,
			MaxBackups: o.rotation.MaxFiles,
			MaxAge:     28,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(fileLogger), zap.DebugLevel))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
