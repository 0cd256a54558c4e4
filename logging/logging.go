// Package logging builds the zap logger used by the command line.
package logging

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"payments-engine/config"
)

// LevelFor maps a -v count to a log level: 0 errors only, 1 info, 2 or more debug.
func LevelFor(verbosity int) zapcore.Level {
	switch {
	case verbosity <= 0:
		return zapcore.ErrorLevel
	case verbosity == 1:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// New creates a logger writing to w in the given format.
func New(format string, verbosity int, w io.Writer) (*zap.Logger, error) {
	encoder, opts, err := encoderFor(format)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), zap.NewAtomicLevelAt(LevelFor(verbosity)))
	return zap.New(core, opts...), nil
}

func encoderFor(format string) (zapcore.Encoder, []zap.Option, error) {
	switch format {
	case config.LoggerCompact:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.TimeKey = ""
		cfg.CallerKey = ""
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(cfg), nil, nil

	case config.LoggerFull:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(cfg), []zap.Option{zap.AddCaller()}, nil

	case config.LoggerPretty:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		return zapcore.NewConsoleEncoder(cfg), []zap.Option{zap.AddCaller(), zap.Development()}, nil

	case config.LoggerJSON:
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg), nil, nil
	}

	return nil, nil, fmt.Errorf("%w: unknown logger %q", config.ErrUsage, format)
}
