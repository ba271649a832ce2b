package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Params struct {
	Level      string
	Format     string // json or console
	Output     string // stdout, file or both
	FileName   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// New builds the service logger. File output is rotated by lumberjack; the
// returned closer flushes the logger and closes the file.
func New(params Params) (*zap.Logger, func() error, error) {
	level, err := GetLevel(params.Level)
	if err != nil {
		return nil, nil, err
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(params.Format) {
	case "json", "":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	default:
		return nil, nil, fmt.Errorf("unknown log format %q", params.Format)
	}

	var (
		writers []zapcore.WriteSyncer
		rotator *lumberjack.Logger
	)
	output := strings.ToLower(params.Output)
	if output == "file" || output == "both" {
		if params.FileName == "" {
			return nil, nil, fmt.Errorf("log output %q needs a file name", params.Output)
		}
		fileName := params.FileName
		if !strings.HasSuffix(fileName, ".log") {
			fileName += ".log"
		}
		rotator = &lumberjack.Logger{
			Filename:   fileName,
			MaxSize:    params.MaxSize,
			MaxBackups: params.MaxBackups,
			MaxAge:     params.MaxAge,
			Compress:   params.Compress,
		}
		writers = append(writers, zapcore.AddSync(rotator))
	}
	switch output {
	case "stdout", "both", "":
		writers = append(writers, zapcore.Lock(os.Stdout))
	case "file":
	default:
		return nil, nil, fmt.Errorf("unknown log output %q", params.Output)
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(writers...), level)
	logger := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	closer := func() error {
		_ = logger.Sync()
		if rotator != nil {
			return rotator.Close()
		}
		return nil
	}
	return logger, closer, nil
}

// NewWriter is New with a caller-supplied sink, used in tests.
func NewWriter(w io.Writer, level string) (*zap.Logger, error) {
	lvl, err := GetLevel(level)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(w),
		lvl,
	)
	return zap.New(core), nil
}

func GetLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return l, fmt.Errorf("unknown log level %q", level)
	}
	return l, nil
}
