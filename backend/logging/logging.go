// Package logging 初始化全局 zap 日志：控制台 + app.log。
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 日志选项
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Dev    bool

	// File 为空时只输出到控制台
	File       string
	MaxSize    int // MB
	MaxBackups int
	Retain     time.Duration

	// Console 默认 os.Stderr
	Console io.Writer
}

// ParseLevel 解析日志级别
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %q", s)
	}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func newEncoder(format string) zapcore.Encoder {
	if format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig())
	}
	return zapcore.NewConsoleEncoder(encoderConfig())
}

// Init 构建 logger 并替换全局 logger。上一次运行的 app.log 先归档，
// 新文件以一行启动标记开头，日志读取接口据此区分不同的运行。
func Init(opts Options) (*zap.Logger, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	if opts.Dev && level > zapcore.DebugLevel {
		level = zapcore.DebugLevel
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(opts.Format), zapcore.AddSync(console), level),
	}

	var file *lumberjack.Logger
	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		file = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     retainDays(opts.Retain),
			LocalTime:  true,
		}
		// 上一次运行的日志归档为 app-<time>.log，由 lumberjack 按 MaxBackups/MaxAge 清理
		if st, err := os.Stat(path); err == nil && st.Size() > 0 {
			if err := file.Rotate(); err != nil {
				return nil, nil, fmt.Errorf("rotate %s: %w", path, err)
			}
		}
		_, _ = fmt.Fprintf(file, "----- app start %s pid=%d -----\n", time.Now().Format(time.RFC3339Nano), os.Getpid())

		// 文件中始终使用 JSON，便于前端解析
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(file), level))
	}

	zopts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if opts.Dev {
		zopts = append(zopts, zap.Development())
	}
	logger := zap.New(zapcore.NewTee(cores...), zopts...)
	restore := zap.ReplaceGlobals(logger)

	cleanup := func() {
		_ = logger.Sync()
		restore()
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, cleanup, nil
}

// retainDays 保留时长换算为天数，不足一天按一天计；0 表示不按时间清理。
func retainDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	day := 24 * time.Hour
	return int((d + day - 1) / day)
}
