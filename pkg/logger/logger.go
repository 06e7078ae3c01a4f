package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pthivierge/web-service-reader-for-pi-system/pkg/config"
)

type Logger = zap.Logger

const timeLayout = "2006-01-02 15:04:05.000 -07:00"

var (
	mu               sync.RWMutex
	baseLogger       = zap.NewNop()
	defaultComponent = "main"
	initialized      bool
)

// Init builds the process logger once. Until it is called every helper
// writes to a no-op logger.
func Init(cfg config.ZapLogConfig) error {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return nil
	}

	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return fmt.Errorf("create log dir %s: %w", cfg.Path, err)
	}
	writer, err := rotatelogs.New(
		filepath.Join(cfg.Path, "web-service-reader-%Y%m%d.log"),
		rotatelogs.WithMaxAge(time.Duration(cfg.MaxAge)*24*time.Hour),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithRotationSize(int64(cfg.MaxSize)*1024*1024),
	)
	if err != nil {
		return fmt.Errorf("open rotating log file: %w", err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(jsonEncoder(), zapcore.AddSync(writer), level),
	}
	if cfg.Console {
		enc := consoleEncoder()
		if cfg.Format == "json" {
			enc = jsonEncoder()
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level))
	}

	baseLogger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	initialized = true
	return nil
}

// Replace swaps the process logger, used by tests to capture output.
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	baseLogger = l
	initialized = l != nil
	if l == nil {
		baseLogger = zap.NewNop()
	}
}

func jsonEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// 控制台彩色时间 + 彩色级别 + 两级 caller 路径
func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.ConsoleSeparator = " "
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("\033[34m%s\033[0m", t.Format(timeLayout)))
	}
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
		enc.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func SetDefaultComponent(component string) {
	mu.Lock()
	defer mu.Unlock()
	defaultComponent = component
}

// GetLogger returns the process logger.
func GetLogger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}

// Named returns a child logger tagged with a component, for injection into
// the engine, scheduler and writer.
func Named(component string) *zap.Logger {
	return GetLogger().With(zap.String("component", component))
}

func log(level zapcore.Level, msg string, fields ...zap.Field) {
	mu.RLock()
	l, component := baseLogger, defaultComponent
	mu.RUnlock()

	if ce := l.WithOptions(zap.AddCallerSkip(2)).Check(level, msg); ce != nil {
		ce.Write(append([]zap.Field{zap.String("component", component)}, fields...)...)
	}
}

func Debug(msg string, fields ...zap.Field) { log(zapcore.DebugLevel, msg, fields...) }
func Info(msg string, fields ...zap.Field)  { log(zapcore.InfoLevel, msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { log(zapcore.WarnLevel, msg, fields...) }
func Error(msg string, fields ...zap.Field) { log(zapcore.ErrorLevel, msg, fields...) }

// Sync flushes buffered entries. The stdout "invalid argument"/"bad file
// descriptor" errors are expected when stdout is a terminal or pipe.
func Sync() error {
	err := GetLogger().Sync()
	if err != nil && (strings.Contains(err.Error(), "bad file descriptor") ||
		strings.Contains(err.Error(), "invalid argument") ||
		strings.Contains(err.Error(), "inappropriate ioctl")) {
		return nil
	}
	return err
}
