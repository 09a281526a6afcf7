package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel converts a case-insensitive level name. Unknown names return false.
func ParseLevel(level string) (Level, bool) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	}
	return LevelInfo, false
}

// Config selects the level, encoding and destination of log output.
type Config struct {
	// Level is DEBUG, INFO, WARN or ERROR (case-insensitive)
	Level string

	// Format is "text" (console encoder) or "json"
	Format string

	// Output is "stdout", "stderr" or a file path
	Output string
}

var (
	mu       sync.RWMutex
	levelVar = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar    = newSugar(zapcore.Lock(os.Stdout), "text")
	closeOut io.Closer
)

func newSugar(ws zapcore.WriteSyncer, format string) *zap.SugaredLogger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.ConsoleSeparator = " "
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	return zap.New(zapcore.NewCore(enc, ws, levelVar)).Sugar()
}

// Configure replaces the global logger according to cfg.
//
// A file output is opened in append mode and closed on the next Configure.
func Configure(cfg Config) error {
	var (
		ws     zapcore.WriteSyncer
		closer io.Closer
	)

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		ws = zapcore.Lock(os.Stdout)
	case "stderr":
		ws = zapcore.Lock(os.Stderr)
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log output %q: %w", cfg.Output, err)
		}
		ws = zapcore.Lock(f)
		closer = f
	}

	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}

	mu.Lock()
	defer mu.Unlock()

	_ = sugar.Sync()
	if closeOut != nil {
		_ = closeOut.Close()
	}
	sugar = newSugar(ws, strings.ToLower(cfg.Format))
	closeOut = closer

	return nil
}

// SetLevel changes the minimum level. Unknown names are ignored.
func SetLevel(level string) {
	if l, ok := ParseLevel(level); ok {
		levelVar.SetLevel(l.zapLevel())
	}
}

// Sync flushes buffered log entries.
func Sync() error {
	return current().Sync()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

func Debug(format string, v ...any) {
	current().Debugf(format, v...)
}

func Info(format string, v ...any) {
	current().Infof(format, v...)
}

func Warn(format string, v ...any) {
	current().Warnf(format, v...)
}

func Error(format string, v ...any) {
	current().Errorf(format, v...)
}

// Logger carries key/value context (session id, remote address) on every line.
type Logger struct {
	s *zap.SugaredLogger
}

// With returns a Logger that attaches keysAndValues to each entry.
func With(keysAndValues ...any) *Logger {
	return &Logger{s: current().With(keysAndValues...)}
}

// With returns a child Logger with additional context.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{s: l.s.With(keysAndValues...)}
}

func (l *Logger) Debug(format string, v ...any) {
	l.s.Debugf(format, v...)
}

func (l *Logger) Info(format string, v ...any) {
	l.s.Infof(format, v...)
}

func (l *Logger) Warn(format string, v ...any) {
	l.s.Warnf(format, v...)
}

func (l *Logger) Error(format string, v ...any) {
	l.s.Errorf(format, v...)
}
