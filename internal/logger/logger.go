// Package logger provides the process-wide structured logger used by every
// component in this repository. It wraps log/slog behind a small mutable
// configuration (level, format, output) so components can log with
// key-value pairs without taking a dependency on a concrete *slog.Logger.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Level is the process-wide minimum severity a log record must meet to be
// emitted.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Config configures the logger at startup. Output may be "stdout",
// "stderr", or a file path.
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string
}

var (
	currentLevel  atomic.Int32
	currentFormat atomic.Value // string: "text" or "json"

	mu      sync.RWMutex
	output  io.Writer = os.Stdout
	slogger *slog.Logger
)

func init() {
	currentLevel.Store(int32(LevelInfo))
	currentFormat.Store("text")
	reconfigure()
}

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

func toSlogLevel(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func reconfigure() {
	mu.Lock()
	defer mu.Unlock()

	levelVar := new(slog.LevelVar)
	levelVar.Set(toSlogLevel(Level(currentLevel.Load())))
	opts := &slog.HandlerOptions{Level: levelVar}

	format, _ := currentFormat.Load().(string)
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	slogger = slog.New(handler)
}

// Init applies cfg to the process-wide logger. Safe to call once at
// startup before any component goroutine is spawned.
func Init(cfg Config) error {
	if cfg.Output != "" {
		var w io.Writer
		switch strings.ToLower(cfg.Output) {
		case "stdout", "":
			w = os.Stdout
		case "stderr":
			w = os.Stderr
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file %q: %w", cfg.Output, err)
			}
			w = f
		}
		mu.Lock()
		output = w
		mu.Unlock()
	}
	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	reconfigure()
	return nil
}

// InitWithWriter points the logger at an arbitrary writer; used by tests.
func InitWithWriter(w io.Writer, level, format string) {
	mu.Lock()
	output = w
	mu.Unlock()
	if level != "" {
		SetLevel(level)
	}
	if format != "" {
		SetFormat(format)
	}
	reconfigure()
}

// SetLevel sets the minimum level; invalid values are ignored.
func SetLevel(level string) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		currentLevel.Store(int32(LevelDebug))
	case "INFO":
		currentLevel.Store(int32(LevelInfo))
	case "WARN":
		currentLevel.Store(int32(LevelWarn))
	case "ERROR":
		currentLevel.Store(int32(LevelError))
	default:
		return
	}
	reconfigure()
}

// SetFormat sets the output format ("text" or "json"); invalid values are
// ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}
	currentFormat.Store(format)
	reconfigure()
}

func get() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slogger
}

// Debug logs at debug level with structured key-value fields.
func Debug(msg string, args ...any) {
	if Level(currentLevel.Load()) > LevelDebug {
		return
	}
	get().Debug(msg, args...)
}

// Info logs at info level with structured key-value fields.
func Info(msg string, args ...any) {
	if Level(currentLevel.Load()) > LevelInfo {
		return
	}
	get().Info(msg, args...)
}

// Warn logs at warn level with structured key-value fields.
func Warn(msg string, args ...any) {
	if Level(currentLevel.Load()) > LevelWarn {
		return
	}
	get().Warn(msg, args...)
}

// Error logs at error level with structured key-value fields.
func Error(msg string, args ...any) {
	get().Error(msg, args...)
}
