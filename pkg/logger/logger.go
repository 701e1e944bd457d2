package logger

import (
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Minimal leveled logger shared by every service package.
// - zero external deps
// - provides Debug/Info/Warn/Error/Fatal variants and Init(level)
// Key material (encryption keys, derived private keys, JWT secrets) must
// never be passed through this package.

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	level atomic.Int32

	outMu sync.Mutex
	out   = log.New(os.Stdout, "", 0)
)

func init() {
	level.Store(int32(LevelInfo))
}

// Init sets the global log level (case-insensitive: debug, info, warn, error, fatal).
// Call early during startup; unknown values fall back to info.
func Init(l string) {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		level.Store(int32(LevelDebug))
	case "warn", "warning":
		level.Store(int32(LevelWarn))
	case "error":
		level.Store(int32(LevelError))
	case "fatal":
		level.Store(int32(LevelFatal))
	default:
		level.Store(int32(LevelInfo))
	}
}

// SetOutput redirects log output (tests).
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = log.New(w, "", 0)
}

func enabled(l Level) bool {
	return int32(l) >= level.Load()
}

func emit(lvl string, format string, v ...any) {
	outMu.Lock()
	defer outMu.Unlock()
	out.Printf(time.Now().Format(time.RFC3339)+" ["+strings.ToUpper(lvl)+"] "+format, v...)
}

func Debugf(format string, v ...any) {
	if enabled(LevelDebug) {
		emit("debug", format, v...)
	}
}

func Infof(format string, v ...any) {
	if enabled(LevelInfo) {
		emit("info", format, v...)
	}
}

func Warnf(format string, v ...any) {
	if enabled(LevelWarn) {
		emit("warn", format, v...)
	}
}

func Errorf(format string, v ...any) {
	if enabled(LevelError) {
		emit("error", format, v...)
	}
}

func Fatalf(format string, v ...any) {
	emit("fatal", format, v...)
	os.Exit(1)
}

// Debug/Info/Warn/Error helpers that accept a single string
func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	switch Level(level.Load()) {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}
