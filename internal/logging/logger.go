// Package logging provides config-driven categorized logging for iasmeen.
// All categories share one zap root logger; each category is a named child.
// Logs are written to <data-dir>/logs/iasmeen.log only when debug mode is on,
// so the terminal dashboard never has log lines painted over it.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot     Category = "boot"     // Boot/initialization
	CategorySession  Category = "session"  // Dashboard state transitions
	CategoryAPI      Category = "api"      // Gemini API calls
	CategoryMetadata Category = "metadata" // Image metadata decoding
	CategoryStore    Category = "store"    // History persistence
	CategoryHTTP     Category = "http"     // HTTP API server
	CategoryExport   Category = "export"   // Report export
	CategoryUI       Category = "ui"       // Terminal dashboard
)

// Options configures Initialize.
type Options struct {
	Dir        string          // log directory; created if missing
	DebugMode  bool            // when false every logger is a no-op
	Level      string          // debug, info, warn, error
	JSONFormat bool            // JSON lines instead of console encoding
	Categories map[string]bool // nil enables every category
}

// Logger is a category logger with printf-style helpers.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu         sync.RWMutex
	root       = zap.NewNop()
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
	logFile    *os.File
)

// Initialize builds the root logger from opts. It may be called again to
// reconfigure; previously returned loggers keep their old sink.
func Initialize(opts Options) error {
	if !opts.DebugMode {
		SetRoot(zap.NewNop())
		return nil
	}
	if opts.Dir == "" {
		return fmt.Errorf("log directory required in debug mode")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	path := filepath.Join(opts.Dir, "iasmeen.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if opts.JSONFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(f), parseLevel(opts.Level))

	mu.Lock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	categories = opts.Categories
	mu.Unlock()

	SetRoot(zap.New(core))
	Get(CategoryBoot).Info("logging initialized: dir=%s level=%s", opts.Dir, opts.Level)
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetRoot replaces the root logger. The CLI uses this to route non-interactive
// commands through its own zap logger.
func SetRoot(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	defer mu.Unlock()
	root = l
	loggers = make(map[Category]*Logger)
}

// Root returns the current root zap logger.
func Root() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if categories == nil {
		return true
	}
	enabled, exists := categories[string(category)]
	return !exists || enabled
}

// Get returns (or creates) a logger for the given category.
func Get(category Category) *Logger {
	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	enabled := IsCategoryEnabled(category)

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	base := root
	if !enabled {
		base = zap.NewNop()
	}
	l := &Logger{category: category, sugar: base.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Zap exposes the underlying structured logger for field-based logging.
func (l *Logger) Zap() *zap.Logger { return l.sugar.Desugar() }

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a child logger carrying key/value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// CloseAll flushes the root logger and closes the log file.
func CloseAll() {
	mu.Lock()
	defer mu.Unlock()
	_ = root.Sync()
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// Convenience helpers per category.

func Boot(format string, args ...interface{})          { Get(CategoryBoot).Info(format, args...) }
func Session(format string, args ...interface{})       { Get(CategorySession).Info(format, args...) }
func SessionDebug(format string, args ...interface{})  { Get(CategorySession).Debug(format, args...) }
func API(format string, args ...interface{})           { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{})      { Get(CategoryAPI).Debug(format, args...) }
func APIError(format string, args ...interface{})      { Get(CategoryAPI).Error(format, args...) }
func Metadata(format string, args ...interface{})      { Get(CategoryMetadata).Info(format, args...) }
func MetadataDebug(format string, args ...interface{}) { Get(CategoryMetadata).Debug(format, args...) }
func Store(format string, args ...interface{})         { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{})    { Get(CategoryStore).Debug(format, args...) }
func HTTP(format string, args ...interface{})          { Get(CategoryHTTP).Info(format, args...) }
func Export(format string, args ...interface{})        { Get(CategoryExport).Info(format, args...) }
func UI(format string, args ...interface{})            { Get(CategoryUI).Debug(format, args...) }

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
