// Package logging provides categorized, leveled logging for parley.
// Each subsystem logs under its own category so individual pipelines can be
// enabled or silenced from config. Before Initialize is called every logger
// is a silent no-op, which keeps library consumers quiet by default.
package logging

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	// Core pipeline categories
	CategoryBoot      Category = "boot"      // Startup/initialization
	CategoryClassify  Category = "classify"  // Intent classification stages
	CategoryExtract   Category = "extract"   // Entity/slot extraction
	CategorySemantic  Category = "semantic"  // Embedding similarity and search
	CategorySentiment Category = "sentiment" // Mood analysis
	CategoryDecompose Category = "decompose" // Compound query decomposition
	CategoryRouting   Category = "routing"   // Handler chain decisions

	// State categories
	CategoryMemory  Category = "memory"  // Short/long-term memory, preferences
	CategorySession Category = "session" // Session lifecycle
	CategoryStore   Category = "store"   // Persistence backend operations
)

// Options controls the logging subsystem.
type Options struct {
	// Level: "debug", "info", "warn", "error" (default: "info")
	Level string

	// Categories filters output per category. Empty map = all enabled.
	Categories map[string]bool
}

var (
	mu         sync.RWMutex
	base       *zap.Logger
	level      zap.AtomicLevel
	categories map[string]bool
	loggers    = make(map[Category]*Logger)
)

// Logger is a category-scoped logger with printf-style methods.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

// Initialize sets up the logging backend. Safe to call once at startup;
// subsequent calls replace the configuration.
func Initialize(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	lvl := zapcore.InfoLevel
	switch opts.Level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info", "":
		lvl = zapcore.InfoLevel
	case "warn", "warning":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return fmt.Errorf("unknown log level: %q", opts.Level)
	}

	level = zap.NewAtomicLevelAt(lvl)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)

	base = zap.New(core)
	categories = opts.Categories
	loggers = make(map[Category]*Logger)
	return nil
}

// SetLevel adjusts the global level at runtime.
func SetLevel(lvl zapcore.Level) {
	mu.RLock()
	defer mu.RUnlock()
	if base != nil {
		level.SetLevel(lvl)
	}
}

// Get returns the logger for a category, creating it on first use.
func Get(category Category) *Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[category]; ok {
		return l
	}

	var sugar *zap.SugaredLogger
	if base == nil || !categoryEnabled(category) {
		sugar = zap.NewNop().Sugar()
	} else {
		sugar = base.Named(string(category)).Sugar()
	}

	l := &Logger{category: category, sugar: sugar}
	loggers[category] = l
	return l
}

// categoryEnabled reports whether a category passes the config filter.
// Caller must hold mu.
func categoryEnabled(category Category) bool {
	if len(categories) == 0 {
		return true
	}
	enabled, ok := categories[string(category)]
	return ok && enabled
}

// Debug logs at debug level with printf formatting.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// Info logs at info level with printf formatting.
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// Warn logs at warn level with printf formatting.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// Error logs at error level with printf formatting.
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// =============================================================================
// PER-CATEGORY CONVENIENCE HELPERS
// =============================================================================

// Classify logs info to the classify category.
func Classify(format string, args ...interface{}) { Get(CategoryClassify).Info(format, args...) }

// ClassifyDebug logs debug to the classify category.
func ClassifyDebug(format string, args ...interface{}) { Get(CategoryClassify).Debug(format, args...) }

// Memory logs info to the memory category.
func Memory(format string, args ...interface{}) { Get(CategoryMemory).Info(format, args...) }

// MemoryDebug logs debug to the memory category.
func MemoryDebug(format string, args ...interface{}) { Get(CategoryMemory).Debug(format, args...) }

// Routing logs info to the routing category.
func Routing(format string, args ...interface{}) { Get(CategoryRouting).Info(format, args...) }

// RoutingDebug logs debug to the routing category.
func RoutingDebug(format string, args ...interface{}) { Get(CategoryRouting).Debug(format, args...) }

// Semantic logs info to the semantic category.
func Semantic(format string, args ...interface{}) { Get(CategorySemantic).Info(format, args...) }

// SemanticDebug logs debug to the semantic category.
func SemanticDebug(format string, args ...interface{}) { Get(CategorySemantic).Debug(format, args...) }

// Decompose logs info to the decompose category.
func Decompose(format string, args ...interface{}) { Get(CategoryDecompose).Info(format, args...) }

// DecomposeDebug logs debug to the decompose category.
func DecomposeDebug(format string, args ...interface{}) {
	Get(CategoryDecompose).Debug(format, args...)
}

// Session logs info to the session category.
func Session(format string, args ...interface{}) { Get(CategorySession).Info(format, args...) }

// SessionDebug logs debug to the session category.
func SessionDebug(format string, args ...interface{}) { Get(CategorySession).Debug(format, args...) }

// Store logs info to the store category.
func Store(format string, args ...interface{}) { Get(CategoryStore).Info(format, args...) }

// StoreDebug logs debug to the store category.
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }

// =============================================================================
// OPERATION TIMER
// =============================================================================

// Timer measures an operation's duration and logs it on Stop.
type Timer struct {
	category  Category
	operation string
	start     time.Time
}

// StartTimer begins timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, operation: operation, start: time.Now()}
}

// Stop logs the elapsed time at debug level.
func (t *Timer) Stop() {
	Get(t.category).Debug("%s completed in %v", t.operation, time.Since(t.start))
}
