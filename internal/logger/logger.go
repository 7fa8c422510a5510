// Package logger provides the process-wide structured logger.
//
// Console output goes to stderr so the CSV and table output on stdout stay
// machine-readable. When a log directory is configured, a JSON copy of every
// entry is written to a size-rotated file for post-mortem inspection.
package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls logger initialisation.
type Config struct {
	// Verbose lowers the console threshold from Info to Debug.
	Verbose bool

	// Dir receives the rotating JSON log file. Empty disables the file sink.
	Dir string
}

var (
	mu    sync.RWMutex
	log   = zap.NewNop()
	sugar = log.Sugar()
)

// Init builds the global logger. Safe to call more than once; the last
// configuration wins. Packages that log before Init see a no-op logger,
// which keeps tests quiet.
func Init(cfg Config) error {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	level := zapcore.InfoLevel
	if cfg.Verbose {
		level = zapcore.DebugLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(os.Stderr), level),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
			return err
		}
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, "pcs-code-export.log"),
			MaxSize:    50, // megabytes
			MaxBackups: 7,
			MaxAge:     30, // days
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileWriter, zapcore.DebugLevel))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel))

	mu.Lock()
	log = l
	sugar = l.Sugar()
	mu.Unlock()
	return nil
}

// L returns the global structured logger.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Sync flushes buffered entries. Called once at process exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = log.Sync()
}

// SetLogger replaces the global logger. Tests use it to capture output.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	log = l
	sugar = l.Sugar()
	mu.Unlock()
}
