// Package log provides centralized logging functionality using zap logger.
package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log *zap.SugaredLogger
var baseLogger *zap.Logger

// FileConfig enables a rotating log file next to stderr output
type FileConfig struct {
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max-size-mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max-backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty" yaml:"max-age-days,omitempty"`
	Compress   bool   `json:"compress,omitempty" yaml:"compress,omitempty"`
}

func (fc FileConfig) writer() zapcore.WriteSyncer {
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   fc.Path,
		MaxSize:    fc.MaxSizeMB,
		MaxBackups: fc.MaxBackups,
		MaxAge:     fc.MaxAgeDays,
		Compress:   fc.Compress,
	})
}

func set(l *zap.Logger) {
	baseLogger = l
	log = l.Sugar()
}

// Init initializes the package-level logger
func Init(debug bool) error {
	build := zap.NewProduction
	if debug {
		build = zap.NewDevelopment
	}
	l, err := build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %v", err)
	}
	set(l)
	return nil
}

// InitWithFile initializes the logger and tees JSON entries into a file
// rotated by lumberjack. An empty path behaves like Init.
func InitWithFile(debug bool, fc FileConfig) error {
	if fc.Path == "" {
		return Init(debug)
	}

	level := zapcore.InfoLevel
	console := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	if debug {
		level = zapcore.DebugLevel
		console = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}

	core := zapcore.NewTee(
		zapcore.NewCore(console, zapcore.Lock(os.Stderr), level),
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), fc.writer(), level),
	)
	set(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
	return nil
}

func ensure() {
	if log == nil {
		l, _ := zap.NewProduction(zap.AddCallerSkip(1))
		set(l)
	}
}

// GetZapLogger returns the base zap logger for cases where it's needed (like GORM)
func GetZapLogger() *zap.Logger {
	ensure()
	return baseLogger
}

// GetSugaredLogger returns the sugared logger, falling back to a production
// logger when Init was never called
func GetSugaredLogger() *zap.SugaredLogger {
	ensure()
	return log
}

// Sync flushes any buffered log entries
func Sync() {
	if log != nil {
		log.Sync()
	}
}

func Info(args ...interface{}) {
	GetSugaredLogger().Info(args...)
}

func Infof(template string, args ...interface{}) {
	GetSugaredLogger().Infof(template, args...)
}

func Errorf(template string, args ...interface{}) {
	GetSugaredLogger().Errorf(template, args...)
}

func Fatalf(template string, args ...interface{}) {
	GetSugaredLogger().Fatalf(template, args...)
	os.Exit(1)
}
