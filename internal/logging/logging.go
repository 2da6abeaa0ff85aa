// Package logging wraps logrus with the project's conventions: leveled
// text output to stderr, optionally duplicated to a rotated file.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Configure points the logger at an additional rotated file (in addition to
// stderr) when path is non-empty. Safe to call multiple times.
func Configure(path string) {
	if path == "" {
		std.SetOutput(os.Stderr)
		return
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	std.SetOutput(io.MultiWriter(os.Stderr, rotator))
}

func SetLevel(level logrus.Level) { std.SetLevel(level) }

func Infof(format string, args ...any)  { std.Infof(format, args...) }
func Warnf(format string, args ...any)  { std.Warnf(format, args...) }
func Errorf(format string, args ...any) { std.Errorf(format, args...) }
func Debugf(format string, args ...any) { std.Debugf(format, args...) }

func WithField(key string, value any) *logrus.Entry { return std.WithField(key, value) }
func WithError(err error) *logrus.Entry             { return std.WithError(err) }
