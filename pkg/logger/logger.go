// Package logger provides the structured logger shared by every component.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger and tags every entry with its owning component.
type Logger struct {
	*logrus.Logger
	component string
}

// Config controls level, format, and destination of a Logger.
type Config struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePrefix string `mapstructure:"file_prefix"`
}

// New creates a Logger for the given component.
func New(component string, cfg Config) *Logger {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	switch strings.ToLower(cfg.Output) {
	case "file":
		prefix := cfg.FilePrefix
		if prefix == "" {
			prefix = "letstalk-index"
		}
		if err := os.MkdirAll("logs", 0o755); err != nil {
			l.Errorf("create log directory: %v", err)
			break
		}
		path := filepath.Join("logs", prefix+".log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			l.Errorf("open log file: %v", err)
			break
		}
		l.SetOutput(io.MultiWriter(os.Stdout, file))
	default:
		l.SetOutput(os.Stdout)
	}

	return &Logger{Logger: l, component: component}
}

// NewDefault builds a Logger at info level, text format, to stdout.
func NewDefault(component string) *Logger {
	return New(component, Config{Level: "info", Format: "text"})
}

// NewFromEnv builds a Logger using LOG_LEVEL/LOG_FORMAT environment variables.
func NewFromEnv(component string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(component, Config{Level: level, Format: format})
}

// WithField returns an entry tagged with the component and the given field.
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.Logger.WithField("component", l.component).WithField(key, value)
}

// WithFields returns an entry tagged with the component and given fields.
func (l *Logger) WithFields(fields logrus.Fields) *logrus.Entry {
	return l.Logger.WithField("component", l.component).WithFields(fields)
}
