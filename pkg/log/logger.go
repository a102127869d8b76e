package log

import (
	"io"
	"os"

	"github.com/DeRuina/timberjack"
	"github.com/sirupsen/logrus"
)

// Logger is the process logger. Until Setup runs it logs text at info
// level to stderr.
var Logger = logrus.New()

// Options controls where and how the process logs.
type Options struct {
	Level      string
	Format     string // "json" (default) or "text"
	File       string // optional rotating log file, in addition to Output
	MaxSize    int    // megabytes
	MaxBackups int
	MaxAge     int // days

	// Output defaults to stdout.
	Output io.Writer
}

// Setup replaces Logger with one built from opts. Unknown levels fall back
// to info.
func Setup(opts Options) {
	l := logrus.New()

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.File != "" {
		out = io.MultiWriter(out, &timberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
		})
	}
	l.SetOutput(out)

	switch opts.Format {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	default:
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	Logger = l
}

// WithFields returns an entry carrying fields, e.g. a session or client ID.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Logger.WithFields(fields)
}

func Debug(args ...any)                 { Logger.Debug(args...) }
func Debugf(format string, args ...any) { Logger.Debugf(format, args...) }
func Info(args ...any)                  { Logger.Info(args...) }
func Infof(format string, args ...any)  { Logger.Infof(format, args...) }
func Warn(args ...any)                  { Logger.Warn(args...) }
func Warnf(format string, args ...any)  { Logger.Warnf(format, args...) }
func Error(args ...any)                 { Logger.Error(args...) }
func Errorf(format string, args ...any) { Logger.Errorf(format, args...) }
