// Package logging provides the leveled console logger shared by every
// package, with an optional structured log file written through logrus.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/backmassage/reelcat/internal/config"
	"github.com/backmassage/reelcat/internal/term"
)

const timeLayout = "2006-01-02 15:04:05"

// Logger provides leveled, optionally colored logging with optional file sink.
type Logger struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	file   *os.File
	sink   *logrus.Logger
}

// NewLogger initializes colors from cfg and optionally opens cfg.LogFile.
// Call Close() when done if LogFile was set.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)
	l := &Logger{out: os.Stdout, errOut: os.Stderr}

	if cfg.LogFile != "" {
		dir := filepath.Dir(cfg.LogFile)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		l.file = f
		l.sink = newSink(f, cfg.LogFormat)
	}
	return l, nil
}

func newSink(w io.Writer, format config.LogFormat) *logrus.Logger {
	s := logrus.New()
	s.SetOutput(w)
	s.SetLevel(logrus.DebugLevel)
	if format == config.LogJSON {
		s.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		s.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true, TimestampFormat: timeLayout})
	}
	return s
}

// SetOutput redirects console output. ERROR lines go to errOut.
func (l *Logger) SetOutput(out, errOut io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out, l.errOut = out, errOut
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.sink = nil
		return err
	}
	return nil
}

func (l *Logger) line(level string, lvl logrus.Level, c *color.Color, text string) {
	ts := time.Now().Format(timeLayout)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.out
	if lvl == logrus.ErrorLevel {
		out = l.errOut
	}
	_, _ = io.WriteString(out, ts+" "+c.Sprint("["+level+"]")+" "+text+"\n")
	if l.sink != nil {
		e := l.sink.WithTime(time.Now())
		// SUCCESS, RENDER and OUTLIER have no logrus level of their own.
		if level == "SUCCESS" || level == "RENDER" || level == "OUTLIER" {
			e = e.WithField("tag", strings.ToLower(level))
		}
		e.Log(lvl, text)
	}
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.line("INFO", logrus.InfoLevel, term.Blue, fmt.Sprintf(format, args...))
}

// Success logs at SUCCESS level (green).
func (l *Logger) Success(format string, args ...interface{}) {
	l.line("SUCCESS", logrus.InfoLevel, term.Green, fmt.Sprintf(format, args...))
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.line("WARN", logrus.WarnLevel, term.Yellow, fmt.Sprintf(format, args...))
}

// Error logs at ERROR level (red), to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.line("ERROR", logrus.ErrorLevel, term.Red, fmt.Sprintf(format, args...))
}

// Render logs at RENDER level (magenta). Used for per-source progress.
func (l *Logger) Render(format string, args ...interface{}) {
	l.line("RENDER", logrus.InfoLevel, term.Magenta, fmt.Sprintf(format, args...))
}

// Outlier logs at OUTLIER level (orange). Used for sources that will play
// back differently after conversion.
func (l *Logger) Outlier(format string, args ...interface{}) {
	l.line("OUTLIER", logrus.WarnLevel, term.Orange, fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level (cyan) only when verbose; no-op otherwise.
func (l *Logger) Debug(verbose bool, format string, args ...interface{}) {
	if !verbose {
		return
	}
	l.line("DEBUG", logrus.DebugLevel, term.Cyan, fmt.Sprintf(format, args...))
}
