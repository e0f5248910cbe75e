// Package logging provides the crawler's diagnostic output: a small,
// level-filtered, prefix-scoped logger built on top of the standard log
// package. A *Logger is safe to use with a nil receiver (logging becomes a
// no-op), which lets disabled subsystems (for example a crawl run with
// tracking turned off) hold a nil logger without branching at every call
// site.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/fatih/color"
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags)
}

// Logger is the main logger type. It respects a configured Level and tags
// every line with an optional dotted prefix built up via Sublogger.
type Logger struct {
	// prefix is any prefix specified for the logger.
	prefix string
	// level is the minimum level at which this logger (and its
	// subloggers) emit output.
	level Level
	// once guards the per-class warning dedup set described in spec §7
	// ("log the first occurrence of each class at WARN").
	once *onceSet
}

// onceSet tracks classes of warning that have already been logged once in
// this run, mirroring the teacher's guarded-once-per-process caches (see
// the behaviorCache comment in pkg/synchronization/core/scan.go).
type onceSet struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewRoot creates a new root logger at the specified level.
func NewRoot(level Level) *Logger {
	return &Logger{
		level: level,
		once:  &onceSet{seen: make(map[string]bool)},
	}
}

// Sublogger creates a new logger with the specified name appended to the
// receiver's prefix. A nil receiver yields a nil sublogger.
func (l *Logger) Sublogger(name string) *Logger {
	if l == nil {
		return nil
	}
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &Logger{
		prefix: prefix,
		level:  l.level,
		once:   l.once,
	}
}

// output is the internal logging method.
func (l *Logger) output(line string) {
	if l.prefix != "" {
		line = fmt.Sprintf("[%s] %s", l.prefix, line)
	}
	log.Output(3, line)
}

// enabled reports whether the logger will emit at the given level.
func (l *Logger) enabled(level Level) bool {
	return l != nil && l.level >= level
}

// Info logs basic execution information.
func (l *Logger) Info(v ...any) {
	if l.enabled(LevelInfo) {
		l.output(fmt.Sprint(v...))
	}
}

// Infof logs basic execution information with formatting.
func (l *Logger) Infof(format string, v ...any) {
	if l.enabled(LevelInfo) {
		l.output(fmt.Sprintf(format, v...))
	}
}

// Debug logs advanced execution information.
func (l *Logger) Debug(v ...any) {
	if l.enabled(LevelDebug) {
		l.output(fmt.Sprint(v...))
	}
}

// Debugf logs advanced execution information with formatting.
func (l *Logger) Debugf(format string, v ...any) {
	if l.enabled(LevelDebug) {
		l.output(fmt.Sprintf(format, v...))
	}
}

// Warn logs a recoverable error with a yellow "Warning:" prefix.
func (l *Logger) Warn(err error) {
	if l.enabled(LevelWarn) {
		l.output(color.YellowString("Warning: %v", err))
	}
}

// Warnf logs a recoverable condition with a yellow "Warning:" prefix.
func (l *Logger) Warnf(format string, v ...any) {
	if l.enabled(LevelWarn) {
		l.output(color.YellowString("Warning: "+format, v...))
	}
}

// WarnOnce logs a warning under the given class key only the first time
// that key is seen by this logger's root. This implements the "first
// occurrence of each error class" rule; the tracker client's 401/403
// suppression uses its own sync.Once instead.
func (l *Logger) WarnOnce(class string, err error) {
	if l == nil {
		return
	}
	l.once.mu.Lock()
	seen := l.once.seen[class]
	if !seen {
		l.once.seen[class] = true
	}
	l.once.mu.Unlock()
	if !seen {
		l.Warn(err)
	}
}

// Error logs a fatal or near-fatal error with a red "Error:" prefix.
func (l *Logger) Error(err error) {
	if l.enabled(LevelError) {
		l.output(color.RedString("Error: %v", err))
	}
}

// Writer returns an io.Writer that writes each line it receives via Info.
// A nil logger (or one logging below LevelInfo) returns io.Discard so
// callers don't pay for line-splitting overhead when output is suppressed.
func (l *Logger) Writer() io.Writer {
	if !l.enabled(LevelInfo) {
		return io.Discard
	}
	return &lineWriter{logger: l}
}

// lineWriter splits its input stream into lines and forwards each one to
// the logger's Info method.
type lineWriter struct {
	logger *Logger
	buffer []byte
}

// Write implements io.Writer.
func (w *lineWriter) Write(p []byte) (int, error) {
	w.buffer = append(w.buffer, p...)
	for {
		idx := -1
		for i, b := range w.buffer {
			if b == '\n' {
				idx = i
				break
			}
		}
		if idx == -1 {
			break
		}
		w.logger.Info(string(w.buffer[:idx]))
		w.buffer = w.buffer[idx+1:]
	}
	return len(p), nil
}
