// Package logger writes leveled logfmt lines tagged with the component
// that produced them:
//
//	ts=2026-03-02T09:15:04.120Z level=info component=redmine msg="loaded 2026-03"
//
// Each package takes a Component with For; the package-level functions log
// under the "cli" component.
package logger

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a line.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "level(" + strconv.Itoa(int(l)) + ")"
	}
	return levelNames[l]
}

// ParseLevel converts debug, info, warn or error (any case) to a Level.
// An empty name means info.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return LevelInfo, nil
	case "warning":
		return LevelWarn, nil
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q: valid levels are %s", s, strings.Join(levelNames[:], ", "))
}

// sink is where every component writes: a primary writer plus an optional
// mirror file.
type sink struct {
	mu     sync.Mutex
	min    Level
	w      io.Writer
	mirror *os.File
	now    func() time.Time
}

var out = &sink{min: LevelInfo, w: os.Stderr, now: time.Now}

// SetLevel sets the lowest level that is written.
func SetLevel(level Level) {
	out.mu.Lock()
	out.min = level
	out.mu.Unlock()
}

// GetLevel returns the lowest level that is written.
func GetLevel() Level {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.min
}

// SetOutput replaces the primary writer.
func SetOutput(w io.Writer) {
	out.mu.Lock()
	out.w = w
	out.mu.Unlock()
}

// SetLogFile mirrors every written line into the file at path, replacing
// any previous mirror.
func SetLogFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", path, err)
	}
	out.mu.Lock()
	prev := out.mirror
	out.mirror = f
	out.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return nil
}

// Close stops mirroring into the log file.
func Close() {
	out.mu.Lock()
	f := out.mirror
	out.mirror = nil
	out.mu.Unlock()
	if f != nil {
		f.Close()
	}
}

func (s *sink) write(level Level, component, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if level < s.min {
		return
	}

	var b strings.Builder
	b.WriteString("ts=")
	b.WriteString(s.now().UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteString(" level=")
	b.WriteString(level.String())
	b.WriteString(" component=")
	b.WriteString(component)
	b.WriteString(" msg=")
	b.WriteString(quote(msg))
	b.WriteByte('\n')
	line := b.String()

	io.WriteString(s.w, line)
	if s.mirror != nil {
		io.WriteString(s.mirror, line)
	}
}

// quote leaves plain words bare and quotes anything a logfmt reader would
// split on.
func quote(v string) string {
	if v == "" || strings.ContainsAny(v, " =\"\t\n") {
		return strconv.Quote(v)
	}
	return v
}

// Component logs under a fixed component name.
type Component struct {
	name string
}

// For returns the logger of one component, such as "redmine" or "remote".
func For(name string) Component {
	return Component{name: name}
}

func (c Component) Debug(format string, args ...any) { out.write(LevelDebug, c.name, fmt.Sprintf(format, args...)) }
func (c Component) Info(format string, args ...any)  { out.write(LevelInfo, c.name, fmt.Sprintf(format, args...)) }
func (c Component) Warn(format string, args ...any)  { out.write(LevelWarn, c.name, fmt.Sprintf(format, args...)) }
func (c Component) Error(format string, args ...any) { out.write(LevelError, c.name, fmt.Sprintf(format, args...)) }

var cli = For("cli")

func Debug(format string, args ...any) { cli.Debug(format, args...) }
func Info(format string, args ...any)  { cli.Info(format, args...) }
func Warn(format string, args ...any)  { cli.Warn(format, args...) }
func Error(format string, args ...any) { cli.Error(format, args...) }
