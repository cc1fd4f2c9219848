package trust

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

type MaskLevel int

const (
	Nothing   MaskLevel = 0x0
	ErrorMask MaskLevel = 0x1
	WarnMask  MaskLevel = 0x2
	InfoMask  MaskLevel = 0x4
	DebugMask MaskLevel = 0x8
	StatsMask MaskLevel = 0x10
	fatalMask MaskLevel = 0x80
)

// Logger is a levelled logger for one kernel subsystem.  All loggers made
// from the same root share its mask.
type Logger struct {
	hc   hclog.Logger
	mask *maskHolder
}

type maskHolder struct {
	lock  sync.Mutex
	level MaskLevel
}

// ExitFunc is called by Fatalf after the message is printed.
var ExitFunc = os.Exit

var std = New("kernel", os.Stderr)

// New returns a logger named name that writes to w.  The logger starts out
// with every level turned on.
func New(name string, w io.Writer) *Logger {
	hc := hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.Trace, // we do our own masking
		Output: w,
	})
	return &Logger{
		hc:   hc,
		mask: &maskHolder{level: fatalMask | StatsMask | ErrorMask | WarnMask | InfoMask | DebugMask},
	}
}

// Default returns the package level logger.
func Default() *Logger {
	return std
}

// SetDefault replaces the package level logger and returns the old one.
func SetDefault(l *Logger) *Logger {
	prev := std
	std = l
	return prev
}

// Named returns a sub-logger for a subsystem.  It shares the mask of l.
func (l *Logger) Named(name string) *Logger {
	return &Logger{hc: l.hc.Named(name), mask: l.mask}
}

// SetLevel lets you set an error mask directly. You can pass in something like
// ErrorMask | DebugMask to control exactly what gets printed.  It returns the
// previous mask.
func (l *Logger) SetLevel(mask MaskLevel) MaskLevel {
	if mask&0x1f == 0 {
		l.hc.Warn("trust.SetLevel is turning off log messages")
	}
	result := Nothing
	switch {
	case mask&ErrorMask > 0:
		result |= ErrorMask
		fallthrough
	case mask&WarnMask > 0:
		result |= WarnMask
		fallthrough
	case mask&InfoMask > 0:
		result |= InfoMask
		fallthrough
	case mask&DebugMask > 0:
		result |= DebugMask
		fallthrough
	case mask&StatsMask > 0:
		result |= StatsMask
	}
	l.mask.lock.Lock()
	defer l.mask.lock.Unlock()
	r := l.mask.level & 0x1f
	l.mask.level = result | fatalMask
	return r
}

func (l *Logger) Level() MaskLevel {
	l.mask.lock.Lock()
	defer l.mask.lock.Unlock()
	return l.mask.level
}

// ParseLevel turns a level name from a settings file into the mask that
// prints that level and everything more severe.  Unknown names give InfoMask.
func ParseLevel(s string) MaskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return ErrorMask
	case "warn", "warning":
		return ErrorMask | WarnMask
	case "debug":
		return ErrorMask | WarnMask | InfoMask | DebugMask
	case "stats":
		return ErrorMask | WarnMask | InfoMask | DebugMask | StatsMask
	default:
		return ErrorMask | WarnMask | InfoMask
	}
}

// Restrict sets the mask to exactly the bits given (plus fatal), with none
// of the cascading done by SetLevel.
func (l *Logger) Restrict(mask MaskLevel) {
	l.mask.lock.Lock()
	l.mask.level = mask | fatalMask
	l.mask.lock.Unlock()
}

func (l *Logger) logf(lvl MaskLevel, format string, params ...interface{}) {
	if l.Level()&lvl == 0 {
		return
	}
	switch {
	case lvl&fatalMask > 0, lvl&ErrorMask > 0:
		l.hc.Error(strings.TrimRight(fmt.Sprintf(format, params...), "\n"))
	case lvl&WarnMask > 0:
		l.hc.Warn(strings.TrimRight(fmt.Sprintf(format, params...), "\n"))
	case lvl&InfoMask > 0:
		l.hc.Info(strings.TrimRight(fmt.Sprintf(format, params...), "\n"))
	case lvl&DebugMask > 0:
		l.hc.Debug(strings.TrimRight(fmt.Sprintf(format, params...), "\n"))
	case lvl&StatsMask > 0:
		s, ok := params[0].(string)
		if !ok {
			s = "unknown"
		}
		l.hc.Info(strings.TrimRight(fmt.Sprintf(format, params[1:]...), "\n"), "stats", s)
	}
}

//Fatalf prints the given log message (format + params) and then
//exits with the exitCode provided.  Fatalf is not maskable.
func (l *Logger) Fatalf(exitCode int, format string, params ...interface{}) {
	l.logf(fatalMask, format, params...)
	ExitFunc(exitCode)
}

//Errorf prints the given log message (format + params) using the ErrorMask level.
func (l *Logger) Errorf(format string, params ...interface{}) {
	l.logf(ErrorMask, format, params...)
}

//Warnf prints the given log message (format + params) using the WarnMask level.
func (l *Logger) Warnf(format string, params ...interface{}) {
	l.logf(WarnMask, format, params...)
}

//Infof prints the given log message (format + params) using the InfoMask level.
func (l *Logger) Infof(format string, params ...interface{}) {
	l.logf(InfoMask, format, params...)
}

//Debugf prints the given log message (format + params) using the DebugMask level.
func (l *Logger) Debugf(format string, params ...interface{}) {
	l.logf(DebugMask, format, params...)
}

//Statsf prints the given log message (format + params) using the StatsMask level and
//takes an extra parameter that will be visible in the log message as the category
//of stats that is reported.
func (l *Logger) Statsf(category string, format string, params ...interface{}) {
	l.logf(StatsMask, format, append([]interface{}{category}, params...)...)
}

func SetLevel(mask MaskLevel) MaskLevel { return std.SetLevel(mask) }
func Level() MaskLevel                  { return std.Level() }

func Fatalf(exitCode int, format string, params ...interface{}) {
	std.Fatalf(exitCode, format, params...)
}
func Errorf(format string, params ...interface{}) { std.Errorf(format, params...) }
func Warnf(format string, params ...interface{})  { std.Warnf(format, params...) }
func Infof(format string, params ...interface{})  { std.Infof(format, params...) }
func Debugf(format string, params ...interface{}) { std.Debugf(format, params...) }
func Statsf(category string, format string, params ...interface{}) {
	std.Statsf(category, format, params...)
}

func LevelToString() string {
	level := std.Level()
	var names []string
	for _, b := range []struct {
		m MaskLevel
		n string
	}{{ErrorMask, "error"}, {WarnMask, "warn"}, {InfoMask, "info"}, {DebugMask, "debug"}, {StatsMask, "stats"}} {
		if level&b.m > 0 {
			names = append(names, b.n)
		}
	}
	return strings.Join(names, " ")
}
