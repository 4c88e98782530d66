// Package log is this repository's structured logger, in the same spirit
// as the teacher repo's own `log` package (a fork of log15): leveled,
// key/value structured, with a package-level root logger plus New() for
// scoped sub-loggers. Every record carries a "caller" key captured with
// go-stack/stack, the same call-site-capture library log15 itself depends
// on — see DESIGN.md.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
)

// Level is the log-level, ordered least to most verbose, matching the
// `Logs.LogLevel` config option of spec.md §6.
type Level int

const (
	LvlOff Level = iota
	LvlCrit
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func ParseLevel(s string) (Level, error) {
	switch s {
	case "off":
		return LvlOff, nil
	case "error":
		return LvlError, nil
	case "warn":
		return LvlWarn, nil
	case "info":
		return LvlInfo, nil
	case "debug":
		return LvlDebug, nil
	case "trace":
		return LvlTrace, nil
	}
	return LvlInfo, fmt.Errorf("log: unrecognized level %q", s)
}

func (l Level) String() string {
	switch l {
	case LvlOff:
		return "off"
	case LvlCrit:
		return "crit"
	case LvlError:
		return "error"
	case LvlWarn:
		return "warn"
	case LvlInfo:
		return "info"
	case LvlDebug:
		return "debug"
	case LvlTrace:
		return "trace"
	default:
		return "unknown"
	}
}

// Logger is a leveled, structured logger carrying a fixed context of
// key/value pairs appended to every record it emits.
type Logger struct {
	ctx []interface{}
}

var (
	mu     sync.Mutex
	out    io.Writer = os.Stderr
	level            = LvlInfo
	nowFn            = time.Now
)

// SetOutput redirects where the root handler writes records.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetLevel sets the minimum level that will be written.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
}

// New returns a Logger whose every record carries ctx in addition to its
// own key/value pairs, mirroring log15's log.New(ctx...).
func New(ctx ...interface{}) Logger {
	return Logger{ctx: ctx}
}

// write's skip accounts for its own frame plus the one leveled function that
// called it: 2 both for a direct Logger method call (l.Info(...)) and for
// the package-level root wrappers below, which call write directly.
func (l Logger) write(lvl Level, msg string, kv []interface{}, skip int) {
	mu.Lock()
	defer mu.Unlock()
	if lvl > level {
		return
	}
	caller := stack.Caller(skip)
	line := fmt.Sprintf("%s [%s] %s caller=%v", nowFn().Format("2006-01-02T15:04:05.000Z0700"), lvl, msg, caller)
	all := append(append([]interface{}{}, l.ctx...), kv...)
	for i := 0; i+1 < len(all); i += 2 {
		line += fmt.Sprintf(" %v=%v", all[i], all[i+1])
	}
	fmt.Fprintln(out, line)
}

func (l Logger) Trace(msg string, kv ...interface{}) { l.write(LvlTrace, msg, kv, 2) }
func (l Logger) Debug(msg string, kv ...interface{}) { l.write(LvlDebug, msg, kv, 2) }
func (l Logger) Info(msg string, kv ...interface{})  { l.write(LvlInfo, msg, kv, 2) }
func (l Logger) Warn(msg string, kv ...interface{})  { l.write(LvlWarn, msg, kv, 2) }
func (l Logger) Error(msg string, kv ...interface{}) { l.write(LvlError, msg, kv, 2) }
func (l Logger) Crit(msg string, kv ...interface{})  { l.write(LvlCrit, msg, kv, 2) }

var root = New()

func Trace(msg string, kv ...interface{}) { root.write(LvlTrace, msg, kv, 2) }
func Debug(msg string, kv ...interface{}) { root.write(LvlDebug, msg, kv, 2) }
func Info(msg string, kv ...interface{})  { root.write(LvlInfo, msg, kv, 2) }
func Warn(msg string, kv ...interface{})  { root.write(LvlWarn, msg, kv, 2) }
func Error(msg string, kv ...interface{}) { root.write(LvlError, msg, kv, 2) }
func Crit(msg string, kv ...interface{})  { root.write(LvlCrit, msg, kv, 2) }
