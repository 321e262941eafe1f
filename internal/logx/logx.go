// Package logx provides the console logger used across the CLI.
package logx

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Logger defines the interface for logging.
type Logger interface {
	Debug(format string, v ...any)
	Info(format string, v ...any)
	Warn(format string, v ...any)
	Error(format string, v ...any)
}

// Console writes human-oriented lines. Info goes to Out; warnings, errors and
// debug lines go to Err.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	err   io.Writer
	debug bool
}

// NewConsole returns a logger bound to stdout/stderr.
func NewConsole(debug bool) *Console {
	return NewConsoleWriters(os.Stdout, os.Stderr, debug)
}

// NewConsoleWriters allows injecting writers (used in tests).
func NewConsoleWriters(out, errw io.Writer, debug bool) *Console {
	if out == nil {
		out = io.Discard
	}
	if errw == nil {
		errw = io.Discard
	}
	return &Console{out: out, err: errw, debug: debug}
}

// SetDebug toggles debug output.
func (c *Console) SetDebug(on bool) {
	c.mu.Lock()
	c.debug = on
	c.mu.Unlock()
}

func (c *Console) Debug(format string, v ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.debug {
		return
	}
	c.line(c.err, "DEBUG: ", format, v...)
}

func (c *Console) Info(format string, v ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line(c.out, "", format, v...)
}

func (c *Console) Warn(format string, v ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line(c.err, "⚠ Warning: ", format, v...)
}

func (c *Console) Error(format string, v ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.line(c.err, "✗ Error: ", format, v...)
}

func (c *Console) line(w io.Writer, prefix, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, prefix+msg)
}

type nop struct{}

func (nop) Debug(string, ...any) {}
func (nop) Info(string, ...any)  {}
func (nop) Warn(string, ...any)  {}
func (nop) Error(string, ...any) {}

// Nop discards everything.
var Nop Logger = nop{}

var _ Logger = (*Console)(nil)
