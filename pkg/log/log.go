// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fileIndent  = 4  // spaces to indent file entries
	nameWidth   = 35 // Base width for the relative path
	kindWidth   = 6  // Width for the entry kind
	statusWidth = 12 // Width for status text
)

// 🎯 TransferOperation is one completed (or failed) step of a transfer
type TransferOperation struct {
	Path   string // Relative path within the transfer
	IsDir  bool   // Whether a directory was created
	Size   int64  // Bytes copied, files only
	DryRun bool   // Whether nothing was actually moved
	Err    error  // Failure, if any
}

// 📦 TransferHeader describes a transfer as a whole
type TransferHeader struct {
	Direction   string // upload or download
	Source      string // Source endpoint
	Destination string // Destination endpoint
	Transport   string // Transport name
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	mu         sync.Mutex
	current    *TransferHeader
	operations int
	failures   int
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// 🏭 NewWithZerolog creates a logger that shares an existing zerolog logger
func NewWithZerolog(console io.Writer, zlog zerolog.Logger) *Logger {
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		panic("logger not found in context")
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatTransferOperation formats a transfer operation for display
func (l *Logger) formatTransferOperation(op TransferOperation) string {
	var symbol rune
	var symbolColor color.Attribute
	var status string
	switch {
	case op.Err != nil:
		symbol = '✗'
		symbolColor = color.FgRed
		status = "FAILED"
	case op.IsDir:
		symbol = '▸'
		symbolColor = color.FgBlue
		status = "created"
	default:
		symbol = '✓'
		symbolColor = color.FgGreen
		status = humanize.IBytes(uint64(max(op.Size, 0)))
	}
	if op.DryRun && op.Err == nil {
		symbol = '•'
		symbolColor = color.FgCyan
		status = "dry run"
	}

	kind, kindColor := "file", color.FgYellow
	if op.IsDir {
		kind, kindColor = "dir", color.FgCyan
	}

	return fmt.Sprintf("%s%s %s %s %s",
		fmt.Sprintf("%*s", fileIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", nameWidth, op.Path),
		color.New(kindColor).Sprint(fmt.Sprintf("%-*s", kindWidth, kind)),
		fmt.Sprintf("%-*s", statusWidth, status))
}

// 📝 LogTransferOperation logs one finished operation
func (l *Logger) LogTransferOperation(ctx context.Context, op TransferOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.operations++
	if op.Err != nil {
		l.failures++
	}

	fmt.Fprintln(l.console, l.formatTransferOperation(op))

	ev := l.zlog.Debug()
	if op.Err != nil {
		ev = l.zlog.Error().Err(op.Err)
	}
	ev.Str("path", op.Path).
		Bool("is_dir", op.IsDir).
		Int64("size", op.Size).
		Bool("dry_run", op.DryRun).
		Msg("transfer operation")
}

// 📝 StartTransfer prints the transfer header
func (l *Logger) StartTransfer(ctx context.Context, h TransferHeader) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current = &h
	l.operations = 0
	l.failures = 0

	fmt.Fprintf(l.console, "[%s %s]\n",
		h.Direction,
		color.New(color.FgCyan).Sprint(h.Destination))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(h.Source),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprint(h.Transport))

	l.zlog.Info().
		Str("direction", h.Direction).
		Str("source", h.Source).
		Str("destination", h.Destination).
		Str("transport", h.Transport).
		Msg("starting transfer")
}

// 📝 EndTransfer logs a summary of the current transfer
func (l *Logger) EndTransfer(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current == nil {
		return
	}

	l.zlog.Info().
		Str("destination", l.current.Destination).
		Int("operations", l.operations).
		Int("failures", l.failures).
		Msg("transfer complete")

	l.current = nil
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("smartscp")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
