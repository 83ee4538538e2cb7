package engine

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Report is the operator-facing, indented text record of a run.
// Every non-empty line is also logged at Info level.
type Report struct {
	w      io.Writer
	logger *slog.Logger
	indent int
	label  string
	err    error
}

// NewReport creates a report writing to w. A nil w discards the text but
// still logs.
func NewReport(w io.Writer, logger *slog.Logger) *Report {
	if w == nil {
		w = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Report{w: w, logger: logger}
}

// Line writes one formatted line at the current indentation.
func (r *Report) Line(format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	if msg != "" {
		if r.label != "" {
			r.logger.Info(msg, "comp", r.label)
		} else {
			r.logger.Info(msg)
		}
	}
	if r.err != nil {
		return
	}
	if msg != "" {
		msg = strings.Repeat("    ", r.indent) + msg
	}
	_, r.err = fmt.Fprintln(r.w, msg)
}

// Indent increases the indentation by one level.
func (r *Report) Indent() { r.indent++ }

// Outdent decreases the indentation by one level.
func (r *Report) Outdent() {
	if r.indent > 0 {
		r.indent--
	}
}

// SetIndent sets the indentation level.
func (r *Report) SetIndent(n int) { r.indent = max(n, 0) }

// SetLabel sets the computation label attached to logged lines.
func (r *Report) SetLabel(label string) { r.label = label }

// Err returns the first write error, if any.
func (r *Report) Err() error { return r.err }
