package engine

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReport_Indentation(t *testing.T) {
	var buf bytes.Buffer
	r := NewReport(&buf, quietLogger())

	r.Line("top")
	r.Indent()
	r.Line("child %d", 1)
	r.Indent()
	r.Line("grandchild")
	r.Line("")
	r.Outdent()
	r.Outdent()
	r.Outdent()
	r.Line("%d%% done", 100)

	assert.Equal(t, "top\n    child 1\n        grandchild\n\n100% done\n", buf.String())
}

func TestReport_LogsNonEmptyLines(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	r := NewReport(nil, logger)

	r.SetLabel("Computation-3 (x)")
	r.Line("hello")
	r.Line("")

	assert.Contains(t, logs.String(), "msg=hello")
	assert.Contains(t, logs.String(), `comp="Computation-3 (x)"`)
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("\n")))
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errors.New("broken pipe")
}

func TestReport_KeepsFirstError(t *testing.T) {
	w := &failingWriter{}
	r := NewReport(w, quietLogger())
	r.Line("one")
	r.Line("two")

	assert.EqualError(t, r.Err(), "broken pipe")
	assert.Equal(t, 1, w.n, "writes stop after the first error")
}

func TestReport_SetIndentClamps(t *testing.T) {
	var buf bytes.Buffer
	r := NewReport(&buf, quietLogger())
	r.SetIndent(-3)
	r.Line("x")
	assert.Equal(t, "x\n", buf.String())
}
