package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// TestLogger captures log output for assertions in tests.
type TestLogger struct {
	*zerolog.Logger
	buf *syncBuffer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// NewTestLogger creates a trace-level logger writing JSON to a buffer.
func NewTestLogger(t testing.TB) *TestLogger {
	t.Helper()

	buf := &syncBuffer{}
	logger := zerolog.New(buf).Level(zerolog.TraceLevel).With().Timestamp().Logger()
	return &TestLogger{Logger: &logger, buf: buf}
}

// Output returns the captured log output
func (tl *TestLogger) Output() string {
	return tl.buf.String()
}

// Lines returns the captured output split into lines
func (tl *TestLogger) Lines() []string {
	out := strings.TrimSpace(tl.Output())
	if out == "" {
		return []string{}
	}
	return strings.Split(out, "\n")
}

// Contains reports whether the output contains substr
func (tl *TestLogger) Contains(substr string) bool {
	return strings.Contains(tl.Output(), substr)
}
