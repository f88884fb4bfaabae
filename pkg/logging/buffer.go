package logging

import (
	"strings"
	"sync"
)

// captureDepth is how many lines a LogCaptureWriter keeps.
const captureDepth = 50

// LogCaptureWriter is a thread-safe writer that keeps the most recent lines.
type LogCaptureWriter struct {
	mu    sync.RWMutex
	lines []string
	depth int
}

// NewLogCaptureWriter creates a writer holding up to depth lines.
func NewLogCaptureWriter(depth int) *LogCaptureWriter {
	if depth <= 0 {
		depth = captureDepth
	}
	return &LogCaptureWriter{depth: depth}
}

// GlobalLogCapture is the singleton instance for capturing logs.
var GlobalLogCapture = NewLogCaptureWriter(captureDepth)

// GlobalEventCapture is the singleton instance for capturing domain events.
var GlobalEventCapture = NewLogCaptureWriter(captureDepth)

// Write implements io.Writer. Each call is stored as one line.
func (w *LogCaptureWriter) Write(p []byte) (n int, err error) {
	line := strings.TrimRight(string(p), "\n")
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, line)
	if len(w.lines) > w.depth {
		w.lines = w.lines[len(w.lines)-w.depth:]
	}
	return len(p), nil
}

// GetLastLine returns the most recent log line.
func (w *LogCaptureWriter) GetLastLine() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.lines) == 0 {
		return ""
	}
	return w.lines[len(w.lines)-1]
}

// Recent returns up to n lines, newest last.
func (w *LogCaptureWriter) Recent(n int) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if n <= 0 || n > len(w.lines) {
		n = len(w.lines)
	}
	out := make([]string, n)
	copy(out, w.lines[len(w.lines)-n:])
	return out
}
