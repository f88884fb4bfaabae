package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const eventTimeLayout = "2006-01-02 15:04:05"

var (
	eventMu   sync.Mutex
	eventPath string
)

// SetEventLogPath changes where LogEvent appends. Empty disables the file
// but events still reach GlobalEventCapture.
func SetEventLogPath(path string) {
	eventMu.Lock()
	eventPath = path
	eventMu.Unlock()
}

// Event is one line of the event log, such as a return-state restoration.
type Event struct {
	Timestamp time.Time
	Type      string
	Title     string
	Summary   string
}

// String renders "[ts] [type] Title - Summary". A zero Timestamp means now.
func (e *Event) String() string {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	s := fmt.Sprintf("[%s] [%s] %s", ts.Format(eventTimeLayout), e.Type, e.Title)
	if e.Summary != "" {
		s += " - " + e.Summary
	}
	return s
}

// LogEvent records e in GlobalEventCapture and appends it to the event log.
func LogEvent(e *Event) {
	line := e.String()
	_, _ = GlobalEventCapture.Write([]byte(line))

	eventMu.Lock()
	defer eventMu.Unlock()
	if eventPath == "" {
		return
	}
	if err := appendLine(eventPath, line); err != nil {
		slog.Warn("Event log write failed", "path", eventPath, "error", err)
	}
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
