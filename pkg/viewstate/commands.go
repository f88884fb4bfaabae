package viewstate

import (
	"log/slog"
	"sync"
)

// Command kinds pushed to the client.
const (
	CommandScrollToMap = "scrollToMap"
	CommandFlyTo       = "flyTo"
	CommandFocusRegion = "focusRegion"
)

// Command is an instruction for the rendering client.
type Command struct {
	Type       string  `json:"type"`
	Camera     *Camera `json:"camera,omitempty"`
	DurationMS int64   `json:"durationMs,omitempty"`
	Region     string  `json:"region,omitempty"`
	Token      uint64  `json:"token,omitempty"`
}

// Broadcaster fans commands out to subscribers. Slow subscribers lose
// commands rather than block the coordinator.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[int]chan Command
	nextID int
	buffer int
}

// NewBroadcaster creates a broadcaster whose subscriber channels hold
// buffer commands.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster{subs: make(map[int]chan Command), buffer: buffer}
}

// Subscribe returns a command channel and a cancel func that closes it.
func (b *Broadcaster) Subscribe() (<-chan Command, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Command, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Publish delivers cmd to every subscriber without blocking.
func (b *Broadcaster) Publish(cmd Command) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- cmd:
		default:
			slog.Debug("Dropping view command for slow subscriber", "subscriber", id, "type", cmd.Type)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
