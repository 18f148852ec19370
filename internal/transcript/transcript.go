// Package transcript keeps the bounded conversation history handed to the model on every turn.
package transcript

import (
	"sync"
	"time"
)

// Role tags who produced a transcript entry.
type Role string

const (
	RoleUser             Role = "user"      // Instructions and loop diagnostics.
	RoleAssistant        Role = "assistant" // Raw model output.
	RoleCapabilityResult Role = "tool"      // Results of listing or invoking capabilities.
	RoleDelegate         Role = "delegate"  // Answers produced by the delegate model.
)

// Entry is one role tagged turn.
type Entry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is a sliding window over the most recent entries. Once Capacity
// entries are held, every Append silently drops the oldest one. A capacity of
// zero or less keeps everything.
type Transcript struct {
	mu       sync.RWMutex
	capacity int
	ring     []Entry
	head     int // index of the oldest entry once the ring is full
	size     int
}

// New constructs an empty transcript bounded to capacity entries.
func New(capacity int) *Transcript {
	t := &Transcript{capacity: capacity}
	if capacity > 0 {
		t.ring = make([]Entry, capacity)
	}
	return t
}

// Append adds entry to the tail, evicting from the head when full.
func (t *Transcript) Append(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.capacity <= 0 {
		t.ring = append(t.ring, entry)
		t.size++
		return
	}

	if t.size < t.capacity {
		t.ring[(t.head+t.size)%t.capacity] = entry
		t.size++
		return
	}
	t.ring[t.head] = entry
	t.head = (t.head + 1) % t.capacity
}

// Snapshot returns a point in time copy of the retained entries, oldest first.
func (t *Transcript) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, t.size)
	if t.capacity <= 0 {
		copy(out, t.ring)
		return out
	}
	for i := 0; i < t.size; i++ {
		out[i] = t.ring[(t.head+i)%t.capacity]
	}
	return out
}

// Last returns the newest entry when present.
func (t *Transcript) Last() (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.size == 0 {
		return Entry{}, false
	}
	if t.capacity <= 0 {
		return t.ring[t.size-1], true
	}
	return t.ring[(t.head+t.size-1)%t.capacity], true
}

// Len reports the number of retained entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Capacity reports the configured bound. Zero means unbounded.
func (t *Transcript) Capacity() int {
	if t.capacity < 0 {
		return 0
	}
	return t.capacity
}
