package logger

import (
	"fmt"
	"sync"
	"time"
)

// LogEntry is one captured log line.
type LogEntry struct {
	Timestamp time.Time
	Vehicle   string
	Message   string
}

// LogBuffer is a bounded ring of log entries, safe for concurrent use.
type LogBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	maxSize int
}

// NewLogBuffer creates a buffer keeping the last maxSize entries.
func NewLogBuffer(maxSize int) *LogBuffer {
	return &LogBuffer{
		entries: make([]LogEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Add appends an entry, evicting the oldest past capacity.
func (lb *LogBuffer) Add(vehicle, message string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.entries = append(lb.entries, LogEntry{
		Timestamp: time.Now(),
		Vehicle:   vehicle,
		Message:   message,
	})
	if len(lb.entries) > lb.maxSize {
		lb.entries = lb.entries[len(lb.entries)-lb.maxSize:]
	}
}

// GetAll returns a copy of every buffered entry, oldest first.
func (lb *LogBuffer) GetAll() []LogEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	result := make([]LogEntry, len(lb.entries))
	copy(result, lb.entries)
	return result
}

// FormatLogEntry renders an entry for display.
func FormatLogEntry(entry LogEntry) string {
	return fmt.Sprintf("[%s] %s: %s",
		entry.Timestamp.Format("15:04:05"),
		entry.Vehicle,
		entry.Message,
	)
}
