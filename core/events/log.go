package events

import "sync"

// Log is an append-only recorder of emitted events. The ledger never reads
// its own events; the log exists for external observers (RPC debug surface,
// tests) that want to replay the sequence of state transitions.
type Log struct {
	mu      sync.Mutex
	entries []Event
}

// NewLog returns an empty event log.
func NewLog() *Log {
	return &Log{}
}

// Emit implements the Emitter interface by appending to the log.
func (l *Log) Emit(evt Event) {
	if l == nil || evt == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, evt)
}

// Events returns a snapshot of all recorded events in emission order.
func (l *Log) Events() []Event {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len reports the number of recorded events.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
