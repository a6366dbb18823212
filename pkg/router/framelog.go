package router

import "sync"

// FrameLog is the append-only activity record of every frame observed by
// the switch, bounded only by process memory. Appends from concurrent jack
// goroutines are mutually exclusive; ordering across goroutines is
// best-effort.
type FrameLog struct {
	mu      sync.Mutex
	enabled bool
	entries []string
}

func NewFrameLog(enabled bool) *FrameLog {
	return &FrameLog{enabled: enabled}
}

// Add appends one rendered frame observation when logging is enabled.
func (l *FrameLog) Add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}
	l.entries = append(l.entries, entry)
}

// SetEnabled toggles logging. Existing entries are kept.
func (l *FrameLog) SetEnabled(on bool) {
	l.mu.Lock()
	l.enabled = on
	l.mu.Unlock()
}

// Entries returns a snapshot of the log.
func (l *FrameLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// Len reports the number of recorded observations.
func (l *FrameLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
