package jobs

import (
	"fmt"
	"sync"
	"time"
)

// MaxLineRunes bounds a single log line.
const MaxLineRunes = 2000

// LogEntry is one sequenced line of the job console.
type LogEntry struct {
	Seq  int64     `json:"seq"`
	Time time.Time `json:"time"`
	Line string    `json:"line"`
}

// LogBuffer is the append-only console of the current job. Lines are never
// dropped while a job runs; Reset clears it for the next job.
type LogBuffer struct {
	mu      sync.RWMutex
	nextSeq int64
	entries []LogEntry
	now     func() time.Time
}

// NewLogBuffer creates an empty job console.
func NewLogBuffer() *LogBuffer {
	return &LogBuffer{now: time.Now}
}

// Append stamps and stores one line.
func (b *LogBuffer) Append(message string) LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	at := b.now()
	b.nextSeq++
	entry := LogEntry{
		Seq:  b.nextSeq,
		Time: at,
		Line: fmt.Sprintf("[%s] %s", at.Format("15:04:05"), clip(message)),
	}
	b.entries = append(b.entries, entry)
	return entry
}

// Since returns entries with sequence strictly greater than seq.
func (b *LogBuffer) Since(seq int64) []LogEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.entries) == 0 {
		return nil
	}

	out := make([]LogEntry, 0, len(b.entries))
	for _, entry := range b.entries {
		if entry.Seq > seq {
			out = append(out, entry)
		}
	}
	return out
}

// LastSeq returns the sequence of the newest line.
func (b *LogBuffer) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}

// Reset empties the buffer. Sequence numbers keep increasing across jobs so a
// client's cursor from a previous job never hides new lines.
func (b *LogBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

func clip(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxLineRunes {
		return s
	}
	return string(runes[:MaxLineRunes]) + "..."
}
