package buffer

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/mintdeck/mintdeck/internal/models"
)

// DefaultLogCapacity bounds the log buffer when the config leaves it unset.
const DefaultLogCapacity = 2000

// Log is the bounded event log. Appends assign monotonically increasing
// IDs, evict oldest-first past capacity, and fire the OnAppend hook so
// connected subscribers see new entries immediately rather than on the
// next push tick.
type Log struct {
	mu     sync.Mutex
	ring   *ring[models.LogEntry]
	nextID uint64
	notify func(models.LogEntry)
}

// NewLog creates a log buffer holding at most capacity entries.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{ring: newRing[models.LogEntry](capacity)}
}

// OnAppend registers the hook invoked after every append. The hook runs
// outside the buffer lock and must not block for long; the push layer
// hands the entry to per-subscriber channels and returns.
func (l *Log) OnAppend(fn func(models.LogEntry)) {
	l.mu.Lock()
	l.notify = fn
	l.mu.Unlock()
}

// Append records an entry and returns it with ID and timestamp filled in.
func (l *Log) Append(category models.LogCategory, level models.LogLevel, message string, detail json.RawMessage) models.LogEntry {
	l.mu.Lock()
	l.nextID++
	e := models.LogEntry{
		ID:          l.nextID,
		TimestampMs: time.Now().UnixMilli(),
		Category:    category,
		Level:       level,
		Message:     message,
		Detail:      detail,
	}
	l.ring.push(e)
	notify := l.notify
	l.mu.Unlock()

	if notify != nil {
		notify(e)
	}
	return e
}

// LogQuery filters a Query call. Zero values mean "no filter"; SinceID
// implements cursor-based incremental fetch (strictly-after semantics).
type LogQuery struct {
	Level    models.LogLevel
	Category models.LogCategory
	SinceID  uint64
	Limit    int
}

// Query returns the newest Limit entries matching q, in insertion order,
// plus the total number of matches before the limit was applied.
func (l *Log) Query(q LogQuery) (entries []models.LogEntry, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var matched []models.LogEntry
	l.ring.each(func(e models.LogEntry) bool {
		if e.ID <= q.SinceID {
			return true
		}
		if q.Level != "" && e.Level != q.Level {
			return true
		}
		if q.Category != "" && e.Category != q.Category {
			return true
		}
		matched = append(matched, e)
		return true
	})

	total = len(matched)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[len(matched)-q.Limit:]
	}
	return matched, total
}

// Clear empties the buffer. Copies already handed to consumers are
// unaffected, and IDs keep increasing from where they were.
func (l *Log) Clear() {
	l.mu.Lock()
	l.ring.reset()
	l.mu.Unlock()
}

// Len returns the number of buffered entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.len()
}
