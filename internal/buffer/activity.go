package buffer

import (
	"sync"
	"time"

	"github.com/mintdeck/mintdeck/internal/models"
)

// DefaultActivityCapacity bounds the activity buffer by default.
const DefaultActivityCapacity = 1000

// Activity is the bounded store of observed mint operations. Alongside
// the ring it keeps cumulative per-operation totals that survive both
// eviction and Clear, so scrape counters stay monotonic.
type Activity struct {
	mu       sync.Mutex
	ring     *ring[models.ActivityRecord]
	nextID   uint64
	totals   map[models.OpType]uint64
	onRecord func(models.ActivityRecord)
}

// NewActivity creates an activity buffer holding at most capacity records.
func NewActivity(capacity int) *Activity {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &Activity{
		ring:   newRing[models.ActivityRecord](capacity),
		totals: make(map[models.OpType]uint64),
	}
}

// OnRecord registers a hook invoked after every Record call, outside the
// lock. The scrape layer uses it to bump its request counter.
func (a *Activity) OnRecord(fn func(models.ActivityRecord)) {
	a.mu.Lock()
	a.onRecord = fn
	a.mu.Unlock()
}

// Record appends one operation and returns the stored record.
func (a *Activity) Record(op models.OpType, amount *int64, source string) models.ActivityRecord {
	a.mu.Lock()
	a.nextID++
	r := models.ActivityRecord{
		ID:          a.nextID,
		Op:          op,
		Amount:      amount,
		TimestampMs: time.Now().UnixMilli(),
		Source:      source,
	}
	a.ring.push(r)
	a.totals[op]++
	notify := a.onRecord
	a.mu.Unlock()

	if notify != nil {
		notify(r)
	}
	return r
}

// Recent returns the newest n records in insertion order.
func (a *Activity) Recent(n int) []models.ActivityRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ring.tail(n)
}

// Query returns the newest limit records with ID > sinceID, in insertion
// order, plus the total number of matches.
func (a *Activity) Query(sinceID uint64, limit int) (records []models.ActivityRecord, total int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var matched []models.ActivityRecord
	a.ring.each(func(r models.ActivityRecord) bool {
		if r.ID > sinceID {
			matched = append(matched, r)
		}
		return true
	})
	total = len(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, total
}

// Totals returns a copy of the cumulative per-operation counters.
func (a *Activity) Totals() map[models.OpType]uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[models.OpType]uint64, len(a.totals))
	for op, n := range a.totals {
		out[op] = n
	}
	return out
}

// Summary builds the activity slice of a snapshot: cumulative totals and
// the newest n records.
func (a *Activity) Summary(n int) models.ActivitySummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	totals := make(map[models.OpType]uint64, len(a.totals))
	for op, c := range a.totals {
		totals[op] = c
	}
	return models.ActivitySummary{
		Totals: totals,
		Recent: a.ring.tail(n),
	}
}

// Clear empties the ring. Cumulative totals are kept: the scrape
// counter built on them must never move backwards.
func (a *Activity) Clear() {
	a.mu.Lock()
	a.ring.reset()
	a.mu.Unlock()
}

// Len returns the number of buffered records.
func (a *Activity) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ring.len()
}
