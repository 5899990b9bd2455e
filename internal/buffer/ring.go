// Package buffer implements the bounded in-memory stores backing the
// dashboard: a fixed-capacity log buffer and an activity buffer. Both
// evict oldest-first and hand out copies, never live references.
package buffer

// ring is a fixed-capacity FIFO. Pushing beyond capacity overwrites the
// oldest element. Not safe for concurrent use; callers lock.
type ring[T any] struct {
	data  []T
	start int
	count int
}

func newRing[T any](capacity int) *ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &ring[T]{data: make([]T, capacity)}
}

func (r *ring[T]) push(v T) {
	if r.count == len(r.data) {
		r.data[r.start] = v
		r.start = (r.start + 1) % len(r.data)
		return
	}
	r.data[(r.start+r.count)%len(r.data)] = v
	r.count++
}

func (r *ring[T]) len() int { return r.count }

func (r *ring[T]) reset() {
	r.start = 0
	r.count = 0
}

// each visits every element in insertion order until fn returns false.
func (r *ring[T]) each(fn func(T) bool) {
	for i := 0; i < r.count; i++ {
		if !fn(r.data[(r.start+i)%len(r.data)]) {
			return
		}
	}
}

// tail returns a copy of the newest n elements in insertion order.
func (r *ring[T]) tail(n int) []T {
	if n > r.count {
		n = r.count
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, 0, n)
	for i := r.count - n; i < r.count; i++ {
		out = append(out, r.data[(r.start+i)%len(r.data)])
	}
	return out
}
