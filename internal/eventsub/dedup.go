package eventsub

import "sync"

// Deduplicator is a fixed-capacity window over recently processed message
// ids. Twitch redelivers notifications, so every side effect must be guarded
// by an atomic check-and-record on the message id. The window lives only for
// the process lifetime; redelivery happens within a short span, so losing it
// on restart is acceptable.
type Deduplicator struct {
	mu       sync.Mutex
	capacity int
	ring     []string
	next     int
	present  map[string]struct{}
}

func NewDeduplicator(capacity int) *Deduplicator {
	return &Deduplicator{
		capacity: capacity,
		ring:     make([]string, 0, capacity),
		present:  make(map[string]struct{}, capacity),
	}
}

// CheckAndRecord reports whether id is new and, if so, records it in the same
// critical section. When the window is full the oldest id is evicted.
func (d *Deduplicator) CheckAndRecord(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.present[id]; ok {
		return false
	}

	if len(d.ring) < d.capacity {
		d.ring = append(d.ring, id)
	} else {
		delete(d.present, d.ring[d.next])
		d.ring[d.next] = id
		d.next = (d.next + 1) % d.capacity
	}
	d.present[id] = struct{}{}
	return true
}

// Seen reports whether id is currently in the window.
func (d *Deduplicator) Seen(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.present[id]
	return ok
}

// Len returns the number of ids currently held.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.ring)
}
