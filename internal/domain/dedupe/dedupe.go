// Package dedupe defines the interface for submission idempotency tracking.
package dedupe

import (
	"context"
	"sync"
)

// defaultMaxSize bounds the number of remembered submission IDs.
const defaultMaxSize = 50000

// Deduper records seen submission IDs to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen set, allowing a retry. Use this
	// when a submission was recorded but could not be handed off (e.g.
	// queue backpressure).
	Unrecord(ctx context.Context, id string)

	// Size returns the current number of remembered IDs.
	Size() int64
}

// inMemoryDeduper implements Deduper with a map plus a FIFO ring of IDs.
// When the ring is full the oldest remembered ID is forgotten first.
// maxSize <= 0 disables eviction entirely.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	ring    []string // insertion order, oldest at tail index
	tail    int      // next slot to overwrite when full
	maxSize int
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]struct{})
	if d.maxSize > 0 {
		d.ring = make([]string, 0, d.maxSize)
	}

	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}

	if d.maxSize <= 0 {
		d.seen[id] = struct{}{}
		return false
	}

	if len(d.ring) < d.maxSize {
		d.ring = append(d.ring, id)
	} else {
		// Full: forget the oldest slot before reusing it.
		old := d.ring[d.tail]
		if old != "" {
			delete(d.seen, old)
		}
		d.ring[d.tail] = id
		d.tail = (d.tail + 1) % d.maxSize
	}
	d.seen[id] = struct{}{}
	return false
}

// Unrecord removes an ID from the seen set, allowing it to be retried.
func (d *inMemoryDeduper) Unrecord(ctx context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; !exists {
		return
	}
	delete(d.seen, id)

	// Blank the ring slot so eviction does not drop a live entry later.
	for i := range d.ring {
		if d.ring[i] == id {
			d.ring[i] = ""
			break
		}
	}
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.seen))
}
