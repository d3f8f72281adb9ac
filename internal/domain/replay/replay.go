// Package replay tracks capture-payload nonces so a recorded behaviour
// payload cannot be submitted twice.
package replay

import (
	"context"
	"sync"
)

const defaultMaxSize = 50000

// Guard records seen attempt ids.
type Guard interface {
	// SeenAndRecord atomically checks whether id was seen and records it
	// if not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets an id, allowing it to be presented again. Used when
	// an attempt was recorded but never actually processed.
	Unrecord(ctx context.Context, id string)

	// Size reports the number of ids currently tracked.
	Size() int
}

// Option configures the in-memory guard.
type Option func(*memoryGuard)

// WithMaxSize bounds the number of remembered ids. Once full, the oldest
// id is forgotten first. Sizes <= 0 fall back to the default bound; the
// guard is never unbounded because every login attempt feeds it.
func WithMaxSize(n int) Option {
	return func(g *memoryGuard) {
		if n > 0 {
			g.maxSize = n
		}
	}
}

// memoryGuard implements Guard with a set plus a FIFO ring that remembers
// insertion order for eviction. inRing tracks which ids currently hold a
// ring slot; an id unrecorded and then re-recorded keeps its old slot, so
// the ring never carries two slots for the same id and eviction cannot
// confuse a stale slot with a live re-addition.
type memoryGuard struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	inRing  map[string]struct{}
	order   []string // ring buffer of ids in arrival order
	head    int      // index of the oldest slot
	count   int      // occupied ring slots
	maxSize int
}

// NewMemoryGuard creates a bounded in-memory guard.
func NewMemoryGuard(opts ...Option) Guard {
	g := &memoryGuard{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(g)
	}
	g.seen = make(map[string]struct{}, g.maxSize)
	g.inRing = make(map[string]struct{}, g.maxSize)
	g.order = make([]string, g.maxSize)
	return g
}

func (g *memoryGuard) SeenAndRecord(_ context.Context, id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[id]; ok {
		return true
	}

	// An unrecorded id may still occupy its old slot; reuse it instead of
	// appending a second one.
	if _, ok := g.inRing[id]; ok {
		g.seen[id] = struct{}{}
		return false
	}

	if g.count == g.maxSize {
		g.evictOldest()
	}

	tail := (g.head + g.count) % g.maxSize
	g.order[tail] = id
	g.count++
	g.inRing[id] = struct{}{}
	g.seen[id] = struct{}{}
	return false
}

func (g *memoryGuard) Unrecord(_ context.Context, id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.seen[id]; !ok {
		return
	}
	delete(g.seen, id)
	// The ring slot keeps the id until eviction reaches it; evictOldest
	// skips slots whose id is no longer in the set.
}

// evictOldest drops ring slots from the head until one that still maps to
// a live id has been removed. Callers hold g.mu.
func (g *memoryGuard) evictOldest() {
	for g.count > 0 {
		id := g.order[g.head]
		g.order[g.head] = ""
		g.head = (g.head + 1) % g.maxSize
		g.count--
		delete(g.inRing, id)
		if _, ok := g.seen[id]; ok {
			delete(g.seen, id)
			return
		}
	}
}

func (g *memoryGuard) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
