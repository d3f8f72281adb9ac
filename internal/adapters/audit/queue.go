// Package audit writes attempt records to the store asynchronously, so a
// login response never waits on audit persistence.
package audit

import (
	"context"
	"sync"

	"github.com/typeshield/typeshield/internal/domain/model"
	"github.com/typeshield/typeshield/pkg/metrics"
)

const defaultQueueCapacity = 4096

// Queue provides non-blocking enqueue and channel-based dequeue of
// attempt records.
type Queue interface {
	// Enqueue adds a record. Returns false when the queue is full or
	// closed; callers fall back to a synchronous write.
	Enqueue(ctx context.Context, rec model.AttemptRecord) bool

	// Dequeue returns the channel records arrive on. The channel closes
	// when the queue closes.
	Dequeue() <-chan model.AttemptRecord

	// Len reports records currently waiting.
	Len() int

	// Close stops intake. Already-queued records remain readable.
	Close() error
}

// QueueOption configures the in-memory queue.
type QueueOption func(*memoryQueue)

// WithCapacity bounds the queue. Sizes <= 0 keep the default.
func WithCapacity(n int) QueueOption {
	return func(q *memoryQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

type memoryQueue struct {
	records  chan model.AttemptRecord
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewMemoryQueue creates a bounded in-memory queue.
func NewMemoryQueue(opts ...QueueOption) Queue {
	q := &memoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.records = make(chan model.AttemptRecord, q.capacity)

	metrics.UpdateAuditQueueCapacity(q.capacity)
	metrics.UpdateAuditQueueSize(0)
	return q
}

func (q *memoryQueue) Enqueue(ctx context.Context, rec model.AttemptRecord) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return false
	}

	select {
	case q.records <- rec:
		metrics.UpdateAuditQueueSize(len(q.records))
		return true
	case <-ctx.Done():
		return false
	default:
		metrics.RecordAuditQueueDrop()
		return false
	}
}

func (q *memoryQueue) Dequeue() <-chan model.AttemptRecord {
	return q.records
}

func (q *memoryQueue) Len() int {
	return len(q.records)
}

func (q *memoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.records)
	q.closed = true
	return nil
}
