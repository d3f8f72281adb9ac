package audit

import (
	"context"
	"sync"
	"time"

	"github.com/typeshield/typeshield/internal/domain/model"
	"github.com/typeshield/typeshield/pkg/logger"
	"github.com/typeshield/typeshield/pkg/metrics"
)

const writeTimeout = 5 * time.Second

// Sink is where attempt records end up; satisfied by repository.Store.
type Sink interface {
	LogAttempt(ctx context.Context, rec model.AttemptRecord) error
}

// WriterPool drains a Queue into a Sink with a fixed number of writers.
type WriterPool struct {
	queue   Queue
	sink    Sink
	writers int

	wg     sync.WaitGroup
	logger logger.Logger
}

// NewWriterPool creates a pool of writers draining queue into sink.
func NewWriterPool(writers int, queue Queue, sink Sink) *WriterPool {
	if writers < 1 {
		writers = 1
	}
	return &WriterPool{
		queue:   queue,
		sink:    sink,
		writers: writers,
		logger:  logger.Get().Named("audit"),
	}
}

// Start launches the writers. They exit when the queue closes and drains.
func (p *WriterPool) Start(ctx context.Context) {
	for i := 0; i < p.writers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
}

// Stop closes the queue and waits for queued records to be written.
func (p *WriterPool) Stop() {
	_ = p.queue.Close()
	p.wg.Wait()
}

func (p *WriterPool) run(ctx context.Context) {
	for rec := range p.queue.Dequeue() {
		p.write(ctx, rec)
		metrics.UpdateAuditQueueSize(p.queue.Len())
	}
}

func (p *WriterPool) write(ctx context.Context, rec model.AttemptRecord) {
	// Shutdown must still flush queued records, so the write context is
	// detached from the pool context once it is canceled.
	writeCtx := ctx
	if ctx.Err() != nil {
		writeCtx = context.Background()
	}
	writeCtx, cancel := context.WithTimeout(writeCtx, writeTimeout)
	defer cancel()

	if err := p.sink.LogAttempt(writeCtx, rec); err != nil {
		metrics.RecordAuditWriteError()
		p.logger.Error(ctx, "attempt record write failed",
			logger.String("attempt_id", rec.ID.String()),
			logger.String("username", rec.Username),
			logger.Error(err),
		)
		return
	}
	metrics.RecordAuditWrite()
}
