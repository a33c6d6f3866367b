package processor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"smartbuy/config"
	"smartbuy/internal/models"
	"smartbuy/internal/queue"
)

// TransactionWriter persists a batch atomically.
type TransactionWriter interface {
	UpsertTransactions(batch []*models.Transaction) error
}

// Stats counts processed work.
type Stats struct {
	Batches      int64 `json:"batches"`
	Transactions int64 `json:"transactions"`
	Failed       int64 `json:"failed_batches"`
}

// BatchProcessor writes queued transaction batches with retry.
type BatchProcessor struct {
	writer  TransactionWriter
	logger  *logrus.Logger
	config  *config.Config
	queue   *queue.TransactionQueue
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	onBatch func(n int)
	batches atomic.Int64
	written atomic.Int64
	failed  atomic.Int64
}

// NewBatchProcessor creates a new batch processor instance
func NewBatchProcessor(writer TransactionWriter, queue *queue.TransactionQueue, config *config.Config, logger *logrus.Logger) *BatchProcessor {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BatchProcessor{
		writer: writer,
		queue:  queue,
		config: config,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// OnBatch registers a callback invoked with the size of every stored batch.
// It must be set before Start.
func (p *BatchProcessor) OnBatch(fn func(n int)) {
	p.onBatch = fn
}

// Start subscribes the processor to its queue. Calling it again is a no-op.
func (p *BatchProcessor) Start() {
	p.once.Do(func() {
		p.queue.Subscribe(p.processBatch)
	})
}

// Stop aborts pending retries. Batches still in the queue fail fast without
// reaching the writer.
func (p *BatchProcessor) Stop() {
	p.cancel()
}

func (p *BatchProcessor) Stats() Stats {
	return Stats{
		Batches:      p.batches.Load(),
		Transactions: p.written.Load(),
		Failed:       p.failed.Load(),
	}
}

// processBatch handles a single batch of transactions with retry logic
func (p *BatchProcessor) processBatch(batch []*models.Transaction) error {
	maxRetries := p.config.BatchProcessing.MaxRetries

	if err := p.ctx.Err(); err != nil {
		p.failed.Add(1)
		return fmt.Errorf("batch processing stopped: %w", err)
	}

	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Infof("Retrying batch processing, attempt %d of %d", attempt, maxRetries)
			select {
			case <-time.After(p.config.BatchProcessing.RetryDelay):
			case <-p.ctx.Done():
				p.failed.Add(1)
				return fmt.Errorf("batch processing stopped: %w", p.ctx.Err())
			}
		}

		err = p.writer.UpsertTransactions(batch)
		if err == nil {
			p.batches.Add(1)
			p.written.Add(int64(len(batch)))
			p.logger.WithField("batch_size", len(batch)).Debug("Successfully processed batch")
			if p.onBatch != nil {
				p.onBatch(len(batch))
			}
			return nil
		}

		p.logger.WithError(err).Error("Batch processing failed")
	}

	p.failed.Add(1)
	return fmt.Errorf("failed to process batch after %d attempts: %w", maxRetries+1, err)
}
