package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"smartbuy/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Handler consumes one batch of transactions.
type Handler func([]*models.Transaction) error

// TransactionQueue is an in-memory queue of transaction batches fanned out
// to subscribed handlers by a single consumer goroutine.
type TransactionQueue struct {
	items    chan []*models.Transaction
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []Handler
}

// NewTransactionQueue creates a queue holding up to bufferSize batches.
func NewTransactionQueue(bufferSize int, logger *logrus.Logger) *TransactionQueue {
	if logger == nil {
		logger = logrus.New()
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &TransactionQueue{
		items:    make(chan []*models.Transaction, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]Handler, 0),
	}
}

// Push adds a batch without blocking.
func (q *TransactionQueue) Push(batch []*models.Transaction) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- batch:
		q.logger.WithField("batch_size", len(batch)).Debug("Pushed batch to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// PushWait adds a batch, waiting for room until ctx is done.
func (q *TransactionQueue) PushWait(ctx context.Context, batch []*models.Transaction) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case q.items <- batch:
		q.logger.WithField("batch_size", len(batch)).Debug("Pushed batch to queue")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe adds a handler that is called for each batch.
func (q *TransactionQueue) Subscribe(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue.
func (q *TransactionQueue) Start() {
	go q.process()
}

// process drains the queue until it is closed and empty.
func (q *TransactionQueue) process() {
	defer close(q.done)
	for batch := range q.items {
		q.processBatch(batch)
	}
}

func (q *TransactionQueue) processBatch(batch []*models.Transaction) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(batch); err != nil {
			q.logger.WithError(err).Error("Handler failed to process batch")
		}
	}
}

// Close stops accepting batches. Batches already queued are still delivered.
func (q *TransactionQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.items)
	return nil
}

// Done is closed once a started queue has been closed and fully drained.
func (q *TransactionQueue) Done() <-chan struct{} {
	return q.done
}

// Len returns the current number of batches in the queue.
func (q *TransactionQueue) Len() int {
	return len(q.items)
}

func (q *TransactionQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
