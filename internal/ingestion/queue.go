package ingestion

import (
	"errors"
	"sync"
)

var (
	ErrQueueFull   = errors.New("persistence queue full")
	ErrQueueClosed = errors.New("persistence queue closed")
)

// Queue is a bounded FIFO of envelopes with many producers and one consumer.
type Queue struct {
	ch     chan *Envelope
	mu     sync.RWMutex
	closed bool
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{ch: make(chan *Envelope, size)}
}

// Enqueue adds env without blocking.
func (q *Queue) Enqueue(env *Envelope) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.ch <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops admissions. Envelopes already queued stay readable.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *Queue) Len() int { return len(q.ch) }
func (q *Queue) Cap() int { return cap(q.ch) }

func (q *Queue) items() <-chan *Envelope { return q.ch }
