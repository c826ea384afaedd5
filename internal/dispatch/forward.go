package dispatch

import (
	"sync"
	"time"

	"tessen/pkg/tessen"
)

// flushFunc receives one removed batch on the timer goroutine.
type flushFunc func(chatID string, batch []*tessen.Message)

// forwardBatch is the pending per-chat state: accumulated messages in
// arrival order plus the deferred flush handle. generation invalidates a
// superseded timer that already left Stop's reach.
type forwardBatch struct {
	timer      *time.Timer
	messages   []*tessen.Message
	generation int
}

// forwardAggregator holds at most one pending batch per chat identifier and
// flushes each batch after a quiet period with debounce semantics: every new
// forward for a chat resets that chat's flush deadline.
type forwardAggregator struct {
	mu      sync.Mutex
	quiet   time.Duration
	batches map[string]*forwardBatch
	flush   flushFunc
	closed  bool
}

// newForwardAggregator creates an empty aggregator.
func newForwardAggregator(quiet time.Duration, flush flushFunc) *forwardAggregator {
	return &forwardAggregator{
		quiet:   quiet,
		batches: make(map[string]*forwardBatch),
		flush:   flush,
	}
}

// Add appends one self-forwarded message to the chat's pending batch,
// creating the batch when absent, and schedules a fresh deferred flush.
// Reset is cancel-old-then-schedule-new, never cancel-and-forget.
func (a *forwardAggregator) Add(chatID string, msg *tessen.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return
	}

	batch, exists := a.batches[chatID]
	if !exists {
		batch = &forwardBatch{}
		a.batches[chatID] = batch
	}
	if batch.timer != nil {
		batch.timer.Stop()
	}
	batch.messages = append(batch.messages, msg)
	batch.generation++
	generation := batch.generation
	batch.timer = time.AfterFunc(a.quiet, func() {
		a.fire(chatID, generation)
	})
}

// fire removes the chat's batch and hands it to the flush function. Removal
// happens before processing so a forward racing this flush starts a fresh
// batch instead of appending to one already being flushed. A timer that was
// superseded after leaving Stop's reach sees a newer generation and yields.
func (a *forwardAggregator) fire(chatID string, generation int) {
	a.mu.Lock()
	batch, exists := a.batches[chatID]
	if exists && batch.generation == generation {
		delete(a.batches, chatID)
	} else {
		exists = false
	}
	a.mu.Unlock()

	if exists {
		a.flush(chatID, batch.messages)
	}
}

// Close stops all pending timers and flushes the remaining batches
// synchronously so no accumulated forwards are silently dropped.
func (a *forwardAggregator) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	pending := make(map[string][]*tessen.Message, len(a.batches))
	for chatID, batch := range a.batches {
		if batch.timer != nil {
			batch.timer.Stop()
		}
		pending[chatID] = batch.messages
	}
	a.batches = make(map[string]*forwardBatch)
	a.mu.Unlock()

	for chatID, messages := range pending {
		a.flush(chatID, messages)
	}
}
