package kanban

import (
	"context"
	"log"
	"os"
	"sync"
	"time"
)

// FlushResult summarizes one replay pass over the queue.
type FlushResult struct {
	Attempted int
	Flushed   int
	Failed    int
}

// PendingQueue is the durable, ordered list of remote writes made while the
// device was offline. Actions leave the queue only after their write succeeds.
type PendingQueue struct {
	mu       sync.Mutex
	actions  []PendingAction
	flushing bool

	remote  RemoteStore
	network NetworkStatus
	storage LocalStorage
	logger  *log.Logger
	now     func() time.Time
}

// NewPendingQueue rehydrates the queue from storage. If logger is nil a
// default logger writing to stderr is used.
func NewPendingQueue(remote RemoteStore, network NetworkStatus, storage LocalStorage, logger *log.Logger) (*PendingQueue, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}
	if storage == nil {
		storage = NewMemoryStorage()
	}
	q := &PendingQueue{
		remote:  remote,
		network: network,
		storage: storage,
		logger:  logger,
		now:     time.Now,
	}
	if _, err := storage.Load(queueStorageKey, &q.actions); err != nil {
		return nil, err
	}
	if len(q.actions) > 0 {
		logger.Printf("Rehydrated %d pending actions", len(q.actions))
	}
	return q, nil
}

// Enqueue appends an action. Missing ids and timestamps are filled in.
func (q *PendingQueue) Enqueue(a PendingAction) PendingAction {
	if a.ID == "" {
		a.ID = newActionID()
	}
	if a.Timestamp == 0 {
		a.Timestamp = q.now().UnixMilli()
	}

	q.mu.Lock()
	q.actions = append(q.actions, a)
	q.persistLocked()
	q.mu.Unlock()

	q.logger.Printf("Enqueued %s (%s)", a, a.ID)
	return a
}

// Dequeue removes the action with the given id.
func (q *PendingQueue) Dequeue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, a := range q.actions {
		if a.ID == id {
			q.actions = append(q.actions[:i:i], q.actions[i+1:]...)
			q.persistLocked()
			return
		}
	}
}

// Actions returns a copy of the queue in enqueue order.
func (q *PendingQueue) Actions() []PendingAction {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]PendingAction(nil), q.actions...)
}

func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

// Flushing reports whether a replay pass is in progress.
func (q *PendingQueue) Flushing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.flushing
}

// Flush replays queued actions sequentially in enqueue order. It does
// nothing when offline, when the queue is empty, or while another flush is
// running. A failed action stays queued and the pass moves on to the next.
func (q *PendingQueue) Flush(ctx context.Context) FlushResult {
	var result FlushResult
	if !q.network.Online() {
		return result
	}

	q.mu.Lock()
	if q.flushing || len(q.actions) == 0 {
		q.mu.Unlock()
		return result
	}
	q.flushing = true
	pending := append([]PendingAction(nil), q.actions...)
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.flushing = false
		q.mu.Unlock()
	}()

	q.logger.Printf("Flushing %d actions...", len(pending))
	for _, a := range pending {
		if ctx.Err() != nil {
			break
		}
		result.Attempted++
		if err := apply(ctx, q.remote, a); err != nil {
			q.logger.Printf("WARNING: Retry later for %s (%s): %v", a, a.ID, err)
			result.Failed++
			continue
		}
		q.Dequeue(a.ID)
		result.Flushed++
	}

	q.logger.Printf("Flush complete: flushed=%d failed=%d remaining=%d", result.Flushed, result.Failed, q.Len())
	return result
}

// Watch flushes once if already online and again on every transition to
// online. The returned function stops watching.
func (q *PendingQueue) Watch(ctx context.Context) (stop func()) {
	unsubscribe := q.network.Subscribe(func(online bool) {
		if online {
			q.Flush(ctx)
		}
	})
	if q.network.Online() {
		q.Flush(ctx)
	}
	return unsubscribe
}

func (q *PendingQueue) persistLocked() {
	if err := q.storage.Save(queueStorageKey, q.actions); err != nil {
		q.logger.Printf("WARNING: Failed to persist pending queue: %v", err)
	}
}
