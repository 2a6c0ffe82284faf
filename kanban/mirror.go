package kanban

import (
	"context"
	"fmt"
	"log"
	"time"
)

// WriteError is a remote write that failed while the device reported itself
// online. The local change it belongs to is kept.
type WriteError struct {
	Action   PendingAction
	Requeued bool
	Err      error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("remote write %s failed: %v", e.Action, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// mirror carries a locally applied mutation to the remote store, or to the
// pending queue while offline, and to the other tabs.
type mirror struct {
	remote      RemoteStore
	queue       *PendingQueue
	network     NetworkStatus
	broadcaster *Broadcaster
	now         func() time.Time
	onFailure   func(*WriteError)
	requeue     bool
}

// write mirrors a to the remote store. Offline, the action is queued instead.
func (m *mirror) write(ctx context.Context, logger *log.Logger, a PendingAction) {
	if !m.network.Online() {
		m.queue.Enqueue(a)
		return
	}

	err := apply(ctx, m.remote, a)
	if err == nil {
		return
	}

	werr := &WriteError{Action: a, Err: err}
	if m.requeue {
		m.queue.Enqueue(a)
		werr.Requeued = true
	}
	logger.Printf("ERROR: %v (requeued=%t)", werr, werr.Requeued)
	if m.onFailure != nil {
		m.onFailure(werr)
	}
}

func (m *mirror) publish(msg Message) {
	m.broadcaster.Publish(msg)
}
