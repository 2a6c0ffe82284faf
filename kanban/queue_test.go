package kanban

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestOfflineMutationsQueueTaggedActions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b, cols := newBoardWithColumns(t, env, "To do", "Done")
	env.remote.resetCalls()
	env.network.Set(false)

	c, _ := env.session.Cards.Add(ctx, b.ID, cols[0].ID, "Offline card")
	env.session.Cards.Move(ctx, b.ID, cols[0].ID, cols[1].ID, c.ID)
	env.session.Columns.Rename(ctx, b.ID, cols[0].ID, "Backlog")
	env.session.Boards.Delete(ctx, b.ID)

	if calls := env.remote.callLog(); len(calls) != 0 {
		t.Fatalf("offline mutations reached the remote: %v", calls)
	}

	actions := env.session.Queue.Actions()
	if len(actions) != 4 {
		t.Fatalf("expected 4 queued actions, got %d", len(actions))
	}

	tests := []struct {
		typ    ActionType
		entity Entity
		check  func(PendingAction) bool
	}{
		{ActionAdd, EntityCard, func(a PendingAction) bool { return a.Card != nil && a.Card.Title == "Offline card" }},
		{ActionMove, EntityCard, func(a PendingAction) bool {
			return a.Move != nil && a.Move.FromColumnID == cols[0].ID && a.Move.ToColumnID == cols[1].ID
		}},
		{ActionUpdate, EntityColumn, func(a PendingAction) bool { return a.Column != nil && a.Column.Title == "Backlog" }},
		{ActionDelete, EntityBoard, func(a PendingAction) bool { return a.Board != nil && a.Board.DeletedAt != nil }},
	}
	for i, tt := range tests {
		a := actions[i]
		if a.Type != tt.typ || a.Entity != tt.entity || !tt.check(a) {
			t.Errorf("action %d: expected %s %s, got %+v", i, tt.entity, tt.typ, a)
		}
		if a.ID == "" || a.Timestamp == 0 {
			t.Errorf("action %d missing id or timestamp: %+v", i, a)
		}
	}

	// Local state is already updated
	if active := env.session.Cards.Active(b.ID, cols[1].ID); len(active) != 1 {
		t.Errorf("offline move not applied locally")
	}
}

func TestFlushOnlineDrainsQueue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.network.Set(false)

	b, _ := env.session.AddBoard(ctx, "Offline board")
	if env.session.Queue.Len() != 1 {
		t.Fatalf("expected 1 queued action, got %d", env.session.Queue.Len())
	}

	// Offline flush leaves the queue untouched
	if res := env.session.Queue.Flush(ctx); res.Attempted != 0 {
		t.Errorf("offline flush attempted %d actions", res.Attempted)
	}
	if env.session.Queue.Len() != 1 {
		t.Errorf("offline flush changed queue length to %d", env.session.Queue.Len())
	}

	env.network.Set(true)
	res := env.session.Queue.Flush(ctx)
	if res.Attempted != 1 || res.Flushed != 1 || res.Failed != 0 {
		t.Errorf("unexpected flush result: %+v", res)
	}
	if env.session.Queue.Len() != 0 {
		t.Errorf("queue not drained: %d left", env.session.Queue.Len())
	}
	if _, ok := env.remote.doc(BoardPath(b.ID)); !ok {
		t.Error("replayed board missing from remote")
	}
}

func TestFlushContinuesPastFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.network.Set(false)

	first, _ := env.session.AddBoard(ctx, "First")
	bad, _ := env.session.AddBoard(ctx, "Bad")
	last, _ := env.session.AddBoard(ctx, "Last")

	env.remote.setFail(func(method, path string) error {
		if path == BoardPath(bad.ID) {
			return errRemoteDown
		}
		return nil
	})
	env.network.Set(true)

	res := env.session.Queue.Flush(ctx)
	if res.Attempted != 3 || res.Flushed != 2 || res.Failed != 1 {
		t.Fatalf("unexpected flush result: %+v", res)
	}

	remaining := env.session.Queue.Actions()
	if len(remaining) != 1 || remaining[0].SubjectID() != bad.ID {
		t.Fatalf("expected only the failed action queued, got %+v", remaining)
	}
	for _, id := range []string{first.ID, last.ID} {
		if _, ok := env.remote.doc(BoardPath(id)); !ok {
			t.Errorf("board %s after the failure was not replayed", id)
		}
	}

	// The failed action is retried on the next pass
	env.remote.setFail(nil)
	if res := env.session.Queue.Flush(ctx); res.Flushed != 1 {
		t.Errorf("retry flushed %d actions", res.Flushed)
	}
	if env.session.Queue.Len() != 0 {
		t.Errorf("queue not drained after retry")
	}
}

func TestFlushReplaysMoveAsSetThenDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	b, cols := newBoardWithColumns(t, env, "To do", "Done")
	c, _ := env.session.Cards.Add(ctx, b.ID, cols[0].ID, "Card")

	env.network.Set(false)
	env.session.Cards.Move(ctx, b.ID, cols[0].ID, cols[1].ID, c.ID)
	env.remote.resetCalls()

	env.network.Set(true)
	env.session.Queue.Flush(ctx)

	calls := env.remote.callLog()
	want := []string{"SET " + CardPath(b.ID, cols[1].ID, c.ID), "DELETE " + CardPath(b.ID, cols[0].ID, c.ID)}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("expected %v, got %v", want, calls)
	}
	doc, ok := env.remote.doc(CardPath(b.ID, cols[1].ID, c.ID))
	if !ok || doc["columnId"] != cols[1].ID {
		t.Errorf("moved card not at destination: %v", doc)
	}
}

func TestQueueRehydratesFromStorage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.network.Set(false)
	env.session.AddBoard(ctx, "Queued")

	reopened := newTestEnv(t, func(cfg *Config) { cfg.Storage = env.storage })
	actions := reopened.session.Queue.Actions()
	if len(actions) != 1 || actions[0].Type != ActionAdd || actions[0].Board == nil || actions[0].Board.Name != "Queued" {
		t.Fatalf("queue not rehydrated: %+v", actions)
	}

	res := reopened.session.Queue.Flush(ctx)
	if res.Flushed != 1 {
		t.Errorf("rehydrated action not replayed: %+v", res)
	}
}

func TestWatchFlushesOnReconnect(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.network.Set(false)
	env.session.AddBoard(ctx, "Later")

	stop := env.session.Start(ctx)
	defer stop()

	if env.session.Queue.Len() != 1 {
		t.Fatalf("queue flushed while offline")
	}

	// StaticNetwork notifies synchronously
	env.network.Set(true)
	if env.session.Queue.Len() != 0 {
		t.Errorf("queue not flushed on reconnect: %d left", env.session.Queue.Len())
	}
}

func TestFlushIsSerialized(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.network.Set(false)
	env.session.AddBoard(ctx, "First")
	env.session.AddBoard(ctx, "Second")
	env.network.Set(true)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	env.remote.setFail(func(method, path string) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})

	done := make(chan FlushResult, 1)
	go func() { done <- env.session.Queue.Flush(ctx) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first flush never reached the remote")
	}

	if !env.session.Queue.Flushing() {
		t.Error("expected Flushing while a replay is blocked")
	}
	if res := env.session.Queue.Flush(ctx); res != (FlushResult{}) {
		t.Errorf("concurrent flush should return immediately, got %+v", res)
	}

	close(release)
	res := <-done
	if res.Attempted != 2 || res.Flushed != 2 {
		t.Errorf("unexpected result from the first flush: %+v", res)
	}
	if env.session.Queue.Flushing() {
		t.Error("flushing flag not cleared")
	}
	if env.session.Queue.Len() != 0 {
		t.Errorf("expected empty queue, got %d", env.session.Queue.Len())
	}
}

func TestDequeueAndUnsupportedAction(t *testing.T) {
	var logs strings.Builder
	q, err := NewPendingQueue(newFakeRemote(), NewStaticNetwork(true), NewMemoryStorage(), log.New(&logs, "[queue] ", 0))
	if err != nil {
		t.Fatalf("NewPendingQueue: %v", err)
	}

	bogus := q.Enqueue(PendingAction{Type: ActionMove, Entity: EntityBoard})
	res := q.Flush(context.Background())
	if res.Failed != 1 || q.Len() != 1 {
		t.Errorf("unsupported action should fail and stay queued: %+v", res)
	}
	if !strings.Contains(logs.String(), "Retry later") {
		t.Errorf("failure not logged: %q", logs.String())
	}

	q.Dequeue(bogus.ID)
	if q.Len() != 0 {
		t.Errorf("Dequeue left %d actions", q.Len())
	}

	err = apply(context.Background(), newFakeRemote(), PendingAction{Type: ActionAdd, Entity: "widget"})
	if !errors.Is(err, ErrUnsupportedAction) {
		t.Errorf("expected ErrUnsupportedAction, got %v", err)
	}
}

func TestOnlineWriteFailureHook(t *testing.T) {
	var failures []*WriteError
	env := newTestEnv(t, func(cfg *Config) {
		cfg.OnWriteFailure = func(we *WriteError) { failures = append(failures, we) }
	})
	env.remote.setFail(func(method, path string) error { return errRemoteDown })

	b, err := env.session.AddBoard(context.Background(), "Unlucky")
	if err != nil {
		t.Fatalf("AddBoard should keep the local change: %v", err)
	}
	if _, ok := env.session.Boards.Get(b.ID); !ok {
		t.Error("local board missing after remote failure")
	}

	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if !errors.Is(failures[0], errRemoteDown) || failures[0].Requeued || failures[0].Action.SubjectID() != b.ID {
		t.Errorf("unexpected failure: %+v", failures[0])
	}
	if env.session.Queue.Len() != 0 {
		t.Error("failed write queued without RequeueOnFailure")
	}
}

func TestRequeueOnFailure(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.RequeueOnFailure = true
		cfg.LogOutput = io.Discard
	})
	env.remote.setFail(func(method, path string) error { return errRemoteDown })

	b, _ := env.session.AddBoard(context.Background(), "Retry me")
	if env.session.Queue.Len() != 1 {
		t.Fatalf("expected failed write requeued, queue has %d", env.session.Queue.Len())
	}

	env.remote.setFail(nil)
	env.session.Queue.Flush(context.Background())
	if _, ok := env.remote.doc(BoardPath(b.ID)); !ok {
		t.Error("requeued write not replayed")
	}
}
