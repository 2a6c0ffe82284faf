package kanban

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Config wires a Session to its collaborators.
type Config struct {
	// Remote is the document store every mutation is mirrored to. Required.
	Remote RemoteStore

	// Storage persists store snapshots and the pending queue. Defaults to
	// a MemoryStorage.
	Storage LocalStorage

	// Network reports connectivity. Defaults to a StaticNetwork that is online.
	Network NetworkStatus

	// Channel carries broadcasts to other tabs. Nil disables broadcasting.
	Channel Channel

	// Identity is the signed in user.
	Identity Identity

	// LogOutput receives every component's log lines. Defaults to stderr.
	LogOutput io.Writer

	// OnWriteFailure is called for each remote write that fails while online.
	OnWriteFailure func(*WriteError)

	// RequeueOnFailure enqueues writes that fail while online instead of
	// dropping them.
	RequeueOnFailure bool

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Session owns one tab's stores and the machinery connecting them.
type Session struct {
	Boards      *BoardStore
	Columns     *ColumnStore
	Cards       *CardStore
	Queue       *PendingQueue
	Broadcaster *Broadcaster

	identity Identity
	network  NetworkStatus
	logger   *log.Logger
	cascade  *log.Logger
}

// NewSession builds the stores and rehydrates them from local storage.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Remote == nil {
		return nil, errors.New("kanban: remote store is required")
	}
	if cfg.Storage == nil {
		cfg.Storage = NewMemoryStorage()
	}
	if cfg.Network == nil {
		cfg.Network = NewStaticNetwork(true)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	out := cfg.LogOutput
	if out == nil {
		out = os.Stderr
	}
	newLogger := func(prefix string) *log.Logger {
		return log.New(out, "["+prefix+"] ", log.LstdFlags)
	}

	queue, err := NewPendingQueue(cfg.Remote, cfg.Network, cfg.Storage, newLogger("queue"))
	if err != nil {
		return nil, fmt.Errorf("failed to load pending queue: %w", err)
	}
	queue.now = cfg.Now

	broadcaster := NewBroadcaster(cfg.Channel, newLogger("broadcast"))
	broadcaster.now = cfg.Now

	m := &mirror{
		remote:      cfg.Remote,
		queue:       queue,
		network:     cfg.Network,
		broadcaster: broadcaster,
		now:         cfg.Now,
		onFailure:   cfg.OnWriteFailure,
		requeue:     cfg.RequeueOnFailure,
	}

	boards, err := newBoardStore(m, cfg.Storage, newLogger("boards"))
	if err != nil {
		return nil, err
	}
	columns, err := newColumnStore(m, cfg.Storage, newLogger("columns"))
	if err != nil {
		return nil, err
	}
	cards, err := newCardStore(m, cfg.Storage, newLogger("cards"))
	if err != nil {
		return nil, err
	}

	return &Session{
		Boards:      boards,
		Columns:     columns,
		Cards:       cards,
		Queue:       queue,
		Broadcaster: broadcaster,
		identity:    cfg.Identity,
		network:     cfg.Network,
		logger:      newLogger("session"),
		cascade:     newLogger("cascade"),
	}, nil
}

func (s *Session) Identity() Identity {
	return s.identity
}

func (s *Session) TabID() string {
	return s.Broadcaster.TabID()
}

func (s *Session) Online() bool {
	return s.network.Online()
}

// Start mounts the broadcast subscriber and the pending queue watcher. The
// returned function unmounts both.
func (s *Session) Start(ctx context.Context) (stop func()) {
	unlisten := s.Broadcaster.Listen(s.Dispatch)
	unwatch := s.Queue.Watch(ctx)
	return func() {
		unlisten()
		unwatch()
	}
}

// Dispatch routes a message from another tab to the store owning its entity.
func (s *Session) Dispatch(msg Message) {
	switch msg.Entity {
	case EntityBoard:
		s.Boards.HandleBroadcast(msg)
	case EntityColumn:
		s.Columns.HandleBroadcast(msg)
	case EntityCard:
		s.Cards.HandleBroadcast(msg)
	default:
		s.logger.Printf("WARNING: Ignoring broadcast for unknown entity %q", msg.Entity)
	}
}

// AddBoard creates a board owned by the session's identity.
func (s *Session) AddBoard(ctx context.Context, name string) (Board, error) {
	return s.Boards.Add(ctx, name, s.identity)
}

// DeleteBoard runs the cascade delete for a board.
func (s *Session) DeleteBoard(ctx context.Context, boardID string) error {
	return DeleteBoardCascade(ctx, s.Boards, s.Columns, s.Cards, boardID, s.cascade)
}

// SyncAll refreshes the identity's boards, then the columns of each active
// board and the cards of each active column. It stops at the first error.
func (s *Session) SyncAll(ctx context.Context) error {
	boards, err := s.Boards.Sync(ctx, s.identity.Email)
	if err != nil {
		return err
	}
	for _, b := range boards {
		cols, err := s.Columns.Sync(ctx, b.ID)
		if err != nil {
			return err
		}
		for _, c := range cols {
			if _, err := s.Cards.Sync(ctx, b.ID, c.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
