package kanban

import (
	"log"
	"os"
	"sync"
	"time"
)

type MessageType string

const (
	MessageAdd       MessageType = "add"
	MessageUpdate    MessageType = "update"
	MessageDelete    MessageType = "delete"
	MessageDeleteAll MessageType = "delete-all"
	MessageMove      MessageType = "move"
)

// Scope names the parent whose children a delete-all message removed.
// ColumnID is empty when the children are columns.
type Scope struct {
	BoardID   string    `json:"boardId"`
	ColumnID  string    `json:"columnId,omitempty"`
	DeletedAt time.Time `json:"deletedAt"`
}

// Message is a mutation already applied by the tab that posted it. Board,
// Column or Card carries the record for add, update and delete; Scope is set
// for delete-all and Move for a card move.
type Message struct {
	TabID     string      `json:"tabId"`
	Type      MessageType `json:"type"`
	Entity    Entity      `json:"entity"`
	Board     *Board      `json:"board,omitempty"`
	Column    *Column     `json:"column,omitempty"`
	Card      *Card       `json:"card,omitempty"`
	Scope     *Scope      `json:"scope,omitempty"`
	Move      *CardMove   `json:"move,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Channel is a same-device publish/subscribe medium shared by every open tab.
type Channel interface {
	Post(msg Message) error
	Subscribe(fn func(Message)) (unsubscribe func())
}

// LocalChannel delivers messages to in-process subscribers synchronously,
// in subscription order. Sessions sharing one LocalChannel behave like tabs
// of one browser.
type LocalChannel struct {
	mu     sync.Mutex
	subs   map[int]func(Message)
	nextID int
}

func NewLocalChannel() *LocalChannel {
	return &LocalChannel{subs: make(map[int]func(Message))}
}

func (c *LocalChannel) Post(msg Message) error {
	c.mu.Lock()
	subs := make([]func(Message), 0, len(c.subs))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
	return nil
}

func (c *LocalChannel) Subscribe(fn func(Message)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Broadcaster tags outgoing messages with this session's tab id and filters
// the session's own messages out of what it receives.
type Broadcaster struct {
	tabID   string
	channel Channel
	logger  *log.Logger
	now     func() time.Time
}

// NewBroadcaster creates a broadcaster with a fresh tab id. A nil channel
// makes Publish and Listen no-ops.
func NewBroadcaster(channel Channel, logger *log.Logger) *Broadcaster {
	if logger == nil {
		logger = log.New(os.Stderr, "[broadcast] ", log.LstdFlags)
	}
	return &Broadcaster{
		tabID:   newTabID(),
		channel: channel,
		logger:  logger,
		now:     time.Now,
	}
}

func (b *Broadcaster) TabID() string {
	return b.tabID
}

// Publish posts msg to other tabs. Delivery is best effort; failures are
// only logged.
func (b *Broadcaster) Publish(msg Message) {
	if b.channel == nil {
		return
	}
	msg.TabID = b.tabID
	msg.Timestamp = b.now().UnixMilli()
	if err := b.channel.Post(msg); err != nil {
		b.logger.Printf("WARNING: Failed to broadcast %s %s: %v", msg.Entity, msg.Type, err)
	}
}

// Listen calls handler for every message posted by another tab.
func (b *Broadcaster) Listen(handler func(Message)) (unsubscribe func()) {
	if b.channel == nil {
		return func() {}
	}
	return b.channel.Subscribe(func(msg Message) {
		if msg.TabID == b.tabID {
			return
		}
		handler(msg)
	})
}
