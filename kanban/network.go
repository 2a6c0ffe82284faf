package kanban

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// NetworkStatus reports whether the device is online and notifies
// subscribers when that changes.
type NetworkStatus interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// StaticNetwork is a NetworkStatus whose state is set by hand.
type StaticNetwork struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

func NewStaticNetwork(online bool) *StaticNetwork {
	return &StaticNetwork{online: online, subs: make(map[int]func(bool))}
}

func (n *StaticNetwork) Online() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.online
}

// Set changes the state. Subscribers are called, outside the lock, only on
// actual transitions.
func (n *StaticNetwork) Set(online bool) {
	n.mu.Lock()
	if n.online == online {
		n.mu.Unlock()
		return
	}
	n.online = online
	subs := make([]func(bool), 0, len(n.subs))
	for id := 0; id < n.nextID; id++ {
		if fn, ok := n.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	n.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

func (n *StaticNetwork) Subscribe(fn func(online bool)) func() {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Monitor derives online status from periodic probes of a health endpoint.
type Monitor struct {
	*StaticNetwork

	healthURL string
	interval  time.Duration
	client    *http.Client
	logger    *log.Logger
}

// NewMonitor creates a monitor that starts offline until the first probe.
// If client is nil a client with a short timeout is used; if logger is nil
// a default logger writing to stderr is used.
func NewMonitor(healthURL string, interval time.Duration, client *http.Client, logger *log.Logger) *Monitor {
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[network] ", log.LstdFlags)
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{
		StaticNetwork: NewStaticNetwork(false),
		healthURL:     healthURL,
		interval:      interval,
		client:        client,
		logger:        logger,
	}
}

// Probe checks the health endpoint once and records the result.
func (m *Monitor) Probe(ctx context.Context) bool {
	online := m.check(ctx)
	if online != m.Online() {
		if online {
			m.logger.Printf("Network online: %s", m.healthURL)
		} else {
			m.logger.Printf("Network offline: %s", m.healthURL)
		}
	}
	m.Set(online)
	return online
}

func (m *Monitor) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.healthURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
