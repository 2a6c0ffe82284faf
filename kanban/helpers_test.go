package kanban

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

var alice = Identity{UID: "uid-alice", Email: "alice@example.com", DisplayName: "alice"}

var errRemoteDown = errors.New("remote down")

// fakeRemote is an in-memory RemoteStore. fail, when set, is consulted
// before every call and can reject it.
type fakeRemote struct {
	mu    sync.Mutex
	docs  map[string]map[string]any
	calls []string
	fail  func(method, path string) error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{docs: make(map[string]map[string]any)}
}

func (r *fakeRemote) record(method, path string) error {
	r.mu.Lock()
	r.calls = append(r.calls, method+" "+path)
	fail := r.fail
	r.mu.Unlock()

	if fail != nil {
		return fail(method, path)
	}
	return nil
}

func (r *fakeRemote) GetCollection(ctx context.Context, path string) ([]json.RawMessage, error) {
	if err := r.record("GET", path); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	paths := []string{}
	for p := range r.docs {
		if i := strings.LastIndex(p, "/"); i > 0 && p[:i] == path {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	out := []json.RawMessage{}
	for _, p := range paths {
		data, err := json.Marshal(r.docs[p])
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func (r *fakeRemote) Set(ctx context.Context, path string, doc any) error {
	if err := r.record("SET", path); err != nil {
		return err
	}
	fields, err := toFields(doc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.docs[path] = fields
	r.mu.Unlock()
	return nil
}

func (r *fakeRemote) Update(ctx context.Context, path string, fields map[string]any) error {
	if err := r.record("UPDATE", path); err != nil {
		return err
	}
	patch, err := toFields(fields)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[path]
	if !ok {
		return fmt.Errorf("update %s: %w", path, ErrRemoteNotFound)
	}
	for k, v := range patch {
		doc[k] = v
	}
	return nil
}

func (r *fakeRemote) Delete(ctx context.Context, path string) error {
	if err := r.record("DELETE", path); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.docs, path)
	r.mu.Unlock()
	return nil
}

// seed stores doc at path without recording a call.
func (r *fakeRemote) seed(t *testing.T, path string, doc any) {
	t.Helper()
	fields, err := toFields(doc)
	if err != nil {
		t.Fatalf("seed %s: %v", path, err)
	}
	r.mu.Lock()
	r.docs[path] = fields
	r.mu.Unlock()
}

func (r *fakeRemote) doc(path string) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[path]
	return doc, ok
}

func (r *fakeRemote) callLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRemote) resetCalls() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

func (r *fakeRemote) setFail(fail func(method, path string) error) {
	r.mu.Lock()
	r.fail = fail
	r.mu.Unlock()
}

func toFields(v any) (map[string]any, error) {
	var data []byte
	switch raw := v.(type) {
	case json.RawMessage:
		data = raw
	case string:
		data = []byte(raw)
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, err
		}
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// testClock returns a strictly increasing time on every call.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Millisecond)
	return c.t
}

type testEnv struct {
	session *Session
	remote  *fakeRemote
	network *StaticNetwork
	storage *MemoryStorage
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	env := &testEnv{
		remote:  newFakeRemote(),
		network: NewStaticNetwork(true),
		storage: NewMemoryStorage(),
	}
	cfg := Config{
		Remote:    env.remote,
		Storage:   env.storage,
		Network:   env.network,
		Identity:  alice,
		LogOutput: io.Discard,
		Now:       newTestClock().Now,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	env.session = s
	return env
}

func indexOfCall(calls []string, call string) int {
	for i, c := range calls {
		if c == call {
			return i
		}
	}
	return -1
}
