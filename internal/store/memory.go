package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type entry struct {
	raw       []byte
	createdAt time.Time
	expiresAt time.Time
}

// Memory is an in-process TTL store. Records are kept as JSON so callers
// never share mutable state with the store.
type Memory struct {
	mu    sync.RWMutex
	store map[string]*entry
	ttl   time.Duration
	now   func() time.Time

	stop chan struct{}
	done chan struct{}
}

// NewMemory starts a store whose records expire after ttl. Expired records
// are swept every sweep interval until Close.
func NewMemory(ttl, sweep time.Duration) *Memory {
	m := &Memory{
		store: make(map[string]*entry),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}
	go m.cleanup(sweep)
	return m
}

func (m *Memory) Put(ctx context.Context, r *Run) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.store[r.ID] = &entry{raw: raw, createdAt: r.CreatedAt, expiresAt: now.Add(m.ttl)}
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (*Run, error) {
	m.mu.RLock()
	e, ok := m.store[id]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expiresAt) {
		return nil, ErrNotFound
	}
	var r Run
	if err := json.Unmarshal(e.raw, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *Memory) List(ctx context.Context) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	out := make([]*Run, 0, len(m.store))
	for _, e := range m.store {
		if now.After(e.expiresAt) {
			continue
		}
		var r Run
		if err := json.Unmarshal(e.raw, &r); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	sortNewestFirst(out)
	return out, nil
}

// Close stops the sweeper. The store stays readable.
func (m *Memory) Close() error {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	<-m.done
	return nil
}

// cleanup periodically removes expired entries.
func (m *Memory) cleanup(every time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, e := range m.store {
		if now.After(e.expiresAt) {
			delete(m.store, id)
		}
	}
}

func (m *Memory) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}
