package migration

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("transport closed")

// Memory is an in-process broker. It is mostly useful in tests and for
// running several Migrators against each other in one binary.
type Memory struct {
	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	closed bool
}

func NewMemory() *Memory {
	return &Memory{subs: map[chan []byte]struct{}{}}
}

func (m *Memory) Subscribe(ctx context.Context) (<-chan []byte, error) {
	ch := make(chan []byte, 8)
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.subs[ch] = struct{}{}
	m.mu.Unlock()
	go func() {
		<-ctx.Done()
		m.unsubscribe(ch)
	}()
	return ch, nil
}

func (m *Memory) unsubscribe(ch chan []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subs[ch]; ok {
		delete(m.subs, ch)
		close(ch)
	}
}

func (m *Memory) Publish(_ context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for ch := range m.subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Close closes every subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for ch := range m.subs {
		delete(m.subs, ch)
		close(ch)
	}
	return nil
}
