package migration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"nurseroute/internal/model"
)

type source struct {
	origin string
	island int
}

type pending struct {
	env Envelope
	seq uint64
}

// Migrator exchanges migrants over a Transport. Each Exchange publishes the
// outgoing individual and hands back the freshest migrant received from any
// other island, if one is waiting. It never blocks on the network for
// incoming migrants.
type Migrator struct {
	t        Transport
	instance string
	origin   string
	log      *slog.Logger

	mu    sync.Mutex
	held  map[source]pending
	seq   uint64
	stop  context.CancelFunc
	done  chan struct{}
	stats struct{ received, dropped int }
}

// NewMigrator subscribes to t. Migrants for other instances are ignored.
func NewMigrator(ctx context.Context, t Transport, instance string, log *slog.Logger) (*Migrator, error) {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(ctx)
	in, err := t.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	m := &Migrator{
		t:        t,
		instance: instance,
		origin:   uuid.NewString(),
		log:      log.With("component", "migration"),
		held:     map[source]pending{},
		stop:     cancel,
		done:     make(chan struct{}),
	}
	go m.receive(in)
	return m, nil
}

func (m *Migrator) receive(in <-chan []byte) {
	defer close(m.done)
	for b := range in {
		env, err := Decode(b)
		if err != nil {
			m.log.Debug("dropping migrant", "error", err)
			m.mu.Lock()
			m.stats.dropped++
			m.mu.Unlock()
			continue
		}
		if env.Instance != m.instance {
			continue
		}
		m.mu.Lock()
		m.seq++
		m.held[source{env.Origin, env.Island}] = pending{env: env, seq: m.seq}
		m.stats.received++
		m.mu.Unlock()
	}
}

// Exchange implements the engine's migration hook.
func (m *Migrator) Exchange(ctx context.Context, island int, out *model.Individual) (*model.Individual, error) {
	b, err := Encode(Envelope{
		Origin:   m.origin,
		Instance: m.instance,
		Island:   island,
		Fitness:  out.Fitness,
		Routes:   out.OneIndexed(),
		Sent:     time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if err := m.t.Publish(ctx, b); err != nil {
		return nil, fmt.Errorf("publish migrant: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	self := source{m.origin, island}
	var (
		pick  source
		found bool
		seq   uint64
	)
	for src, p := range m.held {
		if src == self {
			continue
		}
		if !found || p.seq > seq {
			pick, seq, found = src, p.seq, true
		}
	}
	if !found {
		return nil, nil
	}
	env := m.held[pick].env
	delete(m.held, pick)
	return env.Individual(), nil
}

// Pending reports how many migrants are waiting to be picked up.
func (m *Migrator) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}

// Close stops receiving. It does not close the transport.
func (m *Migrator) Close() error {
	m.stop()
	<-m.done
	m.mu.Lock()
	m.log.Debug("migrator closed", "received", m.stats.received, "dropped", m.stats.dropped)
	m.mu.Unlock()
	return nil
}
