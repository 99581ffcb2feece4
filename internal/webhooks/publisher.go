// Package webhooks announces persisted improvements to HTTP endpoints.
// Deliveries are signed with HMAC-SHA256 and retried with exponential
// backoff from a single worker goroutine.
package webhooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"nurseroute/internal/config"
	"nurseroute/internal/model"
	"nurseroute/internal/store"
)

const EventImproved = "solution.improved"

const queueSize = 64

type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
	Data any       `json:"data"`
}

type delivery struct {
	url   string
	event string
	body  []byte
}

type Publisher struct {
	urls        []string
	secret      string
	http        *http.Client
	maxAttempts int
	backoff     time.Duration
	log         *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan delivery
}

func NewPublisher(cfg config.Webhooks, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Publisher{
		urls:        cfg.URLs,
		secret:      cfg.Secret,
		http:        &http.Client{Timeout: cfg.Timeout},
		maxAttempts: attempts,
		backoff:     cfg.Backoff,
		log:         log.With("component", "webhooks"),
		queue:       make(chan delivery, queueSize),
	}
}

// Emit queues one delivery per endpoint. A full queue drops the delivery;
// emitting after Close is a no-op.
func (p *Publisher) Emit(eventType string, data any) error {
	body, err := json.Marshal(Event{ID: uuid.NewString(), Type: eventType, TS: time.Now().UTC(), Data: data})
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	for _, u := range p.urls {
		select {
		case p.queue <- delivery{url: u, event: eventType, body: body}:
		default:
			p.log.Warn("webhook queue full, dropping", "url", u, "event", eventType)
		}
	}
	return nil
}

// Close stops accepting events. Run returns once the queue is drained.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
}

// NotifyingStore emits EventImproved for every solution it saves.
type NotifyingStore struct {
	store.Store
	Pub *Publisher
}

func (n NotifyingStore) SaveSolution(ctx context.Context, s model.Solution) (model.Solution, error) {
	saved, err := n.Store.SaveSolution(ctx, s)
	if err != nil {
		return saved, err
	}
	if err := n.Pub.Emit(EventImproved, saved); err != nil {
		n.Pub.log.Warn("emit", "error", err)
	}
	return saved, nil
}
