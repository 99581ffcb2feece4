// Package migration moves migrants between islands that do not share a
// process. Transports are lossy fan-out pipes; the Migrator on top keeps the
// engine's exchange contract.
package migration

import (
	"context"
	"fmt"

	"nurseroute/internal/config"
)

// Transport broadcasts opaque payloads to every subscriber, including the
// publisher's own subscriptions. Slow subscribers drop messages.
type Transport interface {
	Publish(ctx context.Context, payload []byte) error
	// Subscribe delivers payloads until ctx is done, then closes the channel.
	Subscribe(ctx context.Context) (<-chan []byte, error)
	Close() error
}

// Open returns the configured transport, or nil for the in-process slot.
func Open(cfg config.Transport) (Transport, error) {
	switch cfg.Kind {
	case "slot", "":
		return nil, nil
	case "memory":
		return NewMemory(), nil
	case "redis":
		return NewRedis(cfg.URL, cfg.Channel)
	case "amqp":
		return NewAMQP(cfg.URL, cfg.Channel)
	}
	return nil, fmt.Errorf("unknown migration transport %q", cfg.Kind)
}
