package migration

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQP publishes migrants to a fanout exchange. Every subscriber binds its
// own exclusive, auto-deleted queue so each process sees every migrant.
type AMQP struct {
	conn     *amqp.Connection
	exchange string

	mu  sync.Mutex
	pub *amqp.Channel
}

func NewAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeFanout,
		false, // durable
		true,  // auto-delete once the last island leaves
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &AMQP{conn: conn, exchange: exchange, pub: ch}, nil
}

func (a *AMQP) Publish(ctx context.Context, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pub.PublishWithContext(ctx, a.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		Body:         payload,
	})
}

func (a *AMQP) Subscribe(ctx context.Context) (<-chan []byte, error) {
	ch, err := a.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // auto-delete
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err == nil {
		err = ch.QueueBind(q.Name, "", a.exchange, false, nil)
	}
	var msgs <-chan amqp.Delivery
	if err == nil {
		msgs, err = ch.Consume(q.Name, "", true, true, false, false, nil)
	}
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("subscribe %s: %w", a.exchange, err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- d.Body:
				default:
				}
			}
		}
	}()
	return out, nil
}

func (a *AMQP) Close() error { return a.conn.Close() }
