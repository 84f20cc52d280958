package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher sends ledger events to the durable ledger queue. It keeps one
// connection and channel open and redials once when either was closed by
// the broker. Publish failures are logged and returned, so callers may
// ignore them without interrupting the request.
type Publisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a publisher for url. Nothing is dialled until the
// first Publish.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// Publish marshals ev and routes it to Queue as a persistent message.
func (p *Publisher) Publish(ctx context.Context, ev LedgerEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(ev.Type),
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for attempt := 0; attempt < 2; attempt++ {
		if err = p.ensureChannel(); err != nil {
			continue
		}
		if err = p.ch.PublishWithContext(ctx, "", Queue, false, false, pub); err == nil {
			return nil
		}
		p.reset()
	}
	log.Printf("rabbitmq: publish %s failed: %v", ev.Type, err)
	return err
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

func (p *Publisher) ensureChannel() error {
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// LogPublisher writes events to the process log. It stands in when no
// broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev LedgerEvent) error {
	log.Printf("ledger-event: %s session=%s amount=%d remaining=%d", ev.Type, ev.SessionID, ev.AmountCents, ev.Remaining)
	return nil
}
