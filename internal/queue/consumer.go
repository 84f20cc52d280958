package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer drains the ledger queue into an append-only log file.
type Consumer struct {
	URL     string
	LogPath string

	mu sync.Mutex
}

// NewConsumer returns a consumer writing to logs/ledger.log.
func NewConsumer(url string) *Consumer {
	return &Consumer{URL: url, LogPath: filepath.Join("logs", "ledger.log")}
}

// Run connects to the broker and consumes until ctx is cancelled. It
// reconnects with exponential backoff; a message that cannot be handled is
// rejected without requeue so it cannot spin.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Printf("ledger-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("ledger-consumer: consume loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("ledger-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				log.Printf("ledger-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message and appends its line to the log file.
func (c *Consumer) Handle(body []byte) error {
	var ev LedgerEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(c.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(c.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLine renders ev as one human-friendly log line.
func FormatLine(ev LedgerEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | restaurant_id=%s | session_id=%s",
		ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type, ev.RestaurantID, ev.SessionID)
	if ev.BillID != "" {
		fmt.Fprintf(&b, " | bill_id=%s", ev.BillID)
	}
	if ev.ItemID != "" {
		fmt.Fprintf(&b, " | item_id=%s | quantity=%d", ev.ItemID, ev.Quantity)
	}
	fmt.Fprintf(&b, " | actor=%s | amount=%d cents | remaining=%d cents", ev.ActorID, ev.AmountCents, ev.Remaining)
	if len(ev.Methods) > 0 {
		fmt.Fprintf(&b, " | methods=[%s]", strings.Join(ev.Methods, ","))
	}
	if ev.Reason != "" {
		fmt.Fprintf(&b, " | reason=%q", ev.Reason)
	}
	b.WriteByte('\n')
	return b.String()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
