// Package service holds the background publisher that forwards committed
// ledger history to RabbitMQ.  Publishing never blocks or fails a request:
// entries are buffered and errors are logged.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/concert-reservation/internal/model"
	q "github.com/iliyamo/concert-reservation/internal/queue"
)

// HistoryPublisher publishes HistoryRecordedEvent messages to a durable
// queue over a single long-lived connection, re-dialed on failure.
type HistoryPublisher struct {
	url     string
	queue   string
	events  chan q.HistoryRecordedEvent
	dropped atomic.Int64

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewHistoryPublisher returns a publisher buffering up to buffer events.
func NewHistoryPublisher(url, queue string, buffer int) *HistoryPublisher {
	if buffer < 1 {
		buffer = 1
	}
	return &HistoryPublisher{
		url:    url,
		queue:  queue,
		events: make(chan q.HistoryRecordedEvent, buffer),
	}
}

// Enqueue hands e to the publishing loop without blocking.  When the
// buffer is full the event is dropped and counted.  Its signature matches
// repository.Observer.
func (p *HistoryPublisher) Enqueue(e model.HistoryEntry) {
	select {
	case p.events <- q.NewHistoryRecordedEvent(e):
	default:
		p.dropped.Add(1)
		log.Warnf("history-publisher: buffer full, dropping entry %s (%s)", e.ID, e.Action)
	}
}

// Dropped reports how many events were discarded because the buffer was full.
func (p *HistoryPublisher) Dropped() int64 { return p.dropped.Load() }

// drainTimeout bounds the final flush performed when Run is cancelled.
const drainTimeout = 5 * time.Second

// Run publishes events in the order they were enqueued until ctx is
// cancelled, then flushes what is still buffered.  Ledger observers run
// after the ledger's locks are released, so concurrent mutations may be
// enqueued in a different order than the history log records them;
// consumers that need history order sort by Timestamp.
func (p *HistoryPublisher) Run(ctx context.Context) {
	defer p.Close()
	for {
		select {
		case <-ctx.Done():
			if n := p.drain(); n > 0 {
				p.dropped.Add(int64(n))
				log.Warnf("history-publisher: shutdown left %d events unpublished", n)
			}
			return
		case ev := <-p.events:
			pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := p.Publish(pubCtx, ev); err != nil {
				log.Errorf("history-publisher: publish %s failed: %v", ev.ID, err)
			}
			cancel()
		}
	}
}

// drain publishes buffered events until the buffer is empty, a publish
// fails or drainTimeout elapses.  It empties the buffer either way and
// returns how many events were not published.
func (p *HistoryPublisher) drain() int {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	failed := 0
	for {
		select {
		case ev := <-p.events:
			if failed > 0 || ctx.Err() != nil {
				failed++
				continue
			}
			if err := p.Publish(ctx, ev); err != nil {
				log.Errorf("history-publisher: flush %s failed: %v", ev.ID, err)
				failed++
			}
		default:
			return failed
		}
	}
}

// Publish sends ev as a persistent JSON message.  On error the connection
// is discarded so the next call dials again.
func (p *HistoryPublisher) Publish(ctx context.Context, ev q.HistoryRecordedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ch, err := p.channelLocked()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.Timestamp.Time,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		p.resetLocked()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// channelLocked returns an open channel with the queue declared, dialing
// when needed.  p.mu must be held.
func (p *HistoryPublisher) channelLocked() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *HistoryPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *HistoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}
