package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/authgate/internal/config"
	"github.com/iliyamo/authgate/internal/model"
)

// ErrBufferFull is returned by Publish when the outgoing buffer is full.
// The event is dropped.
var ErrBufferFull = errors.New("queue: publish buffer full")

const publishBuffer = 256

// amqpPublisher is the part of *amqp.Channel the publisher uses.
type amqpPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher buffers account events and ships them to RabbitMQ from a single
// background connection.  Publish never waits on the broker, so a broker
// outage cannot slow down login or registration.
type Publisher struct {
	cfg    config.QueueConfig
	log    logrus.FieldLogger
	events chan model.AccountEvent
}

func NewPublisher(cfg config.QueueConfig, log logrus.FieldLogger) *Publisher {
	return &Publisher{cfg: cfg, log: log, events: make(chan model.AccountEvent, publishBuffer)}
}

// Publish enqueues ev for delivery.
func (p *Publisher) Publish(ctx context.Context, ev model.AccountEvent) error {
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

// Run delivers queued events until ctx is cancelled, redialling the broker
// with backoff whenever the connection drops.
func (p *Publisher) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(p.cfg.URL)
		if err != nil {
			p.log.WithError(err).Warnf("audit publisher: dial failed, retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = time.Second

		if err := p.publishLoop(ctx, conn); err != nil {
			p.log.WithError(err).Warn("audit publisher: connection lost, reconnecting")
		}
		_ = conn.Close()
	}
}

func (p *Publisher) publishLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(p.cfg.QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-closed:
			return fmt.Errorf("connection closed: %v", err)
		case ev := <-p.events:
			if err := p.publishOne(ctx, ch, ev); err != nil {
				p.log.WithError(err).WithField("kind", ev.Kind).Warn("audit publisher: event dropped")
			}
		}
	}
}

func (p *Publisher) publishOne(ctx context.Context, ch amqpPublisher, ev model.AccountEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(ctx, "", p.cfg.QueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Kind,
		Body:         body,
	})
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

func nextBackoff(d time.Duration) time.Duration {
	if d < 30*time.Second {
		return d * 2
	}
	return d
}
