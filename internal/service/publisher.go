// Package service publishes domain events to RabbitMQ.  Failures are logged
// and never interrupt the edit or poll that triggered them.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/theater-booking/internal/config"
	"github.com/iliyamo/theater-booking/internal/model"
	q "github.com/iliyamo/theater-booking/internal/queue"
	"github.com/iliyamo/theater-booking/internal/slots"
)

const publishTimeout = 3 * time.Second

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a channel and returns a func that releases it together with
// its connection.
type Dialer func() (Channel, func(), error)

// Publisher implements slots.Listener and reconcile.Notifier.
type Publisher struct {
	cfg    config.BrokerConfig
	origin string
	dial   Dialer
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewPublisher returns a publisher that dials cfg.URL for every message.
// origin identifies this instance in slot events.
func NewPublisher(cfg config.BrokerConfig, origin string, log logrus.FieldLogger) *Publisher {
	return NewPublisherWithDialer(cfg, origin, amqpDialer(cfg.URL), log)
}

// NewPublisherWithDialer is NewPublisher with a custom channel source.
func NewPublisherWithDialer(cfg config.BrokerConfig, origin string, dial Dialer, log logrus.FieldLogger) *Publisher {
	return &Publisher{cfg: cfg, origin: origin, dial: dial, log: log, now: time.Now}
}

func amqpDialer(url string) Dialer {
	return func() (Channel, func(), error) {
		conn, err := amqp.Dial(url)
		if err != nil {
			return nil, nil, fmt.Errorf("dial: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("channel open: %w", err)
		}
		return ch, func() {
			_ = ch.Close()
			_ = conn.Close()
		}, nil
	}
}

// SlotsChanged broadcasts a slot change on the fanout exchange.
func (p *Publisher) SlotsChanged(ctx context.Context, c slots.Change) {
	ev := q.SlotsChangedEvent{
		EventID:     q.NewEventID(),
		Origin:      p.origin,
		Theater:     c.Theater,
		Date:        c.Date,
		NewlyBooked: c.NewlyBooked,
		NewlyFreed:  c.NewlyFreed,
		OccurredAt:  q.Timestamp(p.now()),
	}
	err := p.publish(ctx, ev, func(ch Channel) (string, string, error) {
		err := ch.ExchangeDeclare(p.cfg.SlotsExchange, amqp.ExchangeFanout, true, false, false, false, nil)
		return p.cfg.SlotsExchange, "", err
	}, amqp.Transient)
	if err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"theater": c.Theater,
			"date":    c.Date,
		}).Warn("rabbitmq: slot change not published")
	}
}

// BookingSaved queues a BookingSavedEvent on the durable booking queue.
func (p *Publisher) BookingSaved(ctx context.Context, b *model.Booking) {
	ev := BookingSavedEvent(b, p.now())
	err := p.publish(ctx, ev, func(ch Channel) (string, string, error) {
		// Durable so messages survive broker restarts.
		_, err := ch.QueueDeclare(p.cfg.BookingQueue, true, false, false, false, nil)
		return "", p.cfg.BookingQueue, err
	}, amqp.Persistent)
	if err != nil {
		p.log.WithError(err).WithField("booking_id", b.BookingID).Warn("rabbitmq: booking saved event not published")
	}
}

// BookingSavedEvent builds the event published for a saved booking.
func BookingSavedEvent(b *model.Booking, at time.Time) q.BookingSavedEvent {
	return q.BookingSavedEvent{
		EventID:       q.NewEventID(),
		BookingID:     b.BookingID,
		Theater:       b.Theater,
		Date:          b.Date,
		Time:          b.Time,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		TotalAmount:   b.Pricing.TotalAmount,
		AdvancePaid:   b.Pricing.AdvancePayment,
		VenuePayment:  b.Pricing.VenuePayment,
		SavedAt:       q.Timestamp(at),
	}
}

func (p *Publisher) publish(ctx context.Context, event any, declare func(Channel) (string, string, error), mode uint8) error {
	if p.dial == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	ch, release, err := p.dial()
	if err != nil {
		return err
	}
	defer release()

	exchange, key, err := declare(ch)
	if err != nil {
		return fmt.Errorf("declare: %w", err)
	}

	// The triggering poll or request may finish before the broker answers.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: mode,
		Timestamp:    p.now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, exchange, key, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
