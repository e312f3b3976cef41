package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Refresher is told to repoll a theater/date.  It reports whether the
// theater/date is being tracked locally.
type Refresher interface {
	Refresh(theater, date string) bool
}

// SlotConsumer listens on the slot-change fanout exchange.  Each instance
// binds its own exclusive queue, so every instance sees every event.
type SlotConsumer struct {
	URL      string
	Exchange string
	Origin   string // events from this origin are ignored
	Target   Refresher
	Log      logrus.FieldLogger
}

// StartSlotConsumer connects to RabbitMQ and consumes slot events until ctx
// is cancelled.  Connection failures are retried with exponential backoff.
func StartSlotConsumer(ctx context.Context, c SlotConsumer) error {
	log := c.Log.WithField("exchange", c.Exchange)
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.WithError(err).Warnf("slot-consumer: failed to dial broker; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("slot-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
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

func (c SlotConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.WithError(err).Warn("slot-consumer: set QoS failed")
	}
	if err := ch.ExchangeDeclare(c.Exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, "", c.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
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
			if err := c.handleMessage(d.Body); err != nil {
				c.Log.WithError(err).Warn("slot-consumer: handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c SlotConsumer) handleMessage(body []byte) error {
	var ev SlotsChangedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Theater == "" || ev.Date == "" {
		return errors.New("event without theater or date")
	}
	if ev.Origin != "" && ev.Origin == c.Origin {
		return nil
	}
	if c.Target.Refresh(ev.Theater, ev.Date) {
		c.Log.WithFields(logrus.Fields{
			"event_id": ev.EventID,
			"theater":  ev.Theater,
			"date":     ev.Date,
		}).Debug("slot-consumer: refreshed from remote change")
	}
	return nil
}
