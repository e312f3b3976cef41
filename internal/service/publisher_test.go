package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/theater-booking/internal/config"
	"github.com/iliyamo/theater-booking/internal/model"
	q "github.com/iliyamo/theater-booking/internal/queue"
	"github.com/iliyamo/theater-booking/internal/slots"
)

type published struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	exchanges  []string
	queues     []string
	published  []published
	publishErr error
	closed     int
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	f.exchanges = append(f.exchanges, kind+":"+name)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.queues = append(f.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange, key, msg})
	return nil
}

func (f *fakeChannel) Close() error { f.closed++; return nil }

var brokerCfg = config.BrokerConfig{URL: "amqp://test", SlotsExchange: "slots.changed", BookingQueue: "booking_saved"}

func newTestPublisher(ch *fakeChannel) (*Publisher, *logtest.Hook) {
	log, hook := logtest.NewNullLogger()
	dial := func() (Channel, func(), error) {
		return ch, func() { _ = ch.Close() }, nil
	}
	p := NewPublisherWithDialer(brokerCfg, "instance-a", dial, log)
	p.now = func() time.Time { return time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC) }
	return p, hook
}

func TestPublisherSlotsChanged(t *testing.T) {
	ch := &fakeChannel{}
	p, _ := newTestPublisher(ch)

	p.SlotsChanged(context.Background(), slots.Change{
		Theater:     "Lounge",
		Date:        "2024-05-01",
		NewlyBooked: []string{"10:00 AM - 1:00 PM"},
	})

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, []string{"fanout:slots.changed"}, ch.exchanges)
	assert.Equal(t, "slots.changed", got.exchange)
	assert.Empty(t, got.key)
	assert.Equal(t, amqp.Transient, got.msg.DeliveryMode)

	var ev q.SlotsChangedEvent
	require.NoError(t, json.Unmarshal(got.msg.Body, &ev))
	assert.Equal(t, "instance-a", ev.Origin)
	assert.Equal(t, "Lounge", ev.Theater)
	assert.Equal(t, []string{"10:00 AM - 1:00 PM"}, ev.NewlyBooked)
	assert.Equal(t, "2024-05-01T09:30:00Z", ev.OccurredAt)
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, 1, ch.closed)
}

func TestPublisherBookingSaved(t *testing.T) {
	ch := &fakeChannel{}
	p, _ := newTestPublisher(ch)

	b := &model.Booking{
		BookingID:     "BK-1",
		Theater:       "Lounge",
		Status:        model.StatusConfirmed,
		PaymentStatus: model.PaymentAdvance,
		Pricing:       model.PricingState{TotalAmount: 3400, AdvancePayment: 1000, VenuePayment: 2400},
	}
	p.BookingSaved(context.Background(), b)

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, []string{"booking_saved"}, ch.queues)
	assert.Empty(t, got.exchange)
	assert.Equal(t, "booking_saved", got.key)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)

	var ev q.BookingSavedEvent
	require.NoError(t, json.Unmarshal(got.msg.Body, &ev))
	assert.Equal(t, "BK-1", ev.BookingID)
	assert.Equal(t, "confirmed", ev.Status)
	assert.Equal(t, "advance", ev.PaymentStatus)
	assert.Equal(t, int64(2400), ev.VenuePayment)
}

func TestPublisherFailureIsLogged(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p, hook := newTestPublisher(ch)

	p.BookingSaved(context.Background(), &model.Booking{BookingID: "BK-9"})

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "BK-9", hook.LastEntry().Data["booking_id"])
	assert.Equal(t, 1, ch.closed)
}
