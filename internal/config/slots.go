package config

import "time"

// SlotConfig controls slot availability polling.
type SlotConfig struct {
	PollInterval time.Duration // how often an open theater/date is refetched
	FetchTimeout time.Duration // per-fetch deadline
	Idle         time.Duration // polling stops this long after the last viewer
	Location     string        // IANA zone slot labels are written in
}

func LoadSlotConfig() SlotConfig {
	return SlotConfig{
		PollInterval: envDur("SLOT_POLL_INTERVAL", 2*time.Second),
		FetchTimeout: envDur("SLOT_FETCH_TIMEOUT", 5*time.Second),
		Idle:         envDur("SLOT_IDLE", 2*time.Minute),
		Location:     envStr("SLOT_TIMEZONE", "Local"),
	}
}

// BrokerConfig locates RabbitMQ.  An empty URL disables publishing and the
// slot consumer.
type BrokerConfig struct {
	URL           string
	SlotsExchange string
	BookingQueue  string
}

// LoadBrokerConfig resolves the broker URL from RABBITMQ_URL, then AMQP_URL.
func LoadBrokerConfig() BrokerConfig {
	url := envStr("RABBITMQ_URL", "")
	if url == "" {
		url = envStr("AMQP_URL", "")
	}
	return BrokerConfig{
		URL:           url,
		SlotsExchange: envStr("SLOT_EVENTS_EXCHANGE", "slots.changed"),
		BookingQueue:  envStr("BOOKING_EVENTS_QUEUE", "booking_saved"),
	}
}
