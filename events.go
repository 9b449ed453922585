package lookupd

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventMimeType is the payload content type stamped on every event.
const EventMimeType = "application/json"

// Event is the bus message envelope. Timestamp is RFC 3339 publish time.
type Event struct {
	Topic      string      `json:"topic"`
	Originator string      `json:"originator"`
	Timestamp  string      `json:"timestamp"`
	MimeType   string      `json:"mime-type"`
	Payload    interface{} `json:"payload"`
}

// EventPublisher emits events on a fire-and-forget basis. Publish never
// returns an error: event delivery is best effort and must not affect the
// outcome of the operation being reported.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{})
	Close() error
}

// Topics the coordinator publishes on. Every committed mutation emits one
// success event; saga failures emit on the error topic instead.
const (
	CreateTopic = "lookup.notification.create"
	UpdateTopic = "lookup.notification.update"
	DeleteTopic = "lookup.notification.delete"

	// ErrorTopic is the topic error events are published on.
	ErrorTopic = "common.error.reporting"
)

// PublishError emits an error event tagged with the API action that failed,
// e.g. "country.create".
func PublishError(ctx context.Context, pub EventPublisher, action string, err error) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, ErrorTopic, map[string]interface{}{
		"apiAction": action,
		"message":   err.Error(),
	})
}

// NoOpEventPublisher discards every event.
type NoOpEventPublisher struct{}

func (p *NoOpEventPublisher) Publish(ctx context.Context, topic string, payload interface{}) {}
func (p *NoOpEventPublisher) Close() error                                                   { return nil }

// CaptureEventPublisher records events in memory for tests.
type CaptureEventPublisher struct {
	mu     sync.Mutex
	Events []Event
}

func (p *CaptureEventPublisher) Publish(ctx context.Context, topic string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, Event{
		Topic:      topic,
		Originator: "test",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		MimeType:   EventMimeType,
		Payload:    payload,
	})
}

func (p *CaptureEventPublisher) Close() error { return nil }

// ByTopic returns the captured events for one topic.
func (p *CaptureEventPublisher) ByTopic(topic string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.Events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// AMQPPublisher emits events to a RabbitMQ topic exchange, routing key set
// to the event topic. Publish failures are logged and dropped.
type AMQPPublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	originator string
	logger     Logger
	metrics    Metrics
}

// AMQPConfig configures the event bus connection.
type AMQPConfig struct {
	URL        string
	Exchange   string
	Originator string
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(cfg AMQPConfig, logger Logger, metrics Metrics) (*AMQPPublisher, error) {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	if metrics == nil {
		metrics = &NoOpMetrics{}
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "lookups.events"
	}
	if cfg.Originator == "" {
		cfg.Originator = "lookupd"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, WithContext(err, map[string]interface{}{"url": cfg.URL})
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPPublisher{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		originator: cfg.Originator,
		logger:     logger,
		metrics:    metrics,
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, topic string, payload interface{}) {
	event := Event{
		Topic:      topic,
		Originator: p.originator,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		MimeType:   EventMimeType,
		Payload:    payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("marshal event", "topic", topic, "error", err)
		p.metrics.Increment(MetricEventPublishError, "topic", topic)
		return
	}
	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		topic,
		false, false,
		amqp.Publishing{
			ContentType:  EventMimeType,
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		p.logger.Error("publish event", "topic", topic, "error", err)
		p.metrics.Increment(MetricEventPublishError, "topic", topic)
		return
	}
	p.metrics.Increment(MetricEventPublished, "topic", topic)
}

func (p *AMQPPublisher) Close() error {
	p.channel.Close()
	return p.conn.Close()
}
