package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var ErrPublisherClosed = errors.New("publisher_closed")

const defaultDialTimeout = 5 * time.Second

// RabbitPublisher publishes JSON events to a durable topic exchange. The
// connection is dialed at start and re-dialed after it drops. Dialing
// happens outside mu so Close never waits on the network.
type RabbitPublisher struct {
	url         string
	exchange    string
	dialTimeout time.Duration
	log         *zap.Logger

	dialMu  sync.Mutex
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

func NewRabbitPublisher(rawURL, exchange string, dialTimeout time.Duration, log *zap.Logger) (*RabbitPublisher, error) {
	clean, err := sanitizeAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(exchange) == "" {
		exchange = "makerhub.events"
	}
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	return &RabbitPublisher{
		url:         clean,
		exchange:    exchange,
		dialTimeout: dialTimeout,
		log:         log.Named("events.rabbitmq"),
	}, nil
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("amqp url scheme must be amqp or amqps")
	}
	return clean, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := p.ensureChannel(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	err = ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     evt.ID,
		CorrelationId: evt.CorrelationID,
		Type:          evt.Type,
		Timestamp:     evt.OccurredAt,
		Body:          body,
	})
	if err != nil {
		if p.channel == ch {
			p.reset()
		}
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.log.Debug("event published",
		zap.String("routing_key", routingKey),
		zap.String("event_id", evt.ID),
		zap.String("correlation_id", evt.CorrelationID),
	)
	return nil
}

// Connect dials eagerly. A failure is not fatal: Publish dials again.
func (p *RabbitPublisher) Connect(ctx context.Context) error {
	_, err := p.ensureChannel(ctx)
	return err
}

func (p *RabbitPublisher) current() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPublisherClosed
	}
	if p.channel != nil && !p.channel.IsClosed() {
		return p.channel, nil
	}
	return nil, nil
}

func (p *RabbitPublisher) ensureChannel(ctx context.Context) (*amqp.Channel, error) {
	if ch, err := p.current(); ch != nil || err != nil {
		return ch, err
	}

	// one dial at a time; the loser of the race reuses the winner's channel
	p.dialMu.Lock()
	defer p.dialMu.Unlock()
	if ch, err := p.current(); ch != nil || err != nil {
		return ch, err
	}

	conn, ch, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		_ = ch.Close()
		_ = conn.Close()
		return nil, ErrPublisherClosed
	}
	p.reset()
	p.conn = conn
	p.channel = ch
	return ch, nil
}

func (p *RabbitPublisher) dial(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	timeout := p.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	return conn, ch, nil
}

func (p *RabbitPublisher) reset() {
	if p.channel != nil {
		_ = p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.reset()
	return nil
}
