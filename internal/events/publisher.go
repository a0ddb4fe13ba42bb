package events

import "context"

type Publisher interface {
	Publish(ctx context.Context, routingKey string, evt Event) error
}

// NoopPublisher drops events. Used when RABBITMQ_URL is empty.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, Event) error { return nil }
