package broker

import (
	"context"

	"taskbridge/pkg/models"
)

// Publisher owns an exchange-facing connection. Connect must complete
// before the first Publish; reconnection after a transient drop is the
// publisher's own concern and never surfaces to callers.
type Publisher interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close() error
}

// Consumer binds the shared queue and delivers decoded envelopes to a
// handler. Consume blocks until the context is cancelled. Handler
// errors are logged, never requeued: the message is acknowledged on
// every outcome so a processing bug cannot cause a redelivery loop.
type Consumer interface {
	Consume(ctx context.Context, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, env models.EventEnvelope) error
