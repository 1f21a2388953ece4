package tracing

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// InjectTraceContext copies the active trace context into AMQP message
// headers so the worker's spans join the receiver's trace.
func InjectTraceContext(ctx context.Context, headers amqp.Table) amqp.Table {
	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		return headers
	}

	if headers == nil {
		headers = amqp.Table{}
	}
	propagator.Inject(ctx, amqpHeaderCarrier(headers))
	return headers
}

// ExtractTraceContext restores the trace context carried in a
// delivery's headers, if any.
func ExtractTraceContext(ctx context.Context, headers amqp.Table) context.Context {
	propagator := otel.GetTextMapPropagator()
	if propagator == nil || len(headers) == 0 {
		return ctx
	}
	return propagator.Extract(ctx, amqpHeaderCarrier(headers))
}

// amqpHeaderCarrier adapts amqp.Table to the propagation carrier
// interface. Only string values participate.
type amqpHeaderCarrier amqp.Table

func (c amqpHeaderCarrier) Get(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

func (c amqpHeaderCarrier) Set(key, value string) {
	c[key] = value
}

func (c amqpHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}
