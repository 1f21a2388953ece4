package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"taskbridge/internal/config"
	"taskbridge/internal/logger"
	apperrors "taskbridge/pkg/errors"
	"taskbridge/pkg/logging"
	"taskbridge/pkg/metrics"
	"taskbridge/pkg/models"
	"taskbridge/pkg/tracing"
)

// ErrNotConnected is returned when Publish is called before Connect has
// completed. This is a programming error, not a transient condition.
var ErrNotConnected = errors.New("broker: publisher is not connected, call Connect first")

const reconnectDelay = 2 * time.Second

// declareTopology sets up the durable topic exchange, the durable
// queue, and the wildcard binding. Both publisher and consumer call it
// so the two sides can start in any order. Re-declaring with identical
// properties is a no-op; conflicting properties fail with a 406 which
// is surfaced as a fatal configuration error.
func declareTopology(ch *amqp.Channel, cfg config.BrokerConfig) error {
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return asTopologyError(fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err))
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return asTopologyError(fmt.Errorf("declare queue %s: %w", cfg.Queue, err))
	}
	if err := ch.QueueBind(cfg.Queue, cfg.BindingKey, cfg.Exchange, false, nil); err != nil {
		return asTopologyError(fmt.Errorf("bind queue %s to %s with %s: %w", cfg.Queue, cfg.Exchange, cfg.BindingKey, err))
	}
	return nil
}

func asTopologyError(err error) error {
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) && amqpErr.Code == amqp.PreconditionFailed {
		return apperrors.ErrConflict.WithCause(err).WithDetail("message", "broker topology declared with conflicting properties")
	}
	return err
}

func isTopologyConflict(err error) bool {
	return apperrors.IsConflict(err)
}

type RabbitPublisher struct {
	cfg    config.BrokerConfig
	logger logger.Logger

	mu        sync.Mutex
	conn      *amqp.Connection
	ch        *amqp.Channel
	connected bool
	closed    bool
	done      chan struct{}
}

func NewRabbitPublisher(cfg config.BrokerConfig, log logger.Logger) *RabbitPublisher {
	return &RabbitPublisher{
		cfg:    cfg,
		logger: log,
		done:   make(chan struct{}),
	}
}

// Connect dials the broker, declares the topology, and starts the
// recovery loop. Callers never re-invoke Connect after a drop: the
// loop redials and re-declares transparently.
func (p *RabbitPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("broker: publisher is closed")
	}
	if p.connected {
		return nil
	}

	conn, ch, notify, err := p.dial()
	if err != nil {
		return err
	}
	p.conn = conn
	p.ch = ch
	p.connected = true

	go p.recoverLoop(notify)

	p.logger.Infow("Broker publisher connected",
		"exchange", p.cfg.Exchange,
		"queue", p.cfg.Queue,
		"binding_key", p.cfg.BindingKey,
	)
	return nil
}

// dial establishes connection + channel + topology. It takes no locks
// and touches no publisher state; callers install the result under
// p.mu so Publish is never blocked behind network I/O.
func (p *RabbitPublisher) dial() (*amqp.Connection, *amqp.Channel, chan *amqp.Error, error) {
	conn, err := amqp.Dial(p.cfg.URL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("broker dial %s failed: %w", p.cfg.URL, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("broker channel open failed: %w", err)
	}

	if err := declareTopology(ch, p.cfg); err != nil {
		conn.Close()
		return nil, nil, nil, err
	}

	return conn, ch, conn.NotifyClose(make(chan *amqp.Error, 1)), nil
}

func (p *RabbitPublisher) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// recoverLoop redials after a connection-level close until Close is
// called. Topology conflicts abort recovery: redialing cannot fix a
// mis-declared exchange.
func (p *RabbitPublisher) recoverLoop(notify chan *amqp.Error) {
	for {
		select {
		case <-p.done:
			return
		case amqpErr, ok := <-notify:
			if !ok || amqpErr == nil {
				// Clean close.
				return
			}
			p.logger.Warnw("Broker connection lost, reconnecting",
				"error", amqpErr.Error(),
			)
		}

		for {
			select {
			case <-p.done:
				return
			case <-time.After(reconnectDelay):
			}

			if p.isClosed() {
				return
			}
			conn, ch, next, err := p.dial()
			if err == nil {
				p.mu.Lock()
				if p.closed {
					p.mu.Unlock()
					conn.Close()
					return
				}
				p.conn = conn
				p.ch = ch
				p.mu.Unlock()

				p.logger.Infow("Broker connection re-established")
				notify = next
				break
			}
			if isTopologyConflict(err) {
				p.logger.Errorw("Broker topology conflict, recovery aborted", "error", err)
				return
			}
			p.logger.Warnw("Broker reconnect failed, retrying", "error", err)
		}
	}
}

// Publish serializes body as JSON and sends it to the exchange as a
// persistent message. Transient unavailability during recovery is
// returned as an error for the caller to log; the message is not
// buffered.
func (p *RabbitPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal message body: %w", err)
	}

	p.mu.Lock()
	connected, ch := p.connected, p.ch
	p.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	if ch == nil || ch.IsClosed() {
		return fmt.Errorf("broker channel unavailable, recovery in progress")
	}

	err = ch.PublishWithContext(ctx, p.cfg.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      tracing.InjectTraceContext(ctx, nil),
		Body:         payload,
	})
	if err != nil {
		metrics.PublishFailuresTotal.WithLabelValues(routingKey).Inc()
		return fmt.Errorf("publish to %s with key %s: %w", p.cfg.Exchange, routingKey, err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(routingKey).Inc()
	p.logger.Debugw("Message published", "routing_key", routingKey)
	return nil
}

// Close shuts the connection down. Safe to call more than once and
// before Connect.
func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
	}
	return nil
}

type RabbitConsumer struct {
	cfg         config.BrokerConfig
	logger      logger.Logger
	serviceName string

	mu     sync.Mutex
	conn   *amqp.Connection
	closed bool
}

func NewRabbitConsumer(cfg config.BrokerConfig, log logger.Logger) *RabbitConsumer {
	return &RabbitConsumer{
		cfg:         cfg,
		logger:      log,
		serviceName: "worker",
	}
}

func (c *RabbitConsumer) SetServiceName(name string) {
	c.serviceName = name
}

// Consume runs until ctx is cancelled or Close is called, reconnecting
// across transient connection failures. Messages are processed one at a
// time: with
// prefetch 1 the broker round-robins deliveries across every worker
// process bound to the same queue.
func (c *RabbitConsumer) Consume(ctx context.Context, handler HandlerFunc) error {
	ctx = logging.WithServiceName(ctx, c.serviceName)

	for {
		err := c.run(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.isClosed() {
			return err
		}
		if isTopologyConflict(err) {
			return err
		}
		c.logger.WarnwCtx(ctx, "Consumer connection lost, reconnecting",
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *RabbitConsumer) run(ctx context.Context, handler HandlerFunc) error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("consumer dial %s failed: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return errors.New("broker: consumer is closed")
	}
	c.conn = conn
	c.mu.Unlock()

	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("consumer channel open failed: %w", err)
	}

	if err := declareTopology(ch, c.cfg); err != nil {
		return err
	}

	// Prefetch bounds unacked deliveries per channel. One at a time is
	// the fairness mechanism across competing worker processes.
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming from %s: %w", c.cfg.Queue, err)
	}

	notify := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.logger.InfowCtx(ctx, "Consumer listening",
		"queue", c.cfg.Queue,
		"exchange", c.cfg.Exchange,
		"prefetch", c.cfg.Prefetch,
	)

	for {
		select {
		case <-ctx.Done():
			// Deliveries are handled inline, so nothing is in flight
			// here; closing the connection lets unacked redeliver.
			return ctx.Err()
		case amqpErr := <-notify:
			if amqpErr == nil {
				return errors.New("consumer connection closed")
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("consumer delivery channel closed")
			}
			c.handleDelivery(ctx, d, handler)
		}
	}
}

// handleDelivery decodes and dispatches one message, then always
// acknowledges. Unparseable bodies cannot become parseable on
// redelivery, and a failing handler must not cause a redelivery loop;
// both outcomes are logged instead.
func (c *RabbitConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler HandlerFunc) {
	ctx = tracing.ExtractTraceContext(ctx, d.Headers)
	metrics.MessagesConsumedTotal.WithLabelValues(d.RoutingKey).Inc()

	env, err := models.ParseEnvelope(d.Body)
	if err != nil {
		metrics.MessagesDroppedTotal.WithLabelValues("malformed").Inc()
		c.logger.WarnwCtx(ctx, "Dropping unparseable message",
			"error", err,
			"routing_key", d.RoutingKey,
		)
		c.ack(ctx, d)
		return
	}

	msgCtx := logging.WithEvent(ctx, env.Event)
	if taskID := env.TaskID(); taskID != "" {
		msgCtx = logging.WithTaskID(msgCtx, taskID)
	}

	if err := c.dispatch(msgCtx, env, handler); err != nil {
		metrics.ProcessingFailuresTotal.WithLabelValues(env.Event).Inc()
		c.logger.ErrorwCtx(msgCtx, "Message processing failed, acknowledging anyway",
			"error", err,
		)
	}

	c.ack(msgCtx, d)
}

func (c *RabbitConsumer) dispatch(ctx context.Context, env models.EventEnvelope, handler HandlerFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()
	return handler(ctx, env)
}

func (c *RabbitConsumer) ack(ctx context.Context, d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		c.logger.ErrorwCtx(ctx, "Failed to acknowledge message", "error", err)
	}
}

func (c *RabbitConsumer) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *RabbitConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return err
		}
	}
	return nil
}
