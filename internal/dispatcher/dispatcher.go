package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pitlane/kart/internal/queue"
)

// ErrUnknownCommand is returned by Dispatch for commands without a handler.
var ErrUnknownCommand = errors.New("unknown command")

// Event represents an incoming input or engine command.
type Event struct {
	Command   string
	Args      []string
	Payload   any
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	queued     bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Queued defers the handler until the owner calls Drain. Events keep their
// dispatch order across all queued commands.
func Queued() Option {
	return func(c *config) {
		c.queued = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type pendingEvent struct {
	event   Event
	handler HandlerFunc
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	pending  *queue.Queue[pendingEvent]

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter

	mu      sync.RWMutex
	buffers map[string]chan Event
}

// New creates a Dispatcher. Metrics go to the global meter, which is a no-op
// until an OTel provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		pending:  queue.New[pendingEvent](),
		logger:   logger,
	}

	if err := d.instrument(meter()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) instrument(m metric.Meter) error {
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&d.processed, "dispatcher.events.processed", "Events handled"},
		{&d.dropped, "dispatcher.events.dropped", "Events rejected by a full buffer"},
		{&d.failed, "dispatcher.events.failed", "Deferred events whose handler returned an error"},
	}
	for _, c := range counters {
		counter, err := m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return fmt.Errorf("create %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	var err error
	d.queueSize, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Events waiting in buffers and the tick queue"))
	if err != nil {
		return fmt.Errorf("create dispatcher.queue.size: %w", err)
	}
	_, err = m.RegisterCallback(d.observeQueues, d.queueSize)
	if err != nil {
		return fmt.Errorf("register queue callback: %w", err)
	}
	return nil
}

func (d *Dispatcher) observeQueues(_ context.Context, o metric.Observer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for cmd, buf := range d.buffers {
		o.ObserveInt64(d.queueSize, int64(len(buf)),
			metric.WithAttributes(attribute.String("command", cmd)))
	}
	o.ObserveInt64(d.queueSize, int64(d.pending.Len()),
		metric.WithAttributes(attribute.String("command", "tick")))
	return nil
}

// Register adds a handler for the given command with optional configuration.
// Queued takes precedence over Buffered.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	switch {
	case cfg.queued:
		handler = d.withQueue(handler)
	case cfg.bufferSize > 0:
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	}

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.handlers[command] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Pending is the number of queued events waiting for Drain.
func (d *Dispatcher) Pending() int {
	return d.pending.Len()
}

// Drain runs every queued event on the calling goroutine, in dispatch order,
// and returns how many ran. Handler errors are logged and counted.
func (d *Dispatcher) Drain() int {
	items := d.pending.Drain()
	ctx := context.Background()
	for _, p := range items {
		cmdAttr := metric.WithAttributes(attribute.String("command", p.event.Command))
		if _, err := p.handler(p.event); err != nil {
			d.failed.Add(ctx, 1, cmdAttr)
			d.logger.Error("queued event failed", "command", p.event.Command, "error", err)
		}
		d.processed.Add(ctx, 1, cmdAttr)
	}
	return len(items)
}

func (d *Dispatcher) withQueue(h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		d.pending.Push(pendingEvent{event: e, handler: h})
		return "queued", nil
	}
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := attribute.String("command", command)

	go func() {
		for e := range buffer {
			if _, err := h(e); err != nil {
				d.failed.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
				d.logger.Error("buffered event failed", "command", command, "error", err)
			}
			d.processed.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
		}
	}()

	if blocking {
		return func(e Event) (any, error) {
			buffer <- e
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
