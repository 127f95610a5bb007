// Package bus provides the outbound work queue between the board and the
// messaging channels. Publishing never blocks; a single dispatcher
// goroutine executes the queued work in order.
package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Outbound message kinds.
const (
	KindDirect    = "direct"
	KindBroadcast = "broadcast"
)

var (
	ErrNoSubscriber = errors.New("bus: no subscriber for channel")
	ErrQueueFull    = errors.New("bus: outbound queue full")
	ErrStopped      = errors.New("bus: dispatcher stopped")
)

// InboundMessage represents a message received by a channel.
type InboundMessage struct {
	Channel    string    `json:"channel"`
	SenderID   uint64    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// OutboundMessage represents work for a channel. Recipient is a contact
// display name and is empty for broadcasts.
type OutboundMessage struct {
	Channel   string `json:"channel"`
	Kind      string `json:"kind"`
	Recipient string `json:"recipient,omitempty"`
	TraceID   string `json:"trace_id"`
	Content   string `json:"content"`
}

// OutboundHandler executes a message on the dispatcher goroutine.
type OutboundHandler func(ctx context.Context, msg *OutboundMessage) error

// Delivery is the handle returned by PublishOutbound. It completes once the
// dispatcher has run the message.
type Delivery struct {
	TraceID string

	once sync.Once
	done chan struct{}
	err  error
}

func newDelivery(traceID string) *Delivery {
	return &Delivery{TraceID: traceID, done: make(chan struct{})}
}

// Failed returns a delivery that is already complete with err.
func Failed(traceID string, err error) *Delivery {
	d := newDelivery(traceID)
	d.complete(err)
	return d
}

func (d *Delivery) complete(err error) {
	d.once.Do(func() {
		d.err = err
		close(d.done)
	})
}

// Done is closed when the delivery has completed.
func (d *Delivery) Done() <-chan struct{} { return d.done }

// Err returns the outcome; nil while still pending.
func (d *Delivery) Err() error {
	select {
	case <-d.done:
		return d.err
	default:
		return nil
	}
}

// Wait blocks until completion or ctx is done.
func (d *Delivery) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type envelope struct {
	msg      *OutboundMessage
	delivery *Delivery
}

// MessageBus decouples callers from the channel execution context.
type MessageBus struct {
	outbound chan envelope
	subs     map[string]OutboundHandler
	mu       sync.RWMutex

	stopOnce sync.Once
	stopped  chan struct{}
}

// NewMessageBus creates a new message bus.
func NewMessageBus() *MessageBus {
	return &MessageBus{
		outbound: make(chan envelope, 100),
		subs:     make(map[string]OutboundHandler),
		stopped:  make(chan struct{}),
	}
}

// PublishOutbound queues msg and returns immediately.
func (b *MessageBus) PublishOutbound(msg *OutboundMessage) *Delivery {
	if msg.TraceID == "" {
		msg.TraceID = uuid.NewString()
	}
	d := newDelivery(msg.TraceID)

	select {
	case <-b.stopped:
		d.complete(ErrStopped)
		return d
	default:
	}
	select {
	case b.outbound <- envelope{msg: msg, delivery: d}:
		// Lost a race with the dispatcher exiting.
		select {
		case <-b.stopped:
			b.stop()
		default:
		}
	default:
		slog.Warn("Outbound queue full", "channel", msg.Channel, "trace_id", msg.TraceID)
		d.complete(ErrQueueFull)
	}
	return d
}

// Subscribe registers the handler for a channel, replacing any previous one.
func (b *MessageBus) Subscribe(channel string, handler OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[channel] = handler
}

// DispatchOutbound runs the outbound dispatcher until ctx is cancelled.
// This should be run as a goroutine; only one may run per bus.
func (b *MessageBus) DispatchOutbound(ctx context.Context) error {
	defer b.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env := <-b.outbound:
			env.delivery.complete(b.dispatch(ctx, env.msg))
		}
	}
}

func (b *MessageBus) dispatch(ctx context.Context, msg *OutboundMessage) (err error) {
	b.mu.RLock()
	handler := b.subs[msg.Channel]
	b.mu.RUnlock()
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrNoSubscriber, msg.Channel)
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Outbound handler panic", "channel", msg.Channel, "trace_id", msg.TraceID, "panic", r)
			err = fmt.Errorf("outbound handler panic: %v", r)
		}
	}()
	return handler(ctx, msg)
}

// stop fails everything still queued so no caller waits forever.
func (b *MessageBus) stop() {
	b.stopOnce.Do(func() { close(b.stopped) })
	for {
		select {
		case env := <-b.outbound:
			env.delivery.complete(ErrStopped)
		default:
			return
		}
	}
}
