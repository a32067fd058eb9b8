package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"videoinsight/internal/logging"
	"videoinsight/internal/services"
)

const (
	defaultQueueSize       = 256
	defaultDeliveryTimeout = 5 * time.Second
	defaultCriticalWait    = 2 * time.Second
)

// Observer receives broadcast messages. Deliver must honour ctx; a returned
// error removes the observer from the hub.
type Observer interface {
	ID() string
	Deliver(ctx context.Context, msg Message) error
}

type funcObserver struct {
	id string
	fn func(context.Context, Message) error
}

func (o funcObserver) ID() string { return o.id }

func (o funcObserver) Deliver(ctx context.Context, msg Message) error { return o.fn(ctx, msg) }

// ObserverFunc adapts a function into an Observer with the given id.
func ObserverFunc(id string, fn func(context.Context, Message) error) Observer {
	return funcObserver{id: id, fn: fn}
}

// Option customizes a Hub.
type Option func(*Hub)

// WithQueueSize bounds the number of published messages awaiting dispatch.
func WithQueueSize(size int) Option {
	return func(h *Hub) {
		if size > 0 {
			h.queueSize = size
		}
	}
}

// WithDeliveryTimeout bounds how long a single observer may take per message.
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(h *Hub) {
		if timeout > 0 {
			h.deliveryTimeout = timeout
		}
	}
}

// WithCriticalWait bounds how long Publish blocks on a full queue for
// terminal and hand-off messages before dropping them.
func WithCriticalWait(wait time.Duration) Option {
	return func(h *Hub) {
		if wait > 0 {
			h.criticalWait = wait
		}
	}
}

// Hub fans messages out to a dynamic set of observers. Delivery is
// best-effort: an observer whose delivery fails is dropped after the pass
// that observed the failure, and the remaining observers still receive the
// message.
type Hub struct {
	mu        sync.Mutex
	observers []Observer

	queueSize       int
	deliveryTimeout time.Duration
	criticalWait    time.Duration
	queue           chan Message
	dropped         atomic.Uint64
	logger          *slog.Logger
}

// NewHub constructs a hub. Call Run to start the dispatch loop that drains
// messages handed to Publish.
func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		queueSize:       defaultQueueSize,
		deliveryTimeout: defaultDeliveryTimeout,
		criticalWait:    defaultCriticalWait,
		logger:          logging.NewComponentLogger(logger, "broadcast"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.queue = make(chan Message, h.queueSize)
	return h
}

// Subscribe registers an observer. Registering the same id twice is a no-op.
// No backlog is replayed.
func (h *Hub) Subscribe(o Observer) {
	if o == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, existing := range h.observers {
		if existing.ID() == o.ID() {
			return
		}
	}
	h.observers = append(h.observers, o)
}

// Unsubscribe removes an observer. Removing an absent observer is a no-op.
func (h *Hub) Unsubscribe(o Observer) {
	if o == nil {
		return
	}
	h.removeIDs(map[string]struct{}{o.ID(): {}})
}

// Len reports the number of registered observers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.observers)
}

// SendToOne delivers msg to a single observer. A failed delivery is logged
// and the observer unsubscribed; the caller only learns whether the observer
// is still attached.
func (h *Hub) SendToOne(ctx context.Context, o Observer, msg Message) bool {
	if o == nil {
		return false
	}
	if err := h.deliver(ctx, o, msg); err != nil {
		h.logger.Debug("observer removed after failed direct delivery",
			logging.String("observer", o.ID()),
			logging.String("message_type", string(msg.Type)),
			logging.Error(err),
		)
		h.Unsubscribe(o)
		return false
	}
	return true
}

// Broadcast delivers msg to every observer registered when the call starts.
// Observers that fail are removed once the pass completes. It returns the
// number of successful deliveries.
func (h *Hub) Broadcast(ctx context.Context, msg Message) int {
	h.mu.Lock()
	snapshot := append([]Observer(nil), h.observers...)
	h.mu.Unlock()

	delivered := 0
	var failed map[string]struct{}
	for _, o := range snapshot {
		if err := h.deliver(ctx, o, msg); err != nil {
			if failed == nil {
				failed = make(map[string]struct{})
			}
			failed[o.ID()] = struct{}{}
			h.logger.Debug("observer removed after failed delivery",
				logging.String("observer", o.ID()),
				logging.String("message_type", string(msg.Type)),
				logging.Error(err),
			)
			continue
		}
		delivered++
	}
	if len(failed) > 0 {
		h.removeIDs(failed)
	}
	return delivered
}

// Publish enqueues msg for the dispatch loop. Routine messages never block:
// when the queue is full they are dropped and false is returned. Terminal and
// hand-off messages wait up to the critical wait for room before the same
// drop applies.
func (h *Hub) Publish(msg Message) bool {
	select {
	case h.queue <- msg:
		return true
	default:
	}
	if msg.critical() {
		timer := time.NewTimer(h.criticalWait)
		defer timer.Stop()
		select {
		case h.queue <- msg:
			return true
		case <-timer.C:
		}
	}
	count := h.dropped.Add(1)
	err := services.Wrap(services.ErrBroadcastDelivery, "broadcast", "publish", "queue full", nil)
	logging.WarnWithContext(h.logger, "broadcast queue full; message dropped", "broadcast_dropped",
		logging.String("message_type", string(msg.Type)),
		logging.String(logging.FieldTaskID, msg.TaskID),
		logging.Int64("dropped_total", int64(count)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "raise events.queue_size or check for slow observers"),
		logging.String(logging.FieldImpact, "observers miss one event"),
	)
	return false
}

// Dropped reports how many published messages were discarded because the
// queue was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Run drains the publish queue until ctx ends, broadcasting messages in the
// order they were published. Cancelling ctx only stops the loop: a delivery
// already in progress keeps its own deadline, and messages still queued at
// shutdown are flushed.
func (h *Hub) Run(ctx context.Context) {
	deliverCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			h.Flush(deliverCtx)
			return
		case msg := <-h.queue:
			h.Broadcast(deliverCtx, msg)
		}
	}
}

// Flush broadcasts every message still queued and returns once the queue is
// empty. It must not run alongside Run; callers use it after Run has returned
// to deliver events published during shutdown.
func (h *Hub) Flush(ctx context.Context) {
	for {
		select {
		case msg := <-h.queue:
			h.Broadcast(ctx, msg)
		default:
			return
		}
	}
}

func (h *Hub) deliver(ctx context.Context, o Observer, msg Message) (err error) {
	ctx, cancel := context.WithTimeout(ctx, h.deliveryTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer %s panicked: %v", o.ID(), r)
		}
	}()
	if err := o.Deliver(ctx, msg); err != nil {
		return services.Wrap(services.ErrBroadcastDelivery, "broadcast", "deliver", o.ID(), err)
	}
	return nil
}

func (h *Hub) removeIDs(ids map[string]struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.observers[:0]
	for _, o := range h.observers {
		if _, drop := ids[o.ID()]; drop {
			continue
		}
		kept = append(kept, o)
	}
	clear(h.observers[len(kept):])
	h.observers = kept
}
