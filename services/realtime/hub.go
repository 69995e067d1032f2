package realtime

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is one notification frame sent to dashboard subscribers
type Event struct {
	Channel string      `json:"channel"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// Publisher accepts events without blocking the caller
type Publisher interface {
	Publish(event Event)
}

// DropRecorder is notified whenever an event is dropped
type DropRecorder interface {
	RealtimeDropped()
}

// Config holds configuration for the Hub
type Config struct {
	BufferSize           int // Size of the inbound event channel
	SubscriberBufferSize int // Size of each subscriber's outbound channel
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:           256,
		SubscriberBufferSize: 32,
	}
}

// Subscription receives broadcast events until it is closed
type Subscription struct {
	id     uint64
	events chan Event
	hub    *Hub
	once   sync.Once
}

// Events returns the receive channel. It is closed when the subscription or hub closes.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close removes the subscription from the hub
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub fans published events out to every subscriber from a single broadcaster goroutine.
// A full inbound buffer or a slow subscriber drops the event.
type Hub struct {
	logger  *zap.Logger
	drops   DropRecorder
	config  Config
	events  chan Event
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	started bool
	stopped bool
}

// NewHub creates a new Hub instance. drops may be nil.
func NewHub(logger *zap.Logger, drops DropRecorder, config Config) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultConfig().SubscriberBufferSize
	}
	return &Hub{
		logger: logger,
		drops:  drops,
		config: config,
		events: make(chan Event, config.BufferSize),
		done:   make(chan struct{}),
		subs:   make(map[uint64]*Subscription),
	}
}

// Start starts the broadcaster goroutine
func (h *Hub) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return fmt.Errorf("realtime hub already started")
	}

	h.wg.Add(1)
	go h.broadcast()

	h.started = true
	h.logger.Info("started realtime hub", zap.Int("buffer_size", h.config.BufferSize))
	return nil
}

// Stop stops the broadcaster and closes every subscription
func (h *Hub) Stop(timeout time.Duration) error {
	h.mu.Lock()
	if !h.started || h.stopped {
		h.mu.Unlock()
		return fmt.Errorf("realtime hub not running")
	}
	h.stopped = true
	h.mu.Unlock()

	close(h.done)

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(timeout):
		return fmt.Errorf("realtime hub stop timeout after %v", timeout)
	}

	h.mu.Lock()
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.events)
	}
	h.mu.Unlock()

	h.logger.Info("realtime hub stopped")
	return nil
}

// Publish enqueues an event for broadcast. It never blocks.
func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}

	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.events <- event:
	default:
		h.logger.Warn("realtime buffer full, dropping event",
			zap.String("channel", event.Channel),
			zap.String("event", event.Event))
		if h.drops != nil {
			h.drops.RealtimeDropped()
		}
	}
}

// Subscribe registers a new subscriber
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stopped {
		return nil, fmt.Errorf("realtime hub stopped")
	}

	h.nextID++
	sub := &Subscription{
		id:     h.nextID,
		events: make(chan Event, h.config.SubscriberBufferSize),
		hub:    h,
	}
	h.subs[sub.id] = sub
	return sub, nil
}

// SubscriberCount returns the number of live subscriptions
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) unsubscribe(sub *Subscription) {
	sub.once.Do(func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[sub.id]; ok {
			delete(h.subs, sub.id)
			close(sub.events)
		}
	})
}

func (h *Hub) broadcast() {
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			return
		case event := <-h.events:
			h.fanOut(event)
		}
	}
}

func (h *Hub) fanOut(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		select {
		case sub.events <- event:
		default:
			h.logger.Debug("subscriber lagging, dropping event",
				zap.Uint64("subscriber_id", sub.id),
				zap.String("event", event.Event))
			if h.drops != nil {
				h.drops.RealtimeDropped()
			}
		}
	}
}
