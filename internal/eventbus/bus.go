// Package eventbus fans strip events out to subscribers on a bounded worker
// pool so slow consumers (MQTT, websockets, Lua hooks) never stall the frame
// loop.
package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType names a kind of strip event.
type EventType string

const (
	// EventTypeState is published after a command changed a light.
	EventTypeState EventType = "state"
	// EventTypeScene is published after a scene was applied to all lights.
	EventTypeScene EventType = "scene"
	// EventTypeTransition is published when the strip starts or stops fading.
	EventTypeTransition EventType = "transition"
	// EventTypeSaved is published after light state was persisted.
	EventTypeSaved EventType = "saved"
)

// AllTypes lists every event type, for subscribers that want everything.
var AllTypes = []EventType{EventTypeState, EventTypeScene, EventTypeTransition, EventTypeSaved}

// Default configuration
const (
	DefaultWorkerCount = 2
	DefaultQueueSize   = 256
)

// Event is one strip event. Light is 0 for events that are not tied to a
// single light.
type Event struct {
	Type  EventType      `json:"type"`
	Light int            `json:"light,omitempty"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler handles one event.
type Handler func(Event)

type work struct {
	event   Event
	handler Handler
}

// Bus routes events to handlers through a bounded worker pool.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler

	workQueue chan work
	wg        sync.WaitGroup

	// closing is closed before workQueue so publishers never send on a
	// closed channel.
	closing   chan struct{}
	closeOnce sync.Once
}

// New creates a bus with the default worker count and queue size.
func New() *Bus {
	return NewWithConfig(DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a bus with custom worker count and queue size.
func NewWithConfig(workerCount, queueSize int) *Bus {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	b := &Bus{
		handlers:  make(map[EventType][]Handler),
		workQueue: make(chan work, queueSize),
		closing:   make(chan struct{}),
	}

	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	log.Debug().Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus started")
	return b
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()

	for w := range b.workQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("event_type", string(w.event.Type)).
						Int("worker", id).
						Msg("Event handler panicked")
				}
			}()
			w.handler(w.event)
		}()
	}
}

// Subscribe registers a handler for the given event types. With no types the
// handler receives every event.
func (b *Bus) Subscribe(handler Handler, types ...EventType) {
	if len(types) == 0 {
		types = AllTypes
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range types {
		b.handlers[t] = append(b.handlers[t], handler)
	}
}

// Publish queues the event for every subscribed handler. It never blocks:
// when the queue is full or the bus is closing the event is dropped.
func (b *Bus) Publish(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}

	// The read lock is held while sending so Close cannot close workQueue
	// underneath us.
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.closing:
		return
	default:
	}

	for _, handler := range b.handlers[event.Type] {
		select {
		case b.workQueue <- work{event: event, handler: handler}:
		default:
			log.Warn().
				Str("event_type", string(event.Type)).
				Int("light", event.Light).
				Msg("Event bus queue full, dropping event")
		}
	}
}

// Close stops accepting events and waits for queued handlers to finish or
// for ctx to expire.
func (b *Bus) Close(ctx context.Context) {
	first := false
	b.closeOnce.Do(func() {
		close(b.closing)
		first = true
	})
	if !first {
		return
	}

	b.mu.Lock()
	close(b.workQueue)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Msg("Event bus workers stopped")
	case <-ctx.Done():
		log.Warn().Msg("Event bus shutdown timed out, some events may be lost")
	}
}
