package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/boxrec/boxrec/internal/errors"
	"github.com/boxrec/boxrec/internal/logger"
)

// DefaultBufferSize is the per-consumer queue length.
const DefaultBufferSize = 64

// Config holds event bus configuration.
type Config struct {
	BufferSize int
}

// DefaultConfig returns the default event bus configuration.
func DefaultConfig() *Config {
	return &Config{BufferSize: DefaultBufferSize}
}

// EventBus fans status events out to consumers. Each consumer has its own
// queue and goroutine, so a slow consumer only loses its own events and
// every consumer sees events in publish order.
type EventBus struct {
	bufferSize int

	mu        sync.Mutex
	consumers []*subscription
	closed    bool
	wg        sync.WaitGroup

	stats struct {
		received, processed, dropped, consumerErrors atomic.Uint64
	}

	log logger.Logger
}

type subscription struct {
	consumer EventConsumer
	ch       chan StatusEvent
}

// NewEventBus creates a bus. A nil config uses DefaultConfig.
func NewEventBus(config *Config, log logger.Logger) *EventBus {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultBufferSize
	}
	if log == nil {
		log = logger.Global().Module("events")
	}
	return &EventBus{bufferSize: config.BufferSize, log: log}
}

// RegisterConsumer adds a consumer and starts its delivery goroutine.
func (eb *EventBus) RegisterConsumer(consumer EventConsumer) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		return errors.Newf("event bus is shut down").
			Component("events").
			Category(errors.CategoryState).
			Build()
	}
	for _, existing := range eb.consumers {
		if existing.consumer.Name() == consumer.Name() {
			return errors.Newf("consumer %s already registered", consumer.Name()).
				Component("events").
				Category(errors.CategoryConflict).
				Build()
		}
	}

	sub := &subscription{consumer: consumer, ch: make(chan StatusEvent, eb.bufferSize)}
	eb.consumers = append(eb.consumers, sub)
	eb.wg.Add(1)
	go eb.deliver(sub)

	eb.log.Debug("registered event consumer", logger.String("consumer", consumer.Name()))
	return nil
}

// TryPublish offers event to every consumer without blocking. It returns
// false when at least one consumer queue was full and dropped the event.
func (eb *EventBus) TryPublish(event StatusEvent) bool {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()
	if eb.closed {
		return false
	}

	eb.stats.received.Add(1)
	delivered := true
	for _, sub := range eb.consumers {
		select {
		case sub.ch <- event:
		default:
			delivered = false
			eb.stats.dropped.Add(1)
			eb.log.Debug("event dropped due to full buffer",
				logger.String("consumer", sub.consumer.Name()),
				logger.String("status", event.Status.String()))
		}
	}
	return delivered
}

func (eb *EventBus) deliver(sub *subscription) {
	defer eb.wg.Done()
	for event := range sub.ch {
		eb.process(sub.consumer, event)
	}
}

func (eb *EventBus) process(consumer EventConsumer, event StatusEvent) {
	defer func() {
		if r := recover(); r != nil {
			eb.stats.consumerErrors.Add(1)
			eb.log.Error("consumer panicked",
				logger.String("consumer", consumer.Name()),
				logger.Any("panic", r))
		}
	}()
	if err := consumer.ProcessEvent(event); err != nil {
		eb.stats.consumerErrors.Add(1)
		eb.log.Warn("consumer error",
			logger.String("consumer", consumer.Name()),
			logger.String("status", event.Status.String()),
			logger.Error(err))
		return
	}
	eb.stats.processed.Add(1)
}

// Shutdown stops accepting events, lets consumers drain their queues and
// waits up to timeout for them to finish.
func (eb *EventBus) Shutdown(timeout time.Duration) error {
	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		return nil
	}
	eb.closed = true
	for _, sub := range eb.consumers {
		close(sub.ch)
	}
	eb.mu.Unlock()

	done := make(chan struct{})
	go func() {
		eb.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return errors.Newf("event bus shutdown timeout exceeded").
			Component("events").
			Category(errors.CategoryTimeout).
			Context("timeout", timeout.String()).
			Build()
	}
}

// GetStats returns current event bus statistics.
func (eb *EventBus) GetStats() EventBusStats {
	return EventBusStats{
		EventsReceived:  eb.stats.received.Load(),
		EventsProcessed: eb.stats.processed.Load(),
		EventsDropped:   eb.stats.dropped.Load(),
		ConsumerErrors:  eb.stats.consumerErrors.Load(),
	}
}
