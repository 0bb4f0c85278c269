// Package eventbus delivers capture events from the middleware post-action
// to whatever the hosting application does with them. The capture core
// itself never publishes; the stock PublishAction in the middleware package
// is the collaborator that reads the exchange accessors and hands the
// result here.
package eventbus

import (
	"context"
	"time"
)

// Event is one completed exchange as observed by the capture middleware.
// Bodies are the bounded mirrors, never the full payloads.
type Event struct {
	RequestID     string        `json:"request_id"`
	CorrelationID string        `json:"correlation_id,omitempty"`
	Method        string        `json:"method"`
	Path          string        `json:"path"`
	Status        int           `json:"status"`
	Duration      time.Duration `json:"duration"`

	RequestBody      []byte `json:"request_body,omitempty"`
	RequestText      string `json:"request_text,omitempty"`
	RequestUnits     int64  `json:"request_units"`
	RequestTruncated bool   `json:"request_truncated"`
	RequestConsumed  bool   `json:"request_consumed"`

	ResponseBody      []byte `json:"response_body,omitempty"`
	ResponseUnits     int64  `json:"response_units"`
	ResponseTruncated bool   `json:"response_truncated"`
}

// EventBus is a simple interface for publishing events to subscribers.
type EventBus interface {
	Publish(ctx context.Context, evt Event)
	Subscribe() <-chan Event
}

// InMemoryEventBus is a basic EventBus implementation backed by a buffered
// channel.
type InMemoryEventBus struct {
	ch chan Event
}

// NewInMemoryEventBus creates a new in-memory event bus with the given
// buffer size.
func NewInMemoryEventBus(bufferSize int) *InMemoryEventBus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &InMemoryEventBus{ch: make(chan Event, bufferSize)}
}

// Publish sends an event to the bus without blocking if the buffer is full.
func (b *InMemoryEventBus) Publish(ctx context.Context, evt Event) {
	select {
	case b.ch <- evt:
	default:
		// drop event if buffer is full
	}
}

// Subscribe returns a channel that receives events published to the bus.
// Multiple subscribers read from the same channel.
func (b *InMemoryEventBus) Subscribe() <-chan Event {
	return b.ch
}
