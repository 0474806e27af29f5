// Copyright (C) 2025 Huddle Eco (engineering@huddle.eco)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package progress

import (
	"sync"

	"github.com/google/uuid"

	"github.com/huddleeco/siteforge/services/forge/datatypes"
)

// subscriberBuffer is the per-subscriber channel depth. A consumer
// that falls this far behind is dropped rather than allowed to block
// the producer.
const subscriberBuffer = 64

// Hub is the progress channel: one producer (the batch orchestrator),
// any number of consumers. A consumer that disconnects or stops
// reading mid-batch is detected and removed; writes to it are
// silently dropped and never abort the batch.
//
// Thread Safety: safe for concurrent use. The subscriber set is the
// only resource touched by multiple goroutines and is guarded here.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]chan datatypes.ProgressEvent
	closed      bool
	history     []datatypes.ProgressEvent
}

// NewHub creates an open hub with no subscribers.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]chan datatypes.ProgressEvent),
	}
}

// Subscribe registers a consumer and returns its channel plus an
// unsubscribe function. Events already published are replayed first
// so late consumers see the full stream. Subscribing to a closed hub
// returns a channel that delivers the history and then closes.
func (h *Hub) Subscribe() (<-chan datatypes.ProgressEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	replay := len(h.history)
	ch := make(chan datatypes.ProgressEvent, subscriberBuffer+replay)
	for _, ev := range h.history {
		ch <- ev
	}

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := uuid.New().String()
	h.subscribers[id] = ch

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish broadcasts one event to every subscriber. A subscriber
// whose buffer is full is removed and its channel closed; the publish
// never blocks and never fails.
func (h *Hub) Publish(event datatypes.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.history = append(h.history, event)
	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			delete(h.subscribers, id)
			close(ch)
		}
	}
}

// Close closes every subscriber channel and marks the hub closed.
// Publish becomes a no-op; Subscribe still replays history.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}

// SubscriberCount returns the current number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// History returns a copy of every event published so far.
func (h *Hub) History() []datatypes.ProgressEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]datatypes.ProgressEvent, len(h.history))
	copy(out, h.history)
	return out
}
