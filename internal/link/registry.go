// ABOUTME: Per-topic subscriber registry with ordered delivery and panic isolation
// ABOUTME: Subscription ids give O(1) unsubscribe; delivery follows subscription order

package link

import (
	"container/list"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Handler receives payloads published to a subscribed topic. Handlers run
// synchronously on the link's dispatch path: a handler that blocks stalls
// delivery for the whole link, and re-entering Connect, Disconnect, or
// Request from inside a handler deadlocks. Spawn a goroutine for that.
type Handler func(topic string, payload json.RawMessage)

// subscription is one registered handler on one topic.
type subscription struct {
	id      string
	fn      Handler
	element *list.Element
}

// topicSubs holds a topic's handlers in subscription order with O(1) lookup
// by subscription id.
type topicSubs struct {
	order *list.List // of *subscription, oldest first
	byID  map[string]*subscription
}

// registry fans inbound event frames out to topic subscribers. It lives for
// the lifetime of the Link, across reconnects.
type registry struct {
	mu     sync.RWMutex
	topics map[string]*topicSubs
	logger *slog.Logger
}

func newRegistry(logger *slog.Logger) *registry {
	return &registry{
		topics: make(map[string]*topicSubs),
		logger: logger,
	}
}

// subscribe registers fn for a topic and returns the subscription id used to
// remove exactly this registration.
func (r *registry) subscribe(topic string, fn Handler) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.topics[topic]
	if !ok {
		ts = &topicSubs{
			order: list.New(),
			byID:  make(map[string]*subscription),
		}
		r.topics[topic] = ts
	}

	sub := &subscription{
		id: uuid.New().String(),
		fn: fn,
	}
	sub.element = ts.order.PushBack(sub)
	ts.byID[sub.id] = sub

	r.logger.Debug("subscribed", "topic", topic, "subscription_id", sub.id)
	return sub.id
}

// unsubscribe removes one registration. After it returns, the handler
// receives no further deliveries, including publishes already in flight.
func (r *registry) unsubscribe(topic, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.topics[topic]
	if !ok {
		return false
	}
	sub, ok := ts.byID[id]
	if !ok {
		return false
	}

	ts.order.Remove(sub.element)
	delete(ts.byID, id)
	if ts.order.Len() == 0 {
		delete(r.topics, topic)
	}

	r.logger.Debug("unsubscribed", "topic", topic, "subscription_id", id)
	return true
}

// publish delivers payload to every handler subscribed to topic, in
// subscription order, and returns the number of deliveries. Each handler is
// re-checked against the registry immediately before its call so an
// unsubscribe that lands mid-batch suppresses the delivery. A panicking
// handler is recovered and logged; later handlers in the batch still run.
func (r *registry) publish(topic string, payload json.RawMessage) int {
	r.mu.RLock()
	ts, ok := r.topics[topic]
	if !ok {
		r.mu.RUnlock()
		return 0
	}
	ids := make([]string, 0, ts.order.Len())
	for e := ts.order.Front(); e != nil; e = e.Next() {
		ids = append(ids, e.Value.(*subscription).id)
	}
	r.mu.RUnlock()

	delivered := 0
	for _, id := range ids {
		r.mu.RLock()
		var fn Handler
		if ts, ok := r.topics[topic]; ok {
			if sub, ok := ts.byID[id]; ok {
				fn = sub.fn
			}
		}
		r.mu.RUnlock()

		if fn == nil {
			continue
		}
		r.invoke(topic, id, fn, payload)
		delivered++
	}
	return delivered
}

// invoke runs one handler behind a recover so a panic cannot take down the
// dispatch goroutine or the rest of the batch.
func (r *registry) invoke(topic, id string, fn Handler, payload json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("subscriber panicked",
				"topic", topic,
				"subscription_id", id,
				"panic", rec,
			)
		}
	}()
	fn(topic, payload)
}

// subscriberCount reports the number of handlers on a topic.
func (r *registry) subscriberCount(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ts, ok := r.topics[topic]
	if !ok {
		return 0
	}
	return ts.order.Len()
}
