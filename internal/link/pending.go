// ABOUTME: Table of in-flight correlated requests keyed by request id.
// ABOUTME: Guarantees each request observes exactly one outcome.

package link

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// outcome is the terminal result of one correlated request: either a payload
// or an error, never both.
type outcome struct {
	payload json.RawMessage
	err     error
}

// pendingTable tracks requests awaiting a correlated response. An entry is
// removed exactly once, by whichever of response, timeout, or link teardown
// fires first; the entry is gone before the waiting caller observes the
// outcome, so no request can resolve twice.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]chan outcome
	logger  *slog.Logger
}

func newPendingTable(logger *slog.Logger) *pendingTable {
	return &pendingTable{
		entries: make(map[string]chan outcome),
		logger:  logger,
	}
}

// add registers a request id and returns the channel its outcome will arrive
// on. The channel is buffered so the delivering side never blocks.
func (t *pendingTable) add(id string) chan outcome {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan outcome, 1)
	t.entries[id] = ch
	return ch
}

// take removes an entry, claiming the right to deliver its outcome. It
// returns false when the id is unknown or already claimed.
func (t *pendingTable) take(id string) (chan outcome, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return ch, ok
}

// resolve delivers a successful response payload to the waiting request.
// Responses for unknown ids (typically requests that already timed out) are
// dropped.
func (t *pendingTable) resolve(id string, payload json.RawMessage) {
	ch, ok := t.take(id)
	if !ok {
		t.logger.Debug("dropping response for unknown request", "request_id", id)
		return
	}
	ch <- outcome{payload: payload}
}

// fail delivers an error to the waiting request.
func (t *pendingTable) fail(id string, err error) {
	ch, ok := t.take(id)
	if !ok {
		t.logger.Debug("dropping failure for unknown request", "request_id", id)
		return
	}
	ch <- outcome{err: err}
}

// failAll sweeps the table, delivering err to every outstanding request.
// Called when the socket closes so no caller is left to ride out its timeout.
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	swept := t.entries
	t.entries = make(map[string]chan outcome)
	t.mu.Unlock()

	for id, ch := range swept {
		ch <- outcome{err: err}
		t.logger.Debug("failed pending request", "request_id", id, "error", err)
	}
}

// size reports the number of outstanding requests.
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
