// ABOUTME: Liveness heartbeat that pings the gateway while the link is connected
// ABOUTME: Never double-started; starting again stops the prior ticker first

package link

import (
	"log/slog"
	"sync"
	"time"
)

// heartbeat emits a probe at a fixed interval so idle-timeout middleboxes do
// not silently close the socket. No reply is awaited; a dead socket surfaces
// through the read loop instead.
type heartbeat struct {
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
}

func newHeartbeat(interval time.Duration, logger *slog.Logger) *heartbeat {
	return &heartbeat{
		interval: interval,
		logger:   logger,
	}
}

// start begins ticking, stopping any previous ticker first. The send func is
// invoked once per interval until it returns an error or halt is called.
func (h *heartbeat) start(send func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopLocked()
	stop := make(chan struct{})
	h.stop = stop
	go h.run(stop, send)
}

// halt stops the ticker. Safe to call when not running.
func (h *heartbeat) halt() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

func (h *heartbeat) stopLocked() {
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
}

// running reports whether a ticker goroutine is active.
func (h *heartbeat) running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stop != nil
}

func (h *heartbeat) run(stop chan struct{}, send func() error) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := send(); err != nil {
				h.logger.Debug("heartbeat send failed", "error", err)
				return
			}
		}
	}
}
