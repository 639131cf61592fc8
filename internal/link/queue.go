// ABOUTME: FIFO buffer for commands issued while the link is not connected
// ABOUTME: Drained exactly once on the transition into StateConnected

package link

import "github.com/2389/clawlink/internal/wire"

// outQueue buffers outbound frames submitted before authentication completes.
// It is not safe for concurrent use; the Link serializes access under its own
// mutex. Contents are dropped when the socket closes, so a frame is flushed
// at most once.
type outQueue struct {
	frames []*wire.Frame
}

// push appends a frame in submission order.
func (q *outQueue) push(f *wire.Frame) {
	q.frames = append(q.frames, f)
}

// drain returns the buffered frames in submission order and empties the
// queue.
func (q *outQueue) drain() []*wire.Frame {
	frames := q.frames
	q.frames = nil
	return frames
}

// clear drops all buffered frames and reports how many were lost.
func (q *outQueue) clear() int {
	n := len(q.frames)
	q.frames = nil
	return n
}

// size reports the number of buffered frames.
func (q *outQueue) size() int {
	return len(q.frames)
}
