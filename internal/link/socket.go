// ABOUTME: Socket and Dialer seams between the link and the websocket transport
// ABOUTME: Production dialing uses coder/websocket; tests inject an in-memory socket

package link

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// maxFrameBytes bounds a single inbound frame. Browser screenshot events are
// the largest payloads crossing the link.
const maxFrameBytes = 8 << 20

// Socket is the minimal connection surface the link drives. Implementations
// must support one concurrent reader; writes may come from multiple
// goroutines.
type Socket interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens a Socket to a gateway endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Socket, error)
}

// NewWebsocketDialer returns the production Dialer, carrying one JSON frame
// per websocket text message.
func NewWebsocketDialer() Dialer {
	return websocketDialer{}
}

type websocketDialer struct{}

func (websocketDialer) Dial(ctx context.Context, endpoint string) (Socket, error) {
	conn, _, err := websocket.Dial(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", endpoint, err)
	}
	conn.SetReadLimit(maxFrameBytes)
	return &websocketSocket{conn: conn}, nil
}

type websocketSocket struct {
	conn *websocket.Conn
}

func (s *websocketSocket) Read(ctx context.Context) ([]byte, error) {
	typ, data, err := s.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	if typ != websocket.MessageText {
		return nil, fmt.Errorf("unexpected %v message from gateway", typ)
	}
	return data, nil
}

func (s *websocketSocket) Write(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *websocketSocket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
