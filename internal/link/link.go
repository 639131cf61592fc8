// ABOUTME: The Link: connection state machine, outbound queue, frame router,
// ABOUTME: and heartbeat multiplexed over a single gateway socket.

package link

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/clawlink/internal/dedupe"
	"github.com/2389/clawlink/internal/wire"
)

// Link errors.
var (
	ErrNotConnected   = errors.New("link not connected")
	ErrLinkClosed     = errors.New("link closed")
	ErrRequestTimeout = errors.New("request timed out")
	ErrNoEndpoint     = errors.New("no gateway endpoint configured")
)

// errStaleSocket stops a heartbeat whose session has been superseded.
var errStaleSocket = errors.New("stale socket")

// Defaults applied by New for zero Config values.
const (
	DefaultRequestTimeout    = 15 * time.Second
	DefaultHeartbeatInterval = 10 * time.Second
)

// Unknown frame discriminators are logged once per type within this window.
const (
	unknownFrameLogWindow = time.Minute
	unknownFrameLogLimit  = 64
)

// Credentials identify the operator to the gateway. Token is preferred; the
// email/password pair is the legacy fallback. Both may be set.
type Credentials struct {
	Token    string
	Email    string
	Password string
}

// CredentialSaver persists the endpoint and credentials applied by
// UpdateConfig so the next session can reconnect without prompting the
// operator.
type CredentialSaver interface {
	Save(ctx context.Context, endpoint string, creds Credentials) error
}

// Config carries the Link's construction parameters. Zero values get
// defaults: 15s request timeout, 10s heartbeat, the production websocket
// dialer, and client name "clawlink".
type Config struct {
	Endpoint          string
	Credentials       Credentials
	RequestTimeout    time.Duration
	HeartbeatInterval time.Duration
	Client            wire.ClientInfo
	Dialer            Dialer          // tests inject an in-memory implementation
	Saver             CredentialSaver // optional persistence hook for UpdateConfig
}

// Link manages the persistent connection to the gateway. See the package
// documentation for the state machine and ordering guarantees.
type Link struct {
	logger         *slog.Logger
	dialer         Dialer
	saver          CredentialSaver
	clientInfo     wire.ClientInfo
	requestTimeout time.Duration

	// connectMu serializes session lifecycle changes: Connect,
	// UpdateConfig, Disconnect, and socket-initiated closes. Rapid
	// lifecycle calls each fully retire the previous socket before the
	// next one exists.
	connectMu sync.Mutex

	// mu guards the fields below. gen increments every time sock is set
	// or cleared; a goroutine holding an older gen is working a dead
	// session and must stand down.
	mu         sync.Mutex
	state      LinkState
	gen        uint64
	sock       Socket
	cancelRead context.CancelFunc
	endpoint   string
	creds      Credentials
	queue      *outQueue

	// flushMu orders direct writes behind the connect-time queue flush.
	flushMu sync.Mutex

	// notifyMu serializes state transitions end to end so observers see
	// them in the order they happened.
	notifyMu sync.Mutex

	pending     *pendingTable
	subs        *registry
	hb          *heartbeat
	seenUnknown *dedupe.Cache

	wg sync.WaitGroup
}

// New builds a Link. The logger may be nil, in which case slog.Default() is
// used. The Link starts in StateDisconnected; nothing touches the network
// until Connect.
func New(cfg Config, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "link")

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Dialer == nil {
		cfg.Dialer = NewWebsocketDialer()
	}
	if cfg.Client.Name == "" {
		cfg.Client.Name = "clawlink"
	}

	return &Link{
		logger:         logger,
		dialer:         cfg.Dialer,
		saver:          cfg.Saver,
		clientInfo:     cfg.Client,
		requestTimeout: cfg.RequestTimeout,
		state:          StateDisconnected,
		endpoint:       cfg.Endpoint,
		creds:          cfg.Credentials,
		queue:          &outQueue{},
		pending:        newPendingTable(logger),
		subs:           newRegistry(logger),
		hb:             newHeartbeat(cfg.HeartbeatInterval, logger),
		seenUnknown:    dedupe.New(unknownFrameLogWindow, unknownFrameLogLimit),
	}
}

// State returns the current link state.
func (l *Link) State() LinkState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Endpoint returns the configured gateway endpoint.
func (l *Link) Endpoint() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.endpoint
}

// Subscribe registers fn for a topic and returns the subscription id.
func (l *Link) Subscribe(topic string, fn Handler) string {
	return l.subs.subscribe(topic, fn)
}

// Unsubscribe removes one subscription. After it returns, the handler
// receives no further deliveries.
func (l *Link) Unsubscribe(topic, id string) bool {
	return l.subs.unsubscribe(topic, id)
}

// Connect retires any existing socket and starts a fresh connect cycle:
// dial, send the auth frame, and enter StateDiscovering. The method returns
// once the auth frame is written; the CONNECTED or AUTH_FAILED outcome
// arrives through the connection-status topic.
func (l *Link) Connect(ctx context.Context) error {
	l.connectMu.Lock()
	defer l.connectMu.Unlock()
	return l.connectCycle(ctx)
}

// UpdateConfig applies a new endpoint and credentials, persists them, and
// runs a fresh connect cycle. An empty endpoint keeps the current one.
func (l *Link) UpdateConfig(ctx context.Context, endpoint string, creds Credentials) error {
	l.connectMu.Lock()
	defer l.connectMu.Unlock()

	l.mu.Lock()
	if endpoint != "" {
		l.endpoint = endpoint
	}
	l.creds = creds
	endpoint = l.endpoint
	l.mu.Unlock()

	if l.saver != nil {
		if err := l.saver.Save(ctx, endpoint, creds); err != nil {
			return fmt.Errorf("persisting credentials: %w", err)
		}
	}

	return l.connectCycle(ctx)
}

// Disconnect force-closes the socket and sets StateDisconnected regardless
// of the prior state. Unlike a socket-initiated close, an explicit
// disconnect moves the state away from a sticky auth failure.
func (l *Link) Disconnect() {
	l.connectMu.Lock()
	defer l.connectMu.Unlock()

	l.retireSession("disconnect requested")
	l.transition(StateDisconnected, "disconnect requested", true)
}

// Close disconnects and waits for background goroutines to drain.
func (l *Link) Close() error {
	l.Disconnect()
	l.wg.Wait()
	l.seenUnknown.Close()
	return nil
}

// connectCycle runs one connect attempt. Caller holds connectMu.
func (l *Link) connectCycle(ctx context.Context) error {
	l.mu.Lock()
	endpoint := l.endpoint
	creds := l.creds
	l.mu.Unlock()

	if endpoint == "" {
		return ErrNoEndpoint
	}

	l.retireSession("superseded by new connect")
	l.transition(StateDiscovering, "connecting", true)

	sock, err := l.dialer.Dial(ctx, endpoint)
	if err != nil {
		l.transition(StateDisconnected, "dial failed", false)
		return fmt.Errorf("dialing gateway: %w", err)
	}

	authFrame, err := wire.NewAuth(wire.AuthParams{
		Token:       creds.Token,
		Email:       creds.Email,
		Password:    creds.Password,
		MinProtocol: wire.ProtocolVersion,
		MaxProtocol: wire.ProtocolVersion,
		Client:      l.clientInfo,
	})
	if err != nil {
		_ = sock.Close()
		l.transition(StateDisconnected, "auth frame failed", false)
		return err
	}
	data, err := wire.Encode(authFrame)
	if err != nil {
		_ = sock.Close()
		l.transition(StateDisconnected, "auth frame failed", false)
		return err
	}
	if err := sock.Write(ctx, data); err != nil {
		_ = sock.Close()
		l.transition(StateDisconnected, "auth write failed", false)
		return fmt.Errorf("sending auth frame: %w", err)
	}

	readCtx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.sock = sock
	l.cancelRead = cancel
	l.mu.Unlock()

	l.logger.Info("gateway socket opened", "endpoint", endpoint)

	l.wg.Go(func() {
		l.readLoop(readCtx, gen, sock)
	})
	return nil
}

// retireSession unconditionally closes the current socket, fails
// outstanding requests, and drops queued frames. Callers hold connectMu.
// With no live socket this is a no-op, which is what lets commands queued
// while disconnected survive into the next session's flush.
func (l *Link) retireSession(reason string) {
	l.mu.Lock()
	if l.sock == nil {
		l.mu.Unlock()
		return
	}
	l.gen++
	sock := l.sock
	cancel := l.cancelRead
	l.sock = nil
	l.cancelRead = nil
	dropped := l.queue.clear()
	l.mu.Unlock()

	l.finishRetire(sock, cancel, dropped, reason)
}

// retireSessionIf is retireSession gated on gen still being the live
// session. Reports whether it acted.
func (l *Link) retireSessionIf(gen uint64, reason string) bool {
	l.mu.Lock()
	if gen != l.gen || l.sock == nil {
		l.mu.Unlock()
		return false
	}
	l.gen++
	sock := l.sock
	cancel := l.cancelRead
	l.sock = nil
	l.cancelRead = nil
	dropped := l.queue.clear()
	l.mu.Unlock()

	l.finishRetire(sock, cancel, dropped, reason)
	return true
}

func (l *Link) finishRetire(sock Socket, cancel context.CancelFunc, dropped int, reason string) {
	l.hb.halt()
	if cancel != nil {
		cancel()
	}
	_ = sock.Close()
	l.pending.failAll(ErrLinkClosed)

	if dropped > 0 {
		l.logger.Debug("dropped queued commands", "count", dropped, "reason", reason)
	}
}

// transition moves the state machine and synchronously publishes the change
// on the connection-status topic. StateAuthFailed is sticky: only forced
// transitions (explicit connect or disconnect) move away from it, so the
// socket close that trails an auth rejection cannot downgrade the state.
// notifyMu holds across compute and publish so observers see transitions in
// the order they happened, none dropped.
func (l *Link) transition(to LinkState, reason string, force bool) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	from := l.state
	if from == to || (from == StateAuthFailed && !force) {
		l.mu.Unlock()
		return
	}
	l.state = to
	l.mu.Unlock()

	l.announce(from, to, reason)
}

// transitionIf is transition gated on the session generation still being
// current, never forced. Frame-driven transitions use it so a dead
// session's leftovers cannot steer the state machine.
func (l *Link) transitionIf(gen uint64, to LinkState, reason string) {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	from := l.state
	if gen != l.gen || from == to || from == StateAuthFailed {
		l.mu.Unlock()
		return
	}
	l.state = to
	l.mu.Unlock()

	l.announce(from, to, reason)
}

func (l *Link) announce(from, to LinkState, reason string) {
	l.logger.Info("link state changed", "from", from.String(), "to", to.String(), "reason", reason)
	l.subs.publish(wire.TopicConnectionStatus, wire.MustRaw(StateChange{
		Old:    from,
		New:    to,
		Reason: reason,
	}))
}

// Send writes a fire-and-forget command. While the link is connected the
// frame goes straight to the socket; otherwise it is buffered and flushed in
// submission order when authentication next succeeds. The buffered path
// never returns an error and never blocks on the network.
func (l *Link) Send(ctx context.Context, method string, params json.RawMessage) error {
	frame := &wire.Frame{Type: wire.TypeRequest, Method: method, Params: params}

	l.mu.Lock()
	if l.state != StateConnected || l.sock == nil || l.queue.size() > 0 {
		l.queue.push(frame)
		queued := l.queue.size()
		l.mu.Unlock()
		l.logger.Debug("buffered outbound command", "method", method, "queued", queued)
		return nil
	}
	sock := l.sock
	l.mu.Unlock()

	if err := l.writeFrame(ctx, sock, frame); err != nil {
		return fmt.Errorf("sending command: %w", err)
	}
	return nil
}

// Request writes a correlated command and blocks until exactly one of: the
// matching response arrives, the timeout elapses, the link closes, or ctx is
// canceled. A non-positive timeout falls back to the configured default.
// Requests are never buffered: when the link is not connected the call fails
// immediately with ErrNotConnected.
func (l *Link) Request(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = l.requestTimeout
	}

	l.mu.Lock()
	if l.state != StateConnected || l.sock == nil {
		l.mu.Unlock()
		return nil, ErrNotConnected
	}
	sock := l.sock
	l.mu.Unlock()

	id := uuid.New().String()
	ch := l.pending.add(id)

	if err := l.writeFrame(ctx, sock, wire.NewRequest(id, method, params)); err != nil {
		l.pending.take(id)
		return nil, fmt.Errorf("sending request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	// Whoever removes the table entry owns the outcome. Losing the take
	// race against a delivery in flight means the result is already on ch.
	select {
	case out := <-ch:
		return out.payload, out.err
	case <-timer.C:
		if _, ok := l.pending.take(id); ok {
			return nil, ErrRequestTimeout
		}
		out := <-ch
		return out.payload, out.err
	case <-ctx.Done():
		if _, ok := l.pending.take(id); ok {
			return nil, ctx.Err()
		}
		out := <-ch
		return out.payload, out.err
	}
}

// writeFrame serializes and writes one frame. flushMu parks direct writes
// behind an in-progress queue flush so commands buffered before the
// connection cannot be overtaken by commands issued after it.
func (l *Link) writeFrame(ctx context.Context, sock Socket, f *wire.Frame) error {
	data, err := wire.Encode(f)
	if err != nil {
		return err
	}
	l.flushMu.Lock()
	defer l.flushMu.Unlock()
	return sock.Write(ctx, data)
}

// readLoop drains one socket for its lifetime, routing every decoded frame.
// It exits when the socket fails or is closed by a retire.
func (l *Link) readLoop(ctx context.Context, gen uint64, sock Socket) {
	for {
		data, err := sock.Read(ctx)
		if err != nil {
			l.handleClose(gen, err)
			return
		}

		frame, err := wire.Decode(data)
		if err != nil {
			l.logger.Debug("dropping malformed frame", "error", err)
			continue
		}
		l.route(gen, frame)
	}
}

// route classifies one inbound frame: auth lifecycle frames drive the state
// machine, responses resolve pending requests, events fan out to topic
// subscribers, and anything unrecognized is dropped. Frames from a stale
// generation are discarded wholesale.
func (l *Link) route(gen uint64, f *wire.Frame) {
	l.mu.Lock()
	stale := gen != l.gen
	l.mu.Unlock()
	if stale {
		return
	}

	switch f.Type {
	case wire.TypeAuthOK:
		l.handleAuthOK(gen, f)
	case wire.TypeAuthError:
		l.handleAuthError(gen, f)
	case wire.TypeResponse:
		if f.OK {
			l.pending.resolve(f.ID, f.Payload)
			return
		}
		var err error = f.Error
		if f.Error == nil {
			err = errors.New("request failed")
		}
		l.pending.fail(f.ID, err)
	case wire.TypeEvent:
		if f.Event == "" {
			l.logger.Debug("dropping event frame without topic")
			return
		}
		l.subs.publish(f.Event, f.Payload)
	case wire.TypePong:
		// Probe replies carry nothing.
	default:
		if !l.seenUnknown.CheckAndMark(f.Type) {
			l.logger.Debug("dropping frame with unrecognized type", "type", f.Type)
		}
	}
}

// handleAuthOK completes the connect cycle: transition to connected, flush
// the queue in submission order, start the heartbeat, then kick off the
// initial state sync.
func (l *Link) handleAuthOK(gen uint64, f *wire.Frame) {
	l.transitionIf(gen, StateConnected, "authenticated")

	// Hold flushMu across the whole flush: sends racing the transition
	// either land in the queue (flushed in order below) or park on flushMu
	// in writeFrame until the last buffered command is out.
	l.flushMu.Lock()
	l.mu.Lock()
	var sock Socket
	var frames []*wire.Frame
	current := gen == l.gen
	if current {
		sock = l.sock
		frames = l.queue.drain()
	}
	l.mu.Unlock()

	for _, frame := range frames {
		data, err := wire.Encode(frame)
		if err != nil {
			l.logger.Warn("dropping unencodable queued command", "method", frame.Method, "error", err)
			continue
		}
		if err := sock.Write(context.Background(), data); err != nil {
			l.logger.Warn("flushing queued command failed", "method", frame.Method, "error", err)
			break
		}
	}
	l.flushMu.Unlock()

	if !current {
		return
	}
	if len(frames) > 0 {
		l.logger.Info("flushed queued commands", "count", len(frames))
	}

	l.hb.start(func() error {
		l.mu.Lock()
		if gen != l.gen || l.sock == nil {
			l.mu.Unlock()
			return errStaleSocket
		}
		s := l.sock
		l.mu.Unlock()
		return l.writeFrame(context.Background(), s, wire.Ping())
	})

	l.wg.Go(func() {
		l.stateSync(f.Payload)
	})
}

// stateSync pulls the gateway's current snapshot and republishes it on the
// identity topic so passive observers see it without issuing their own
// request. The auth-ok payload, when present, is published first as an
// immediate preview.
func (l *Link) stateSync(authPayload json.RawMessage) {
	if len(authPayload) > 0 {
		l.subs.publish(wire.TopicIdentity, authPayload)
	}

	payload, err := l.Request(context.Background(), wire.MethodStateSync, nil, l.requestTimeout)
	if err != nil {
		l.logger.Warn("state sync failed", "error", err)
		return
	}
	l.subs.publish(wire.TopicIdentity, payload)
}

// handleAuthError reacts to an explicit credential rejection. The state
// becomes AuthFailed, not Disconnected, so the operator sees bad credentials
// rather than a flaky network.
func (l *Link) handleAuthError(gen uint64, f *wire.Frame) {
	l.connectMu.Lock()
	defer l.connectMu.Unlock()

	reason := "authentication rejected"
	if f.Error != nil {
		reason = f.Error.Error()
	}

	l.transitionIf(gen, StateAuthFailed, reason)
	if l.retireSessionIf(gen, "auth failed") {
		l.logger.Warn("gateway rejected credentials", "error", reason)
	}
}

// handleClose reacts to the socket for generation gen dying on its own.
// Retiring under connectMu means a close racing a fresh Connect either lands
// before the new session exists or is discarded as stale.
func (l *Link) handleClose(gen uint64, cause error) {
	l.connectMu.Lock()
	defer l.connectMu.Unlock()

	if !l.retireSessionIf(gen, "connection closed") {
		return
	}
	l.logger.Info("gateway connection closed", "error", cause)
	l.transitionIf(gen+1, StateDisconnected, "connection closed")
}
