// ABOUTME: Protocol-faithful fake gateway for demos and end-to-end testing
// ABOUTME: Usage: fake-gateway [-addr localhost:7411] [-secret S | -token T | -email E -password P]

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"

	"github.com/2389/clawlink/internal/auth"
	"github.com/2389/clawlink/internal/wire"
)

// Version is set by goreleaser at build time.
var version = "dev"

const (
	maxFrameBytes = 8 << 20
	authTimeout   = 10 * time.Second
)

func main() {
	addr := flag.String("addr", "localhost:7411", "listen address")
	secret := flag.String("secret", "", "JWT secret; bearer tokens must verify against it")
	token := flag.String("token", "", "accept exactly this bearer token")
	email := flag.String("email", "", "accept this email (with -password)")
	password := flag.String("password", "", "password required with -email")
	fixtures := flag.String("fixtures", "", "TOML file of canned responses and broadcast events")
	interval := flag.Duration("event-interval", 5*time.Second, "delay between broadcast events; 0 disables them")
	logLevel := flag.String("log-level", "info", "debug, info, warn, or error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := &server{
		logger:   logger,
		token:    *token,
		email:    *email,
		password: *password,
		interval: *interval,
		started:  time.Now(),
	}
	if *secret != "" {
		srv.verifier = auth.NewJWTVerifier([]byte(*secret))
	}
	if *fixtures != "" {
		canned, events, err := loadFixtures(*fixtures)
		if err != nil {
			logger.Error("loading fixtures", "path", *fixtures, "error", err)
			os.Exit(1)
		}
		srv.canned = canned
		srv.events = events
		logger.Info("fixtures loaded", "path", *fixtures, "responses", len(canned), "events", len(events))
	}
	if srv.verifier == nil && srv.token == "" && srv.email == "" {
		logger.Warn("no -secret, -token, or -email configured; accepting any login")
	}

	if err := run(ctx, *addr, srv); err != nil {
		logger.Error("fake gateway failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, addr string, srv *server) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", srv.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	srv.logger.Info("fake gateway listening", "url", "ws://"+addr+"/ws", "version", version)
	err := httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// server holds the behavior shared by every connection: how to authenticate,
// what to answer, and what to broadcast.
type server struct {
	logger   *slog.Logger
	verifier *auth.JWTVerifier // nil unless -secret was given
	token    string
	email    string
	password string
	interval time.Duration
	canned   map[string]canned
	events   []broadcastEvent
	started  time.Time
}

// authenticate checks auth params against whichever credential mode the
// flags selected, returning the operator identity for the snapshot. With no
// mode configured, any presented credential passes.
func (s *server) authenticate(params wire.AuthParams) (string, error) {
	if params.MinProtocol > wire.ProtocolVersion || params.MaxProtocol < wire.ProtocolVersion {
		return "", fmt.Errorf("protocol v%d unsupported (client offers %d to %d)",
			wire.ProtocolVersion, params.MinProtocol, params.MaxProtocol)
	}

	switch {
	case s.verifier != nil:
		subject, err := s.verifier.Verify(params.Token)
		if err != nil {
			return "", fmt.Errorf("token rejected: %w", err)
		}
		return subject, nil
	case s.token != "":
		if params.Token != s.token {
			return "", errors.New("token rejected")
		}
		return "operator", nil
	case s.email != "":
		if params.Email != s.email || params.Password != s.password {
			return "", errors.New("email or password rejected")
		}
		return s.email, nil
	default:
		if params.Token == "" && params.Email == "" {
			return "", errors.New("no credentials presented")
		}
		if params.Email != "" {
			return params.Email, nil
		}
		return "operator", nil
	}
}

// snapshot is the identity payload carried on auth-ok frames and state-sync
// responses.
func (s *server) snapshot(subject string) json.RawMessage {
	ident := map[string]any{}
	if strings.Contains(subject, "@") {
		ident["email"] = subject
	} else if subject != "" {
		ident["subject"] = subject
	}
	return wire.MustRaw(map[string]any{
		"identity": ident,
		"gateway": map[string]any{
			"version": version,
			"started": s.started.UTC().Format(time.RFC3339),
		},
		"topics": []string{
			wire.TopicIdentity,
			wire.TopicVaultIndex,
			wire.TopicBrowserUpdate,
			wire.TopicTradingEvent,
		},
	})
}

// eventFrame returns the i-th broadcast event. Fixture events rotate in
// order; without fixtures the gateway alternates fake trading ticks and
// browser updates.
func (s *server) eventFrame(i int) *wire.Frame {
	if len(s.events) > 0 {
		ev := s.events[i%len(s.events)]
		return wire.NewEvent(ev.topic, ev.payload)
	}
	if i%2 == 0 {
		return wire.NewEvent(wire.TopicTradingEvent, wire.MustRaw(map[string]any{
			"seq":    i,
			"symbol": "CLAW-USD",
			"price":  100.0 + float64(i%13)*0.25,
		}))
	}
	return wire.NewEvent(wire.TopicBrowserUpdate, wire.MustRaw(map[string]any{
		"seq":   i,
		"url":   fmt.Sprintf("https://example.com/orders/%d", i),
		"title": "order book",
	}))
}

func (s *server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(maxFrameBytes)

	sess := &wsSession{
		srv:    s,
		conn:   conn,
		logger: s.logger.With("remote", r.RemoteAddr),
	}
	sess.serve(r.Context())
}

// wsSession is one operator connection. The read loop and the broadcaster
// share the socket, so writes are serialized.
type wsSession struct {
	srv    *server
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
}

func (c *wsSession) writeFrame(ctx context.Context, f *wire.Frame) error {
	data, err := wire.Encode(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsSession) serve(ctx context.Context) {
	defer c.conn.Close(websocket.StatusNormalClosure, "")

	subject, err := c.handshake(ctx)
	if err != nil {
		c.logger.Info("rejected connection", "error", err)
		return
	}
	c.logger.Info("operator connected", "subject", subject)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if c.srv.interval > 0 {
		go c.broadcast(ctx)
	}

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			c.logger.Info("operator disconnected", "error", err)
			return
		}
		if typ != websocket.MessageText {
			c.logger.Debug("dropping non-text message")
			continue
		}
		f, err := wire.Decode(data)
		if err != nil {
			c.logger.Debug("dropping malformed frame", "error", err)
			continue
		}
		c.dispatch(ctx, f, subject)
	}
}

// handshake reads and answers the auth frame. The first frame must arrive
// within authTimeout and must be an auth frame; anything else ends the
// connection.
func (c *wsSession) handshake(ctx context.Context) (string, error) {
	authCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	typ, data, err := c.conn.Read(authCtx)
	if err != nil {
		return "", fmt.Errorf("waiting for auth frame: %w", err)
	}
	if typ != websocket.MessageText {
		return "", errors.New("first message was not text")
	}
	f, err := wire.Decode(data)
	if err != nil {
		return "", err
	}
	if f.Type != wire.TypeAuth {
		return "", fmt.Errorf("first frame was %q, want %q", f.Type, wire.TypeAuth)
	}

	var params wire.AuthParams
	if err := json.Unmarshal(f.Params, &params); err != nil {
		return "", fmt.Errorf("decoding auth params: %w", err)
	}

	subject, err := c.srv.authenticate(params)
	if err != nil {
		reject := &wire.Frame{
			Type:  wire.TypeAuthError,
			Error: &wire.Error{Code: wire.CodeAuthRejected, Message: err.Error()},
		}
		if werr := c.writeFrame(ctx, reject); werr != nil {
			return "", fmt.Errorf("writing auth-error: %w", werr)
		}
		return "", err
	}

	ok := &wire.Frame{Type: wire.TypeAuthOK, Payload: c.srv.snapshot(subject)}
	if err := c.writeFrame(ctx, ok); err != nil {
		return "", fmt.Errorf("writing auth-ok: %w", err)
	}
	return subject, nil
}

func (c *wsSession) dispatch(ctx context.Context, f *wire.Frame, subject string) {
	switch f.Type {
	case wire.TypePing:
		if err := c.writeFrame(ctx, wire.Pong()); err != nil {
			c.logger.Debug("pong write failed", "error", err)
		}
	case wire.TypeRequest:
		c.handleRequest(ctx, f, subject)
	default:
		c.logger.Debug("dropping frame", "type", f.Type)
	}
}

func (c *wsSession) handleRequest(ctx context.Context, f *wire.Frame, subject string) {
	logger := c.logger.With("method", f.Method, "id", f.ID)

	// Frames without an id are fire-and-forget commands.
	if f.ID == "" {
		logger.Info("command received")
		return
	}

	var reply *wire.Frame
	if f.Method == wire.MethodStateSync {
		reply = wire.NewResponse(f.ID, c.srv.snapshot(subject))
	} else if canned, ok := c.srv.canned[f.Method]; ok {
		if canned.delay > 0 {
			select {
			case <-time.After(canned.delay):
			case <-ctx.Done():
				return
			}
		}
		if canned.ok {
			reply = wire.NewResponse(f.ID, canned.payload)
		} else {
			reply = wire.NewErrorResponse(f.ID, canned.code, canned.message)
		}
	} else {
		// Unknown methods echo back what was asked.
		reply = wire.NewResponse(f.ID, wire.MustRaw(map[string]any{
			"echo":   true,
			"method": f.Method,
			"params": f.Params,
		}))
	}

	if err := c.writeFrame(ctx, reply); err != nil {
		logger.Debug("response write failed", "error", err)
		return
	}
	logger.Info("request answered")
}

// broadcast pushes events at the configured interval until the connection
// context ends.
func (c *wsSession) broadcast(ctx context.Context) {
	ticker := time.NewTicker(c.srv.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := c.writeFrame(ctx, c.srv.eventFrame(i)); err != nil {
			return
		}
	}
}
