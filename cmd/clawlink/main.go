// ABOUTME: Entry point for the clawlink operator CLI
// ABOUTME: Stores gateway logins and drives the persistent gateway link

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/clawlink/internal/auth"
	"github.com/2389/clawlink/internal/config"
	"github.com/2389/clawlink/internal/credstore"
	"github.com/2389/clawlink/internal/link"
	"github.com/2389/clawlink/internal/wire"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
      _                 _ _       _
  ___| | __ ___      __| (_)_ __ | | __
 / __| |/ _' \ \ /\ / /| | | '_ \| |/ /
| (__| | (_| |\ V  V / | | | | | |   <
 \___|_|\__,_| \_/\_/  |_|_|_| |_|_|\_\
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "login":
		err = cmdLogin(ctx, os.Args[2:])
	case "logout":
		err = cmdLogout(ctx, os.Args[2:])
	case "profiles":
		err = cmdProfiles(ctx)
	case "status":
		err = cmdStatus(ctx, os.Args[2:])
	case "console":
		err = cmdConsole(ctx, os.Args[2:])
	case "watch":
		err = cmdWatch(ctx, os.Args[2:])
	case "token":
		err = cmdToken(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: clawlink <command> [flags]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login                   Save a gateway endpoint and credentials")
	fmt.Println("  logout                  Remove a saved login")
	fmt.Println("  profiles                List saved logins")
	fmt.Println("  status                  Connect once and report link health")
	fmt.Println("  console                 Interactive gateway console")
	fmt.Println("  watch [topic...]        Stream gateway events to the terminal")
	fmt.Println("  token create            Mint a development JWT")
	fmt.Println("  token inspect <token>   Decode a token's claims")
	fmt.Println()
	yellow.Println("Shared flags:")
	fmt.Println("  --endpoint, -e <url>    Gateway websocket URL (ws:// or wss://)")
	fmt.Println("  --profile, -p <name>    Credential profile (default from config)")
	fmt.Println("  --reconnect             Redial with backoff after disconnects")
	fmt.Println("  --log-level <level>     debug, info, warn, or error")
	fmt.Println("  --log-format <format>   text or json")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  CLAWLINK_CONFIG         Config file path (default: ~/.config/clawlink/config.yaml)")
	fmt.Println("  CLAWLINK_TOKEN          Bearer token, overrides the stored one")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  clawlink login --endpoint wss://gateway.example.com/ws --token eyJhbG...")
	fmt.Println("  clawlink status")
	fmt.Println("  clawlink console --reconnect")
	fmt.Println("  clawlink watch trading-event browser-update")
	fmt.Println()
}

// getConfigPath returns the path to the clawlink config file.
// Priority: CLAWLINK_CONFIG env var > ./clawlink.yaml (when present) >
// XDG_CONFIG_HOME/clawlink/config.yaml > ~/.config/clawlink/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CLAWLINK_CONFIG"); envPath != "" {
		return envPath
	}

	if _, err := os.Stat("clawlink.yaml"); err == nil {
		return "clawlink.yaml"
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "clawlink.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "clawlink", "config.yaml")
}

// stateDir returns the directory holding the credential store and exports.
// Priority: state.dir from config > XDG_STATE_HOME/clawlink > ~/.local/state/clawlink
func stateDir(cfg *config.Config) string {
	if cfg.State.Dir != "" {
		return cfg.State.Dir
	}

	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "state" // fallback
		}
		dir = filepath.Join(homeDir, ".local", "state")
	}

	return filepath.Join(dir, "clawlink")
}

// loadConfig loads the config file, falling back to defaults when none
// exists. A missing file is only an error when CLAWLINK_CONFIG points at it
// explicitly.
func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && os.Getenv("CLAWLINK_CONFIG") == "" {
			return config.Default(), nil
		}
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes. Logs
// go to stderr so they interleave with, but never corrupt, console output.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Fprint(os.Stderr, buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

// linkFlags are the options shared by the commands that drive a link.
type linkFlags struct {
	endpoint  string
	profile   string
	logLevel  string
	logFormat string
	reconnect bool
}

// parseLinkFlags handles the shared link options and returns the remaining
// positional arguments. Supports both "--flag value" and "--flag=value".
func parseLinkFlags(args []string) (*linkFlags, []string, error) {
	fl := &linkFlags{}
	var rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		grab := func(name string) (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", name)
			}
			i++
			return args[i], nil
		}
		var err error
		switch {
		case arg == "--endpoint" || arg == "-e":
			fl.endpoint, err = grab(arg)
		case strings.HasPrefix(arg, "--endpoint="):
			fl.endpoint = strings.TrimPrefix(arg, "--endpoint=")
		case arg == "--profile" || arg == "-p":
			fl.profile, err = grab(arg)
		case strings.HasPrefix(arg, "--profile="):
			fl.profile = strings.TrimPrefix(arg, "--profile=")
		case arg == "--log-level":
			fl.logLevel, err = grab(arg)
		case strings.HasPrefix(arg, "--log-level="):
			fl.logLevel = strings.TrimPrefix(arg, "--log-level=")
		case arg == "--log-format":
			fl.logFormat, err = grab(arg)
		case strings.HasPrefix(arg, "--log-format="):
			fl.logFormat = strings.TrimPrefix(arg, "--log-format=")
		case arg == "--reconnect":
			fl.reconnect = true
		case strings.HasPrefix(arg, "-"):
			return nil, nil, fmt.Errorf("unknown flag: %s", arg)
		default:
			rest = append(rest, arg)
		}
		if err != nil {
			return nil, nil, err
		}
	}
	return fl, rest, nil
}

// session bundles everything a link-driving command needs.
type session struct {
	cfg     *config.Config
	store   *credstore.Store
	lk      *link.Link
	logger  *slog.Logger
	profile string
}

// openSession loads config, opens the credential store, resolves the login,
// and builds a link. Nothing touches the network until the caller connects.
func openSession(ctx context.Context, fl *linkFlags) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if fl.logLevel != "" {
		cfg.Logging.Level = fl.logLevel
	}
	if fl.logFormat != "" {
		cfg.Logging.Format = fl.logFormat
	}
	logger := setupLogger(cfg.Logging)

	store, err := credstore.Open(stateDir(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}

	profile := cfg.Profile
	if fl.profile != "" {
		profile = fl.profile
	}

	endpoint, creds, err := resolveLogin(ctx, store, cfg, fl.endpoint, profile)
	if err != nil {
		store.Close()
		return nil, err
	}

	lk := link.New(link.Config{
		Endpoint:          endpoint,
		Credentials:       creds,
		RequestTimeout:    cfg.Gateway.RequestTimeout,
		HeartbeatInterval: cfg.Gateway.HeartbeatInterval,
		Client:            wire.ClientInfo{Name: "clawlink", Version: version},
		Saver:             &profileSaver{store: store, profile: profile},
	}, logger)

	return &session{cfg: cfg, store: store, lk: lk, logger: logger, profile: profile}, nil
}

func (s *session) close() {
	_ = s.lk.Close()
	_ = s.store.Close()
}

// resolveLogin merges the endpoint and credentials from flags, environment,
// config, and the stored profile. Flag beats config beats profile; the
// CLAWLINK_TOKEN environment variable beats the stored token.
func resolveLogin(ctx context.Context, store *credstore.Store, cfg *config.Config, endpointFlag, profile string) (string, link.Credentials, error) {
	var creds link.Credentials

	prof, err := store.Load(ctx, profile)
	if err != nil && !errors.Is(err, credstore.ErrNotFound) {
		return "", creds, fmt.Errorf("loading profile %q: %w", profile, err)
	}

	endpoint := endpointFlag
	if endpoint == "" {
		endpoint = cfg.Gateway.URL
	}
	if prof != nil {
		if endpoint == "" {
			endpoint = prof.Endpoint
		}
		creds = link.Credentials{Token: prof.Token, Email: prof.Email, Password: prof.Password}
	}
	if tok := os.Getenv("CLAWLINK_TOKEN"); tok != "" {
		creds.Token = tok
	}

	if endpoint == "" {
		return "", creds, fmt.Errorf("no gateway endpoint: pass --endpoint, set gateway.url in %s, or run clawlink login", getConfigPath())
	}
	return endpoint, creds, nil
}

// profileSaver persists credentials applied through the link back into the
// credential store, keyed by the active profile.
type profileSaver struct {
	store   *credstore.Store
	profile string
}

func (s *profileSaver) Save(ctx context.Context, endpoint string, creds link.Credentials) error {
	return s.store.Save(ctx, &credstore.Profile{
		Name:     s.profile,
		Endpoint: endpoint,
		Token:    creds.Token,
		Email:    creds.Email,
		Password: creds.Password,
	})
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("endpoint must use the ws or wss scheme, got %q", endpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q has no host", endpoint)
	}
	return nil
}

func cmdLogin(ctx context.Context, args []string) error {
	var endpoint, token, email, password, profile string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		grab := func(name string) (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", name)
			}
			i++
			return args[i], nil
		}
		var err error
		switch {
		case arg == "--endpoint" || arg == "-e":
			endpoint, err = grab(arg)
		case strings.HasPrefix(arg, "--endpoint="):
			endpoint = strings.TrimPrefix(arg, "--endpoint=")
		case arg == "--token" || arg == "-t":
			token, err = grab(arg)
		case strings.HasPrefix(arg, "--token="):
			token = strings.TrimPrefix(arg, "--token=")
		case arg == "--email":
			email, err = grab(arg)
		case strings.HasPrefix(arg, "--email="):
			email = strings.TrimPrefix(arg, "--email=")
		case arg == "--password":
			password, err = grab(arg)
		case strings.HasPrefix(arg, "--password="):
			password = strings.TrimPrefix(arg, "--password=")
		case arg == "--profile" || arg == "-p":
			profile, err = grab(arg)
		case strings.HasPrefix(arg, "--profile="):
			profile = strings.TrimPrefix(arg, "--profile=")
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
		if err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging)

	if profile == "" {
		profile = cfg.Profile
	}
	if endpoint == "" {
		endpoint = cfg.Gateway.URL
	}
	if endpoint == "" {
		return fmt.Errorf("--endpoint is required (no gateway.url in config)")
	}
	if err := validateEndpoint(endpoint); err != nil {
		return err
	}
	if token == "" && email == "" {
		return fmt.Errorf("provide --token, or --email with --password")
	}
	if email != "" && password == "" {
		return fmt.Errorf("--email requires --password")
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	gray := color.New(color.FgHiBlack)

	if token != "" {
		info, inspectErr := auth.Inspect(token)
		switch {
		case inspectErr != nil:
			gray.Println("  token is not a JWT; skipping expiry check")
		case info.Expired:
			yellow.Printf("  ! token for %s expired %s\n", info.Subject, info.ExpiresAt.Format(time.RFC1123))
			yellow.Println("  ! the gateway will reject it; mint a fresh one")
		case !info.ExpiresAt.IsZero():
			gray.Printf("  token for %s, expires %s\n", info.Subject, info.ExpiresAt.Format(time.RFC1123))
		}
	}

	store, err := credstore.Open(stateDir(cfg), logger)
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	defer store.Close()

	if err := store.Save(ctx, &credstore.Profile{
		Name:     profile,
		Endpoint: endpoint,
		Email:    email,
		Token:    token,
		Password: password,
	}); err != nil {
		return fmt.Errorf("saving login: %w", err)
	}

	green.Printf("  ✓ Saved login for %s (profile %q)\n", endpoint, profile)
	fmt.Println()
	fmt.Println("  Next:")
	fmt.Println("    clawlink status     # verify the gateway accepts it")
	fmt.Println("    clawlink console    # open the interactive console")
	fmt.Println()
	return nil
}

func cmdLogout(ctx context.Context, args []string) error {
	var profile string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--profile" || arg == "-p":
			if i+1 >= len(args) {
				return fmt.Errorf("%s requires a value", arg)
			}
			profile = args[i+1]
			i++
		case strings.HasPrefix(arg, "--profile="):
			profile = strings.TrimPrefix(arg, "--profile=")
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if profile == "" {
		profile = cfg.Profile
	}

	store, err := credstore.Open(stateDir(cfg), setupLogger(cfg.Logging))
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	defer store.Close()

	if err := store.Delete(ctx, profile); err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			return fmt.Errorf("no saved login for profile %q", profile)
		}
		return fmt.Errorf("removing login: %w", err)
	}

	color.Green("  ✓ Removed login for profile %q", profile)
	return nil
}

func cmdProfiles(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := credstore.Open(stateDir(cfg), setupLogger(cfg.Logging))
	if err != nil {
		return fmt.Errorf("opening credential store: %w", err)
	}
	defer store.Close()

	profiles, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing profiles: %w", err)
	}

	if len(profiles) == 0 {
		fmt.Println("No saved logins. Run clawlink login first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROFILE\tENDPOINT\tEMAIL\tUPDATED")
	for _, p := range profiles {
		email := p.Email
		if email == "" {
			email = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Endpoint, email, p.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func cmdStatus(ctx context.Context, args []string) error {
	fl, rest, err := parseLinkFlags(args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	s, err := openSession(ctx, fl)
	if err != nil {
		return err
	}
	defer s.close()

	changes := subscribeChanges(s.lk)

	color.New(color.FgHiBlack).Printf("  dialing %s\n", s.lk.Endpoint())
	if err := s.lk.Connect(ctx); err != nil {
		color.Red("  ✗ offline")
		return fmt.Errorf("connecting: %w", err)
	}

	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("timed out waiting for the gateway to finish the handshake")
		case ch := <-changes:
			switch ch.New {
			case link.StateConnected:
				return printStatus(ctx, s)
			case link.StateAuthFailed:
				color.Red("  ✗ authentication failed: %s", ch.Reason)
				return fmt.Errorf("credentials rejected; run clawlink login with a fresh token")
			case link.StateDisconnected:
				return fmt.Errorf("gateway closed the connection during the handshake (%s)", ch.Reason)
			}
		}
	}
}

func printStatus(ctx context.Context, s *session) error {
	start := time.Now()
	snapshot, err := s.lk.Request(ctx, wire.MethodStateSync, nil, 0)
	rtt := time.Since(start)
	if err != nil {
		return fmt.Errorf("state-sync: %w", err)
	}

	color.Green("  ✓ connected")
	fmt.Printf("  endpoint:   %s\n", s.lk.Endpoint())
	fmt.Printf("  profile:    %s\n", s.profile)
	fmt.Printf("  round-trip: %s\n", rtt.Round(time.Millisecond))
	if ident := identitySummary(snapshot); ident != "" {
		fmt.Printf("  identity:   %s\n", ident)
	}
	color.New(color.FgHiBlack).Printf("  protocol:   v%d\n", wire.ProtocolVersion)
	return nil
}

// identitySummary pulls a human-readable identity out of a state-sync
// snapshot. Gateways differ on the exact shape, so this is best-effort.
func identitySummary(payload json.RawMessage) string {
	var snap struct {
		Identity struct {
			Email   string `json:"email"`
			Name    string `json:"name"`
			Subject string `json:"subject"`
		} `json:"identity"`
		Email   string `json:"email"`
		Subject string `json:"subject"`
	}
	if err := json.Unmarshal(payload, &snap); err != nil {
		return ""
	}
	for _, v := range []string{snap.Identity.Email, snap.Identity.Name, snap.Identity.Subject, snap.Email, snap.Subject} {
		if v != "" {
			return v
		}
	}
	return ""
}

func cmdToken(args []string) error {
	subcmd := ""
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "create":
		return cmdTokenCreate(args)
	case "inspect":
		return cmdTokenInspect(args)
	default:
		return fmt.Errorf("usage: token create --secret <s> [--subject <name>] [--ttl <duration>] | token inspect <token>")
	}
}

func cmdTokenCreate(args []string) error {
	var secret, subject string
	ttl := 30 * 24 * time.Hour

	for i := 0; i < len(args); i++ {
		arg := args[i]
		grab := func(name string) (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", name)
			}
			i++
			return args[i], nil
		}
		var err error
		switch {
		case arg == "--secret" || arg == "-s":
			secret, err = grab(arg)
		case strings.HasPrefix(arg, "--secret="):
			secret = strings.TrimPrefix(arg, "--secret=")
		case arg == "--subject":
			subject, err = grab(arg)
		case strings.HasPrefix(arg, "--subject="):
			subject = strings.TrimPrefix(arg, "--subject=")
		case arg == "--ttl":
			var raw string
			raw, err = grab(arg)
			if err == nil {
				ttl, err = time.ParseDuration(raw)
			}
		case strings.HasPrefix(arg, "--ttl="):
			ttl, err = time.ParseDuration(strings.TrimPrefix(arg, "--ttl="))
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
		if err != nil {
			return err
		}
	}

	if secret == "" {
		secret = os.Getenv("CLAWLINK_JWT_SECRET")
	}
	if secret == "" {
		return fmt.Errorf("--secret is required (or set CLAWLINK_JWT_SECRET)")
	}
	if subject == "" {
		subject = "operator"
	}
	if ttl <= 0 {
		return fmt.Errorf("--ttl must be positive")
	}

	token, err := auth.NewJWTVerifier([]byte(secret)).Generate(subject, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	fmt.Println()
	green.Println("  Token created")
	fmt.Println()
	cyan.Println("  Subject:  " + subject)
	cyan.Println("  Expires:  " + time.Now().Add(ttl).UTC().Format(time.RFC1123))
	fmt.Println()
	fmt.Println("  Token (keep this secret!):")
	fmt.Println()
	fmt.Println("  " + token)
	fmt.Println()

	return nil
}

func cmdTokenInspect(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: token inspect <token>")
	}

	info, err := auth.Inspect(args[0])
	if err != nil {
		return fmt.Errorf("inspecting token: %w", err)
	}

	fmt.Printf("  subject:   %s\n", info.Subject)
	if !info.IssuedAt.IsZero() {
		fmt.Printf("  issued:    %s\n", info.IssuedAt.Format(time.RFC1123))
	}
	if info.ExpiresAt.IsZero() {
		fmt.Println("  expires:   never")
	} else {
		fmt.Printf("  expires:   %s\n", info.ExpiresAt.Format(time.RFC1123))
	}
	if info.Expired {
		color.Red("  expired")
	} else {
		color.Green("  valid")
	}
	return nil
}
