// ABOUTME: Interactive gateway console for the clawlink CLI
// ABOUTME: Slash-command REPL with live event streaming and transcript capture

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/clawlink/internal/link"
	"github.com/2389/clawlink/internal/transcript"
	"github.com/2389/clawlink/internal/wire"
)

// transcriptCapacity bounds the console ledger. Old entries fall off; the
// exported HTML notes how many were dropped.
const transcriptCapacity = 512

func cmdConsole(ctx context.Context, args []string) error {
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

	c := &console{
		session: s,
		ledger:  transcript.NewLedger(transcriptCapacity),
		subs:    make(map[string]string),
	}

	s.lk.Subscribe(wire.TopicConnectionStatus, c.onStateChange)
	if fl.reconnect {
		go runReconnector(ctx, s.lk, s.logger, subscribeChanges(s.lk))
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	cyan.Print(banner)
	gray.Printf("    version: %s\n\n", version)
	fmt.Printf("Gateway console for %s (profile %q)\n", s.lk.Endpoint(), s.profile)
	fmt.Println("Type /help for commands. Ctrl+C to quit.")
	fmt.Println()

	if err := s.lk.Connect(ctx); err != nil {
		// The REPL still works; /reconnect retries once the gateway is back.
		fmt.Printf("[error] %v\n", err)
	}

	return c.repl(ctx)
}

// console holds the state of one interactive session. The subs map is only
// touched from the REPL goroutine; event handlers run on link goroutines and
// write to the (internally locked) ledger and the terminal.
type console struct {
	*session
	ledger *transcript.Ledger
	subs   map[string]string // topic -> subscription id
}

func (c *console) onStateChange(_ string, payload json.RawMessage) {
	var ch link.StateChange
	if err := json.Unmarshal(payload, &ch); err != nil {
		return
	}
	c.ledger.Append(transcript.Entry{
		Kind:  transcript.KindState,
		Label: fmt.Sprintf("%s -> %s", ch.Old, ch.New),
		Body:  ch.Reason,
	})
	printStateLine(ch)
}

func (c *console) repl(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("%s> ", c.lk.State())

		// Read input with context awareness
		inputCh := make(chan string, 1)
		errCh := make(chan error, 1)

		go func() {
			if scanner.Scan() {
				inputCh <- scanner.Text()
			} else {
				if err := scanner.Err(); err != nil {
					errCh <- err
				} else {
					errCh <- io.EOF
				}
			}
		}()

		var input string
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		case input = <-inputCh:
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if input == "/quit" || input == "/exit" || input == "/q" {
			return nil
		}

		if err := c.dispatch(ctx, input); err != nil {
			fmt.Printf("[error] %v\n", err)
		}
		fmt.Println()
	}
}

func (c *console) dispatch(ctx context.Context, input string) error {
	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/help":
		printConsoleHelp()
		return nil
	case "/req":
		return c.doRequest(ctx, rest)
	case "/send":
		return c.doSend(ctx, rest)
	case "/sub":
		return c.doSubscribe(rest)
	case "/unsub":
		return c.doUnsubscribe(rest)
	case "/state":
		c.printState()
		return nil
	case "/login":
		return c.doLogin(ctx, rest)
	case "/reconnect":
		return c.lk.Connect(ctx)
	case "/save":
		return c.saveTranscript(rest)
	case "/note":
		if rest == "" {
			return fmt.Errorf("usage: /note <text>")
		}
		c.ledger.Append(transcript.Entry{Kind: transcript.KindNote, Body: rest})
		fmt.Println("noted")
		return nil
	default:
		if strings.HasPrefix(cmd, "/") {
			return fmt.Errorf("unknown command %s; try /help", cmd)
		}
		// Bare text is shorthand for /note.
		c.ledger.Append(transcript.Entry{Kind: transcript.KindNote, Body: input})
		fmt.Println("noted")
		return nil
	}
}

func printConsoleHelp() {
	fmt.Println("Commands:")
	fmt.Println("  /req <method> [json]     Send a request and wait for the reply")
	fmt.Println("  /send <method> [json]    Fire-and-forget command (queued while offline)")
	fmt.Println("  /sub <topic>             Stream a topic (identity, vault-index, ...)")
	fmt.Println("  /unsub <topic>           Stop streaming a topic")
	fmt.Println("  /state                   Show link state and subscriptions")
	fmt.Println("  /login <endpoint> <tok>  Swap credentials and reconnect")
	fmt.Println("  /reconnect               Force a fresh connect cycle")
	fmt.Println("  /note <text>             Annotate the transcript")
	fmt.Println("  /save [path]             Export the transcript as HTML")
	fmt.Println("  /quit                    Exit the console")
}

// splitMethodParams parses "method {json}" where the params blob is optional.
func splitMethodParams(rest string) (string, json.RawMessage, error) {
	method, params, _ := strings.Cut(rest, " ")
	if method == "" {
		return "", nil, fmt.Errorf("method is required")
	}
	params = strings.TrimSpace(params)
	if params == "" {
		return method, nil, nil
	}
	if !json.Valid([]byte(params)) {
		return "", nil, fmt.Errorf("params must be valid JSON")
	}
	return method, json.RawMessage(params), nil
}

func (c *console) doRequest(ctx context.Context, rest string) error {
	method, params, err := splitMethodParams(rest)
	if err != nil {
		return fmt.Errorf("usage: /req <method> [json-params]: %w", err)
	}

	c.ledger.Append(transcript.Entry{Kind: transcript.KindSent, Label: method, Body: string(params)})

	start := time.Now()
	payload, err := c.lk.Request(ctx, method, params, 0)
	if err != nil {
		c.ledger.Append(transcript.Entry{Kind: transcript.KindResponse, Label: method, Body: err.Error()})
		return err
	}
	c.ledger.Append(transcript.Entry{Kind: transcript.KindResponse, Label: method, Body: string(payload)})

	color.New(color.FgHiBlack).Printf("[%s]\n", time.Since(start).Round(time.Millisecond))
	fmt.Println(prettyJSON(payload))
	return nil
}

func (c *console) doSend(ctx context.Context, rest string) error {
	method, params, err := splitMethodParams(rest)
	if err != nil {
		return fmt.Errorf("usage: /send <method> [json-params]: %w", err)
	}

	queued := c.lk.State() != link.StateConnected
	if err := c.lk.Send(ctx, method, params); err != nil {
		return err
	}
	c.ledger.Append(transcript.Entry{Kind: transcript.KindSent, Label: method, Body: string(params)})

	if queued {
		fmt.Println("queued until the link is connected")
	} else {
		fmt.Println("sent")
	}
	return nil
}

func (c *console) doSubscribe(topic string) error {
	if topic == "" {
		return fmt.Errorf("usage: /sub <topic>")
	}
	if _, ok := c.subs[topic]; ok {
		return fmt.Errorf("already subscribed to %s", topic)
	}
	c.subs[topic] = c.lk.Subscribe(topic, func(topic string, payload json.RawMessage) {
		c.ledger.Append(transcript.Entry{Kind: transcript.KindEvent, Label: topic, Body: string(payload)})
		printEvent(topic, payload)
	})
	fmt.Printf("subscribed to %s\n", topic)
	return nil
}

func (c *console) doUnsubscribe(topic string) error {
	if topic == "" {
		return fmt.Errorf("usage: /unsub <topic>")
	}
	id, ok := c.subs[topic]
	if !ok {
		return fmt.Errorf("not subscribed to %s", topic)
	}
	delete(c.subs, topic)
	c.lk.Unsubscribe(topic, id)
	fmt.Printf("unsubscribed from %s\n", topic)
	return nil
}

func (c *console) printState() {
	fmt.Printf("state:    %s\n", c.lk.State())
	fmt.Printf("endpoint: %s\n", c.lk.Endpoint())
	fmt.Printf("profile:  %s\n", c.profile)

	if len(c.subs) == 0 {
		fmt.Println("subscriptions: none")
		return
	}
	topics := make([]string, 0, len(c.subs))
	for t := range c.subs {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	fmt.Printf("subscriptions: %s\n", strings.Join(topics, ", "))
}

// doLogin swaps credentials without leaving the console. The new login is
// persisted to the active profile and the link reconnects with it.
func (c *console) doLogin(ctx context.Context, rest string) error {
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return fmt.Errorf("usage: /login <endpoint> <token>")
	}
	endpoint, token := fields[0], fields[1]
	if err := validateEndpoint(endpoint); err != nil {
		return err
	}
	return c.lk.UpdateConfig(ctx, endpoint, link.Credentials{Token: token})
}

func (c *console) saveTranscript(path string) error {
	if path == "" {
		path = fmt.Sprintf("clawlink-%s.html", time.Now().Format("20060102-150405"))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating transcript file: %w", err)
	}
	if err := c.ledger.ExportHTML(f); err != nil {
		f.Close()
		return fmt.Errorf("writing transcript: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}

	fmt.Printf("transcript saved to %s (%d entries)\n", path, c.ledger.Len())
	return nil
}

// subscribeChanges mirrors connection-status transitions into a channel
// without ever blocking the publisher.
func subscribeChanges(lk *link.Link) <-chan link.StateChange {
	changes := make(chan link.StateChange, 64)
	lk.Subscribe(wire.TopicConnectionStatus, func(_ string, payload json.RawMessage) {
		var ch link.StateChange
		if err := json.Unmarshal(payload, &ch); err != nil {
			return
		}
		select {
		case changes <- ch:
		default:
		}
	})
	return changes
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// nextBackoff doubles a retry delay, clamping it to maxBackoff.
func nextBackoff(d time.Duration) time.Duration {
	return min(d*2, maxBackoff)
}

// runReconnector redials after unplanned disconnects with exponential
// backoff, 1s doubling to a 30s cap, resetting on a successful connect.
// Credential rejections are not retried; the same login cannot start working
// on its own.
func runReconnector(ctx context.Context, lk *link.Link, logger *slog.Logger, changes <-chan link.StateChange) {
	backoff := initialBackoff

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	armed := false

	disarm := func() {
		if armed && !timer.Stop() {
			<-timer.C
		}
		armed = false
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-changes:
			switch ch.New {
			case link.StateConnected:
				backoff = initialBackoff
				disarm()
			case link.StateAuthFailed:
				disarm()
			case link.StateDisconnected:
				if !armed {
					timer.Reset(backoff)
					armed = true
				}
			}
		case <-timer.C:
			armed = false
			logger.Info("reconnecting", "backoff", backoff.String())
			backoff = nextBackoff(backoff)
			if err := lk.Connect(ctx); err != nil {
				// The failed dial published a disconnected transition,
				// which re-arms the timer with the longer backoff.
				logger.Warn("reconnect failed", "error", err)
			}
		}
	}
}

// printStateLine renders a connection-status transition for the terminal.
func printStateLine(ch link.StateChange) {
	line := fmt.Sprintf("%s -> %s", ch.Old, ch.New)
	if ch.Reason != "" {
		line += " (" + ch.Reason + ")"
	}
	switch ch.New {
	case link.StateConnected:
		color.Green("◆ %s", line)
	case link.StateAuthFailed:
		color.Red("◆ %s", line)
	default:
		color.Yellow("◆ %s", line)
	}
}

// printEvent renders one gateway event: gray timestamp, colored topic,
// compact payload.
func printEvent(topic string, payload json.RawMessage) {
	ts := color.HiBlackString(time.Now().Format("15:04:05"))
	var tc *color.Color
	switch topic {
	case wire.TopicTradingEvent:
		tc = color.New(color.FgGreen)
	case wire.TopicBrowserUpdate:
		tc = color.New(color.FgCyan)
	case wire.TopicVaultIndex:
		tc = color.New(color.FgMagenta)
	default:
		tc = color.New(color.FgYellow)
	}
	fmt.Printf("%s %s %s\n", ts, tc.Sprintf("[%s]", topic), compactJSON(payload))
}

// compactJSON renders a payload on one line, truncated for the terminal.
func compactJSON(payload json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return string(payload)
	}
	s := buf.String()
	if len(s) > 200 {
		s = s[:197] + "..."
	}
	return s
}

// prettyJSON indents a payload for standalone display.
func prettyJSON(payload json.RawMessage) string {
	if len(payload) == 0 {
		return "(empty)"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return string(payload)
	}
	return buf.String()
}
