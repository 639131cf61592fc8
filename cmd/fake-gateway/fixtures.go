// ABOUTME: TOML fixtures for the fake gateway
// ABOUTME: Canned request responses and broadcast events loaded at startup

package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/2389/clawlink/internal/wire"
)

// fixtureFile is the on-disk shape:
//
//	[[response]]
//	method = "vault.search"
//	payload = '{"hits": []}'
//	delay = "150ms"
//
//	[[response]]
//	method = "orders.place"
//	ok = false
//	code = "bad_request"
//	message = "trading is disabled in demos"
//
//	[[event]]
//	topic = "trading-event"
//	payload = '{"symbol": "CLAW-USD", "price": 101.25}'
type fixtureFile struct {
	Response []fixtureResponse `toml:"response"`
	Event    []fixtureEvent    `toml:"event"`
}

type fixtureResponse struct {
	Method  string `toml:"method"`
	OK      *bool  `toml:"ok"` // omitted means true
	Payload string `toml:"payload"`
	Code    string `toml:"code"`
	Message string `toml:"message"`
	Delay   string `toml:"delay"`
}

type fixtureEvent struct {
	Topic   string `toml:"topic"`
	Payload string `toml:"payload"`
}

// canned is a parsed fixture response.
type canned struct {
	ok      bool
	payload json.RawMessage
	code    string
	message string
	delay   time.Duration
}

// broadcastEvent is a parsed fixture event, emitted in rotation by the
// broadcaster.
type broadcastEvent struct {
	topic   string
	payload json.RawMessage
}

// loadFixtures parses a TOML fixtures file into canned responses keyed by
// method plus the broadcast event rotation.
func loadFixtures(path string) (map[string]canned, []broadcastEvent, error) {
	var file fixtureFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, nil, fmt.Errorf("parsing fixtures: %w", err)
	}

	responses := make(map[string]canned, len(file.Response))
	for i, r := range file.Response {
		if r.Method == "" {
			return nil, nil, fmt.Errorf("response %d: method is required", i)
		}
		if r.Method == wire.MethodStateSync {
			return nil, nil, fmt.Errorf("response %d: %s is answered by the gateway itself", i, wire.MethodStateSync)
		}
		if _, dup := responses[r.Method]; dup {
			return nil, nil, fmt.Errorf("response %d: duplicate method %q", i, r.Method)
		}

		c := canned{
			ok:      r.OK == nil || *r.OK,
			code:    r.Code,
			message: r.Message,
		}
		if r.Payload != "" {
			if !json.Valid([]byte(r.Payload)) {
				return nil, nil, fmt.Errorf("response %d (%s): payload is not valid JSON", i, r.Method)
			}
			c.payload = json.RawMessage(r.Payload)
		}
		if !c.ok && c.code == "" {
			c.code = wire.CodeBadRequest
		}
		if r.Delay != "" {
			d, err := time.ParseDuration(r.Delay)
			if err != nil {
				return nil, nil, fmt.Errorf("response %d (%s): invalid delay: %w", i, r.Method, err)
			}
			if d < 0 {
				return nil, nil, fmt.Errorf("response %d (%s): negative delay", i, r.Method)
			}
			c.delay = d
		}
		responses[r.Method] = c
	}

	events := make([]broadcastEvent, 0, len(file.Event))
	for i, e := range file.Event {
		if e.Topic == "" {
			return nil, nil, fmt.Errorf("event %d: topic is required", i)
		}
		if !json.Valid([]byte(e.Payload)) {
			return nil, nil, fmt.Errorf("event %d (%s): payload is not valid JSON", i, e.Topic)
		}
		events = append(events, broadcastEvent{topic: e.Topic, payload: json.RawMessage(e.Payload)})
	}

	return responses, events, nil
}
