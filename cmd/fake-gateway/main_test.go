// ABOUTME: Tests for fake gateway fixture parsing and credential checking
// ABOUTME: Covers the TOML fixture shapes and every authentication mode

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/2389/clawlink/internal/auth"
	"github.com/2389/clawlink/internal/wire"
)

func writeFixtures(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixtures: %v", err)
	}
	return path
}

func TestLoadFixtures(t *testing.T) {
	path := writeFixtures(t, `
[[response]]
method = "vault.search"
payload = '{"hits": []}'
delay = "150ms"

[[response]]
method = "orders.place"
ok = false
message = "trading is disabled in demos"

[[event]]
topic = "trading-event"
payload = '{"symbol": "CLAW-USD", "price": 101.25}'
`)

	responses, events, err := loadFixtures(path)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	search, ok := responses["vault.search"]
	if !ok {
		t.Fatal("vault.search fixture missing")
	}
	if !search.ok {
		t.Error("omitted ok should default to true")
	}
	if string(search.payload) != `{"hits": []}` {
		t.Errorf("payload = %s", search.payload)
	}
	if search.delay != 150*time.Millisecond {
		t.Errorf("delay = %v, want 150ms", search.delay)
	}

	place, ok := responses["orders.place"]
	if !ok {
		t.Fatal("orders.place fixture missing")
	}
	if place.ok {
		t.Error("ok = false fixture parsed as success")
	}
	if place.code != wire.CodeBadRequest {
		t.Errorf("code = %q, want default %q", place.code, wire.CodeBadRequest)
	}
	if place.message != "trading is disabled in demos" {
		t.Errorf("message = %q", place.message)
	}

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].topic != "trading-event" {
		t.Errorf("event topic = %q", events[0].topic)
	}
}

func TestLoadFixtures_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing method",
			content: "[[response]]\npayload = '{}'",
			wantErr: "method is required",
		},
		{
			name:    "reserved method",
			content: "[[response]]\nmethod = \"state-sync\"",
			wantErr: "answered by the gateway itself",
		},
		{
			name:    "duplicate method",
			content: "[[response]]\nmethod = \"a\"\n\n[[response]]\nmethod = \"a\"",
			wantErr: "duplicate method",
		},
		{
			name:    "payload not json",
			content: "[[response]]\nmethod = \"a\"\npayload = \"not json\"",
			wantErr: "not valid JSON",
		},
		{
			name:    "bad delay",
			content: "[[response]]\nmethod = \"a\"\ndelay = \"soon\"",
			wantErr: "invalid delay",
		},
		{
			name:    "event without topic",
			content: "[[event]]\npayload = '{}'",
			wantErr: "topic is required",
		},
		{
			name:    "event payload not json",
			content: "[[event]]\ntopic = \"t\"\npayload = \"nope\"",
			wantErr: "not valid JSON",
		},
		{
			name:    "not toml",
			content: "{\"json\": true}",
			wantErr: "parsing fixtures",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFixtures(t, tt.content)
			_, _, err := loadFixtures(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func authParams(token, email, password string) wire.AuthParams {
	return wire.AuthParams{
		Token:       token,
		Email:       email,
		Password:    password,
		MinProtocol: wire.ProtocolVersion,
		MaxProtocol: wire.ProtocolVersion,
	}
}

func TestAuthenticate_JWTMode(t *testing.T) {
	verifier := auth.NewJWTVerifier([]byte("gateway-secret"))
	srv := &server{verifier: verifier}

	token, err := verifier.Generate("ops@example.com", time.Hour)
	if err != nil {
		t.Fatalf("generating token: %v", err)
	}

	subject, err := srv.authenticate(authParams(token, "", ""))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if subject != "ops@example.com" {
		t.Errorf("subject = %q, want ops@example.com", subject)
	}

	if _, err := srv.authenticate(authParams("garbage", "", "")); err == nil {
		t.Error("garbage token should be rejected")
	}

	other := auth.NewJWTVerifier([]byte("different-secret"))
	forged, err := other.Generate("intruder", time.Hour)
	if err != nil {
		t.Fatalf("generating forged token: %v", err)
	}
	if _, err := srv.authenticate(authParams(forged, "", "")); err == nil {
		t.Error("token signed with another secret should be rejected")
	}
}

func TestAuthenticate_LiteralTokenMode(t *testing.T) {
	srv := &server{token: "sesame"}

	subject, err := srv.authenticate(authParams("sesame", "", ""))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if subject != "operator" {
		t.Errorf("subject = %q, want operator", subject)
	}

	if _, err := srv.authenticate(authParams("wrong", "", "")); err == nil {
		t.Error("wrong token should be rejected")
	}
	if _, err := srv.authenticate(authParams("", "", "")); err == nil {
		t.Error("empty token should be rejected")
	}
}

func TestAuthenticate_EmailMode(t *testing.T) {
	srv := &server{email: "ops@example.com", password: "hunter2"}

	subject, err := srv.authenticate(authParams("", "ops@example.com", "hunter2"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if subject != "ops@example.com" {
		t.Errorf("subject = %q", subject)
	}

	if _, err := srv.authenticate(authParams("", "ops@example.com", "wrong")); err == nil {
		t.Error("wrong password should be rejected")
	}
	if _, err := srv.authenticate(authParams("", "other@example.com", "hunter2")); err == nil {
		t.Error("wrong email should be rejected")
	}
}

func TestAuthenticate_DemoMode(t *testing.T) {
	srv := &server{}

	if _, err := srv.authenticate(authParams("anything", "", "")); err != nil {
		t.Errorf("demo mode should accept any token: %v", err)
	}
	subject, err := srv.authenticate(authParams("", "who@example.com", "pw"))
	if err != nil {
		t.Fatalf("demo mode should accept any email: %v", err)
	}
	if subject != "who@example.com" {
		t.Errorf("subject = %q", subject)
	}
	if _, err := srv.authenticate(authParams("", "", "")); err == nil {
		t.Error("even demo mode requires some credential")
	}
}

func TestAuthenticate_ProtocolMismatch(t *testing.T) {
	srv := &server{token: "sesame"}

	params := authParams("sesame", "", "")
	params.MinProtocol = wire.ProtocolVersion + 1
	params.MaxProtocol = wire.ProtocolVersion + 1
	if _, err := srv.authenticate(params); err == nil {
		t.Error("newer-only client should be rejected")
	}

	params = authParams("sesame", "", "")
	params.MinProtocol = 0
	params.MaxProtocol = 0
	if _, err := srv.authenticate(params); err == nil {
		t.Error("client announcing no protocol range should be rejected")
	}
}

func TestEventFrame_FixtureRotation(t *testing.T) {
	srv := &server{events: []broadcastEvent{
		{topic: "trading-event", payload: []byte(`{"n":1}`)},
		{topic: "browser-update", payload: []byte(`{"n":2}`)},
	}}

	if f := srv.eventFrame(0); f.Event != "trading-event" {
		t.Errorf("frame 0 topic = %q", f.Event)
	}
	if f := srv.eventFrame(1); f.Event != "browser-update" {
		t.Errorf("frame 1 topic = %q", f.Event)
	}
	if f := srv.eventFrame(2); f.Event != "trading-event" {
		t.Errorf("frame 2 topic = %q, rotation should wrap", f.Event)
	}
}

func TestEventFrame_DefaultsAlternate(t *testing.T) {
	srv := &server{}

	if f := srv.eventFrame(0); f.Event != wire.TopicTradingEvent {
		t.Errorf("frame 0 topic = %q", f.Event)
	}
	if f := srv.eventFrame(1); f.Event != wire.TopicBrowserUpdate {
		t.Errorf("frame 1 topic = %q", f.Event)
	}
}
