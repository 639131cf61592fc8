// ABOUTME: Bounded in-memory ledger of console session traffic
// ABOUTME: Renders to markdown and, via goldmark, to a standalone HTML page

package transcript

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/yuin/goldmark"
)

// Kind classifies a ledger entry.
type Kind string

const (
	KindState    Kind = "state"    // link state transition
	KindSent     Kind = "sent"     // command or request sent to the gateway
	KindResponse Kind = "response" // reply to a request
	KindEvent    Kind = "event"    // topic broadcast from the gateway
	KindNote     Kind = "note"     // operator-entered annotation
)

// Entry is one recorded moment of a console session.
type Entry struct {
	At    time.Time
	Kind  Kind
	Label string // method, topic, or transition, depending on Kind
	Body  string // payload or free text; may be empty or multiline
}

// Ledger keeps the most recent entries of a session, oldest first. Once
// capacity is reached, appending drops the oldest entry. Safe for concurrent
// use; link handlers append while the console reads.
type Ledger struct {
	mu       sync.Mutex
	entries  []Entry
	start    int // index of the oldest entry
	count    int
	capacity int
	openedAt time.Time
	dropped  int
}

// NewLedger creates a ledger holding at most capacity entries. Capacity
// values below 1 fall back to 1.
func NewLedger(capacity int) *Ledger {
	if capacity < 1 {
		capacity = 1
	}
	return &Ledger{
		entries:  make([]Entry, capacity),
		capacity: capacity,
		openedAt: time.Now(),
	}
}

// Append records one entry, timestamping it now when At is zero.
func (l *Ledger) Append(e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == l.capacity {
		l.entries[l.start] = e
		l.start = (l.start + 1) % l.capacity
		l.dropped++
		return
	}
	l.entries[(l.start+l.count)%l.capacity] = e
	l.count++
}

// Entries returns a copy of the ledger, oldest first.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Entry, l.count)
	for i := 0; i < l.count; i++ {
		out[i] = l.entries[(l.start+i)%l.capacity]
	}
	return out
}

// Len reports the number of retained entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// Markdown renders the ledger as a markdown document.
func (l *Ledger) Markdown() []byte {
	l.mu.Lock()
	entries := make([]Entry, l.count)
	for i := 0; i < l.count; i++ {
		entries[i] = l.entries[(l.start+i)%l.capacity]
	}
	openedAt := l.openedAt
	dropped := l.dropped
	l.mu.Unlock()

	var b strings.Builder
	b.WriteString("# Gateway console transcript\n\n")
	fmt.Fprintf(&b, "Session opened %s.\n\n", openedAt.Format(time.RFC3339))
	if dropped > 0 {
		fmt.Fprintf(&b, "%d earlier entries were dropped by the retention window.\n\n", dropped)
	}

	for _, e := range entries {
		fmt.Fprintf(&b, "- `%s` **%s** %s", e.At.Format("15:04:05"), e.Kind, e.Label)
		switch {
		case e.Body == "":
			b.WriteString("\n")
		case strings.Contains(e.Body, "\n"):
			b.WriteString("\n\n")
			b.WriteString("  ```\n")
			for _, line := range strings.Split(e.Body, "\n") {
				b.WriteString("  " + line + "\n")
			}
			b.WriteString("  ```\n")
		default:
			fmt.Fprintf(&b, ": `%s`\n", e.Body)
		}
	}
	return []byte(b.String())
}

// ExportHTML writes the transcript as a standalone HTML page.
func (l *Ledger) ExportHTML(w io.Writer) error {
	var body bytes.Buffer
	if err := goldmark.Convert(l.Markdown(), &body); err != nil {
		return fmt.Errorf("rendering transcript: %w", err)
	}

	if _, err := io.WriteString(w, htmlHeader); err != nil {
		return err
	}
	if _, err := body.WriteTo(w); err != nil {
		return err
	}
	_, err := io.WriteString(w, htmlFooter)
	return err
}

const htmlHeader = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Gateway console transcript</title>
<style>
body { font-family: monospace; max-width: 70rem; margin: 2rem auto; padding: 0 1rem; }
code { background: #f2f2f2; padding: 0 0.2rem; }
pre { background: #f2f2f2; padding: 0.5rem; overflow-x: auto; }
</style>
</head>
<body>
`

const htmlFooter = `</body>
</html>
`
