// Package link manages the persistent connection between the operator console
// and the gateway process.
//
// # Overview
//
// A Link owns one socket at a time and multiplexes four concerns over it:
// authentication, fire-and-forget commands, correlated request/response
// commands, and topic-scoped server-pushed events. The socket can drop and be
// re-established at any time while callers keep issuing commands.
//
// # State machine
//
// The Link is always in exactly one LinkState:
//
//   - StateDisconnected: no socket, or the socket closed
//   - StateDiscovering: socket opening, authentication unconfirmed
//   - StateConnected: authenticated and fully operational
//   - StateAuthFailed: the gateway explicitly rejected the credentials
//
// StateAuthFailed is sticky: the trailing socket close that follows an auth
// rejection does not downgrade the state to StateDisconnected. Only the next
// Connect, UpdateConfig, or Disconnect moves away from it. Every transition
// is published synchronously on the connection-status topic as a StateChange.
//
// # Sending
//
// Send is non-blocking with respect to delivery: while the link is not
// connected, frames are buffered in submission order and flushed exactly once
// when authentication succeeds, ahead of any command issued after the
// transition. Request requires a live connection and resolves with exactly
// one outcome: the correlated response, a timeout, or a link-closed failure
// when the socket dies first.
//
// # Receiving
//
// Inbound frames are classified by their type discriminator: auth lifecycle
// frames drive the state machine, responses resolve pending requests, events
// fan out to topic subscribers in subscription order. Unrecognized
// discriminators are dropped. Subscriber callbacks run on the link's dispatch
// goroutine; a callback that panics is recovered and logged without
// disturbing the rest of the notification batch.
//
// The Link never reconnects on its own. Callers observe the
// connection-status topic and apply their own retry policy.
package link
