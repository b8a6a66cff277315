// Package broker defines the subject-routed publish/subscribe contract the
// decs services use to exchange requests, replies, and change events (spec
// §1, §4), and provides a Redis-backed implementation plus an in-memory fake
// for tests.
package broker

import (
	"context"
	"errors"
	"time"
)

// ErrRequestTimeout is returned by Request when no reply arrives within the
// given timeout.
var ErrRequestTimeout = errors.New("broker: request timed out waiting for reply")

// Message is one delivery handed to a Handler: the subject it was published
// on (which, for a pattern subscription, may be more specific than the
// pattern subscribed to) and its raw payload.
type Message struct {
	Subject string
	Payload []byte
}

// Handler processes one delivered Message. Handlers run on their own
// goroutine per delivery; a slow handler does not block delivery of other
// messages.
type Handler func(msg Message)

// Broker is the capability surface every decs service needs from the shared
// message bus: fire-and-forget publish, pattern subscription, and a
// request/reply helper built out of the two (spec §4's "reply on a
// per-request subject" pattern).
type Broker interface {
	// Publish sends payload to every current subscriber of subject.
	Publish(ctx context.Context, subject string, payload []byte) error

	// Subscribe registers handler for every subject matching pattern
	// (patterns use the decs wildcard grammar: "*" for one token, ">" for
	// the remainder; the Redis implementation translates them into
	// PSUBSCRIBE glob patterns). It returns an unsubscribe function.
	Subscribe(ctx context.Context, pattern string, handler Handler) (unsubscribe func() error, err error)

	// Request subscribes to a freshly generated reply subject, calls
	// buildPayload with that subject so the caller can embed it in the
	// envelope's reply_to field, publishes the result on subject, and waits
	// up to timeout for the first message delivered on the reply subject.
	// It is a convenience wrapper around Subscribe + Publish for the
	// call/reply pattern (spec §4.1's dispatch table).
	Request(ctx context.Context, subject string, buildPayload func(replyTo string) []byte, timeout time.Duration) ([]byte, error)

	// NewInbox returns a fresh, unique subject suitable for a single
	// request's reply, e.g. "_inbox.<uuid>".
	NewInbox() string

	Close() error
}
