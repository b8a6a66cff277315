package broker

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemBroker is an in-process fake of Broker, grounded on the teacher's
// mock-collaborator pattern: a single mutex-guarded registry of
// subscriptions, with each matching subscriber's handler run on its own
// goroutine per delivery. It is meant for fast unit tests of the domain
// packages, not production use.
type MemBroker struct {
	mu   sync.Mutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	re      *regexp.Regexp
	handler Handler
}

// NewMemBroker returns an empty MemBroker ready for use.
func NewMemBroker() *MemBroker {
	return &MemBroker{subs: make(map[int]*subscription)}
}

// subjectToRegexp compiles the decs wildcard grammar ("*" for one token, ">"
// for the remainder) into an anchored regular expression.
func subjectToRegexp(pattern string) *regexp.Regexp {
	tokens := strings.Split(pattern, ".")
	var parts []string
	for _, tok := range tokens {
		switch tok {
		case "*":
			parts = append(parts, `[^.]+`)
		case ">":
			parts = append(parts, `.+`)
		default:
			parts = append(parts, regexp.QuoteMeta(tok))
		}
	}
	return regexp.MustCompile("^" + strings.Join(parts, `\.`) + "$")
}

func (b *MemBroker) Publish(ctx context.Context, subject string, payload []byte) error {
	b.mu.Lock()
	var matched []Handler
	for _, sub := range b.subs {
		if sub.re.MatchString(subject) {
			matched = append(matched, sub.handler)
		}
	}
	b.mu.Unlock()

	for _, h := range matched {
		go h(Message{Subject: subject, Payload: payload})
	}
	return nil
}

func (b *MemBroker) Subscribe(ctx context.Context, pattern string, handler Handler) (func() error, error) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{re: subjectToRegexp(pattern), handler: handler}
	b.mu.Unlock()

	unsubscribe := func() error {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		return nil
	}
	return unsubscribe, nil
}

func (b *MemBroker) NewInbox() string {
	return "_inbox." + uuid.NewString()
}

func (b *MemBroker) Request(ctx context.Context, subject string, buildPayload func(replyTo string) []byte, timeout time.Duration) ([]byte, error) {
	inbox := b.NewInbox()
	reply := make(chan []byte, 1)

	unsubscribe, err := b.Subscribe(ctx, inbox, func(msg Message) {
		select {
		case reply <- msg.Payload:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer unsubscribe()

	if err := b.Publish(ctx, subject, buildPayload(inbox)); err != nil {
		return nil, err
	}

	select {
	case payload := <-reply:
		return payload, nil
	case <-time.After(timeout):
		return nil, ErrRequestTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *MemBroker) Close() error { return nil }
