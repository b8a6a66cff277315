package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisBroker implements Broker on top of Redis Pub/Sub, generalizing the
// teacher's RedisRepository.Publish/Subscribe pair (db/repository/redis.go)
// from a single fixed channel into arbitrary, pattern-matched subjects via
// PSUBSCRIBE.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker dials url and verifies the connection.
func NewRedisBroker(ctx context.Context, url string) (*RedisBroker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("broker: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("broker: connect: %w", err)
	}
	return &RedisBroker{client: client}, nil
}

// NewRedisBrokerFromClient wraps an already-constructed client, used by
// tests to point at a miniredis instance.
func NewRedisBrokerFromClient(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

func (b *RedisBroker) Publish(ctx context.Context, subject string, payload []byte) error {
	return b.client.Publish(ctx, subject, payload).Err()
}

// subjectToGlob translates the dot-delimited subject wildcard syntax used
// throughout the decs subject grammar ("*" for exactly one token, ">" for
// the remainder) into the bracket-class glob Redis' PSUBSCRIBE understands.
// A Redis glob cannot confine "*" to a single token: "[^.]*" requires the
// token's first character to be a non-dot, and the trailing "*" then matches
// any characters, dots included.
func subjectToGlob(pattern string) string {
	tokens := strings.Split(pattern, ".")
	var out []string
	for _, tok := range tokens {
		switch tok {
		case "*":
			out = append(out, "[^.]*")
		case ">":
			out = append(out, "*")
		default:
			out = append(out, tok)
		}
	}
	return strings.Join(out, ".")
}

func (b *RedisBroker) Subscribe(ctx context.Context, pattern string, handler Handler) (func() error, error) {
	glob := subjectToGlob(pattern)
	pubsub := b.client.PSubscribe(ctx, glob)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("broker: subscribe %s: %w", pattern, err)
	}

	ch := pubsub.Channel()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				go handler(Message{Subject: msg.Channel, Payload: []byte(msg.Payload)})
			case <-done:
				return
			}
		}
	}()

	unsubscribe := func() error {
		close(done)
		return pubsub.Close()
	}
	return unsubscribe, nil
}

func (b *RedisBroker) NewInbox() string {
	return "_inbox." + uuid.NewString()
}

func (b *RedisBroker) Request(ctx context.Context, subject string, buildPayload func(replyTo string) []byte, timeout time.Duration) ([]byte, error) {
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

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
