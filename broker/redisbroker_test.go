package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisBroker(t *testing.T) *RedisBroker {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisBrokerFromClient(client)
}

func TestSubjectToGlob(t *testing.T) {
	assert.Equal(t, "call.decs.components.*", subjectToGlob("call.decs.components.>"))
	assert.Equal(t, "call.decs.shard.[^.]*.incr", subjectToGlob("call.decs.shard.*.incr"))
	assert.Equal(t, "decs.shards", subjectToGlob("decs.shards"))
}

func TestRedisBrokerPublishSubscribe(t *testing.T) {
	b := newTestRedisBroker(t)
	ctx := context.Background()

	received := make(chan Message, 1)
	unsubscribe, err := b.Subscribe(ctx, "call.decs.components.>", func(msg Message) {
		received <- msg
	})
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, b.Publish(ctx, "call.decs.components.the_void.player1.position.set", []byte("payload")))

	select {
	case msg := <-received:
		assert.Equal(t, "call.decs.components.the_void.player1.position.set", msg.Subject)
		assert.Equal(t, "payload", string(msg.Payload))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestRedisBrokerRequest(t *testing.T) {
	b := newTestRedisBroker(t)
	ctx := context.Background()

	unsubscribe, err := b.Subscribe(ctx, "call.decs.shard.the_void.incr", func(msg Message) {
		_ = b.Publish(ctx, string(msg.Payload), []byte(`{"result":null}`))
	})
	require.NoError(t, err)
	defer unsubscribe()

	reply, err := b.Request(ctx, "call.decs.shard.the_void.incr", func(replyTo string) []byte {
		return []byte(replyTo)
	}, time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":null}`, string(reply))
}
