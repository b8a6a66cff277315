package component

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"decs.evalgo.org/broker"
	"decs.evalgo.org/internal/decslog"
	"decs.evalgo.org/internal/healthsrv"
	"decs.evalgo.org/kv"
	"decs.evalgo.org/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *broker.MemBroker, kv.Store) {
	t.Helper()
	store := kv.NewMemStore()
	bus := broker.NewMemBroker()
	tracker := healthsrv.NewTracker("component-manager", 0)
	log := decslog.ServiceLogger("component-manager")
	return New(store, bus, tracker, log), bus, store
}

// collectOn subscribes to subject and returns a channel of decoded payloads.
func collectOn[T any](t *testing.T, bus *broker.MemBroker, subject string) <-chan T {
	t.Helper()
	out := make(chan T, 16)
	_, err := bus.Subscribe(context.Background(), subject, func(msg broker.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload, &v); err == nil {
			out <- v
		}
	})
	require.NoError(t, err)
	return out
}

func TestSetModelCreatesValueAndMembership(t *testing.T) {
	m, bus, store := newTestManager(t)
	ctx := context.Background()

	changes := collectOn[protocol.ChangeEvent](t, bus, "event.decs.components.the_void.player1.position.change")
	incrs := collectOn[protocol.RequestBody](t, bus, "call.decs.shard.the_void.incr")

	params, _ := json.Marshal(map[string]int{"x": 1, "y": 2})
	err := m.handleSet(ctx, "decs.components.the_void.player1.position", protocol.RequestBody{Params: params})
	require.NoError(t, err)

	select {
	case ev := <-changes:
		assert.JSONEq(t, `{"x":1,"y":2}`, string(ev.Values))
	case <-time.After(time.Second):
		t.Fatal("no change event")
	}

	select {
	case body := <-incrs:
		var p protocol.IncrParams
		require.NoError(t, json.Unmarshal(body.Params, &p))
		assert.Equal(t, int32(1), p.Amount)
	case <-time.After(time.Second):
		t.Fatal("no shard incr")
	}

	members, err := store.SetMembers(ctx, membershipKey("the_void", "position"))
	require.NoError(t, err)
	assert.Equal(t, []string{"player1"}, members)
}

func TestSetModelIdempotentSkipsChangeEvent(t *testing.T) {
	m, bus, _ := newTestManager(t)
	ctx := context.Background()

	changes := collectOn[protocol.ChangeEvent](t, bus, "event.decs.components.the_void.player1.position.change")

	params, _ := json.Marshal(map[string]int{"x": 1})
	require.NoError(t, m.handleSet(ctx, "decs.components.the_void.player1.position", protocol.RequestBody{Params: params}))
	<-changes // first change

	require.NoError(t, m.handleSet(ctx, "decs.components.the_void.player1.position", protocol.RequestBody{Params: params}))

	select {
	case <-changes:
		t.Fatal("unexpected second change event for identical value")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestGetModelNotFound(t *testing.T) {
	m, bus, _ := newTestManager(t)
	ctx := context.Background()

	var mu sync.Mutex
	var reply protocol.Reply
	got := make(chan struct{})
	_, err := bus.Subscribe(ctx, "_inbox.test", func(msg broker.Message) {
		mu.Lock()
		json.Unmarshal(msg.Payload, &reply)
		mu.Unlock()
		close(got)
	})
	require.NoError(t, err)

	err = m.handleGet(ctx, "decs.components.the_void.ghost.position", protocol.RequestBody{ReplyTo: "_inbox.test"})
	require.NoError(t, err)

	<-got
	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, reply.Error)
	assert.Equal(t, protocol.CodeNotFound, reply.Error.Code)
}

func TestCollectionLifecycle(t *testing.T) {
	m, bus, _ := newTestManager(t)
	ctx := context.Background()

	adds := collectOn[protocol.AddEvent](t, bus, "event.decs.components.the_void.player1.radar_contacts.add")
	removes := collectOn[protocol.RemoveEvent](t, bus, "event.decs.components.the_void.player1.radar_contacts.remove")

	p1, _ := json.Marshal(map[string]int{"foo": 1})
	err := m.handleNew(ctx, "decs.components.the_void.player1.radar_contacts", protocol.RequestBody{Params: p1})
	require.NoError(t, err)

	var add1 protocol.AddEvent
	select {
	case add1 = <-adds:
		assert.Equal(t, "decs.components.the_void.player1.radar_contacts.1", add1.Value.Rid)
		assert.Equal(t, 0, add1.Idx)
	case <-time.After(time.Second):
		t.Fatal("no add event")
	}

	p2, _ := json.Marshal(map[string]int{"foo": 2})
	require.NoError(t, m.handleNew(ctx, "decs.components.the_void.player1.radar_contacts", protocol.RequestBody{Params: p2}))

	var add2 protocol.AddEvent
	select {
	case add2 = <-adds:
		assert.Equal(t, "decs.components.the_void.player1.radar_contacts.2", add2.Value.Rid)
		assert.Equal(t, 1, add2.Idx)
	case <-time.After(time.Second):
		t.Fatal("no second add event")
	}

	delParams, _ := json.Marshal(protocol.DeleteParams{Rid: add1.Value.Rid})
	require.NoError(t, m.handleDelete(ctx, "decs.components.the_void.player1.radar_contacts", protocol.RequestBody{Params: delParams}))

	select {
	case rm := <-removes:
		assert.Equal(t, 0, rm.Idx)
	case <-time.After(time.Second):
		t.Fatal("no remove event")
	}
}

func TestDeleteModel(t *testing.T) {
	m, bus, store := newTestManager(t)
	ctx := context.Background()

	incrs := collectOn[protocol.RequestBody](t, bus, "call.decs.shard.the_void.incr")

	params, _ := json.Marshal(map[string]int{"x": 1})
	require.NoError(t, m.handleSet(ctx, "decs.components.the_void.player1.position", protocol.RequestBody{Params: params}))
	<-incrs

	require.NoError(t, m.handleDelete(ctx, "decs.components.the_void.player1.position", protocol.RequestBody{}))

	select {
	case body := <-incrs:
		var p protocol.IncrParams
		require.NoError(t, json.Unmarshal(body.Params, &p))
		assert.Equal(t, int32(-1), p.Amount)
	case <-time.After(time.Second):
		t.Fatal("no decrement incr")
	}

	_, err := store.Get(ctx, protocol.RIDToKey("decs.components.the_void.player1.position"))
	assert.ErrorIs(t, err, kv.ErrNotFound)

	members, err := store.SetMembers(ctx, membershipKey("the_void", "position"))
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestAccessAlwaysPermissive(t *testing.T) {
	m, bus, _ := newTestManager(t)
	ctx := context.Background()

	reply := make(chan protocol.Reply, 1)
	_, err := bus.Subscribe(ctx, "_inbox.access", func(msg broker.Message) {
		var r protocol.Reply
		json.Unmarshal(msg.Payload, &r)
		reply <- r
	})
	require.NoError(t, err)

	require.NoError(t, m.handleAccess(ctx, protocol.RequestBody{ReplyTo: "_inbox.access"}))

	select {
	case r := <-reply:
		result, ok := r.Result.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, true, result["get"])
		assert.Equal(t, "*", result["call"])
	case <-time.After(time.Second):
		t.Fatal("no access reply")
	}
}
