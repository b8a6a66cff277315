package system

import (
	"context"
	"encoding/json"
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

func newTestManager(t *testing.T) (*Manager, kv.Store, *broker.MemBroker) {
	t.Helper()
	store := kv.NewMemStore()
	bus := broker.NewMemBroker()
	tracker := healthsrv.NewTracker("system-manager", 0)
	log := decslog.ServiceLogger("system-manager")
	return New(store, bus, tracker, log), store, bus
}

func collectOn[T any](t *testing.T, bus *broker.MemBroker, subject string) <-chan T {
	t.Helper()
	out := make(chan T, 64)
	_, err := bus.Subscribe(context.Background(), subject, func(msg broker.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload, &v); err == nil {
			out <- v
		}
	})
	require.NoError(t, err)
	return out
}

func TestFrameModulus(t *testing.T) {
	assert.Equal(t, 1, frameModulus(100, 10))
	assert.Equal(t, 10, frameModulus(100, 1))
	assert.Equal(t, 1, frameModulus(100, 0))
}

func TestRegistryReplyFirstAddThenChange(t *testing.T) {
	m, _, bus := newTestManager(t)
	ctx := context.Background()

	adds := collectOn[protocol.AddEvent](t, bus, "event.decs.systems.add")
	changes := collectOn[protocol.ChangeEvent](t, bus, "event.decs.system.combat.change")

	sys1, _ := json.Marshal(protocol.System{Name: "combat", Framerate: 5, Components: []string{"hp"}})
	require.NoError(t, m.handleRegistryReply(ctx, sys1))

	select {
	case ev := <-adds:
		assert.Equal(t, "decs.system.combat", ev.Value.Rid)
		assert.Equal(t, 0, ev.Idx)
	case <-time.After(time.Second):
		t.Fatal("no add event")
	}

	sys2, _ := json.Marshal(protocol.System{Name: "combat", Framerate: 8, Components: []string{"hp"}})
	require.NoError(t, m.handleRegistryReply(ctx, sys2))

	select {
	case ev := <-changes:
		var s protocol.System
		require.NoError(t, json.Unmarshal(ev.Values, &s))
		assert.EqualValues(t, 8, s.Framerate)
	case <-time.After(time.Second):
		t.Fatal("no change event")
	}
}

func TestFrameDispatchIntersection(t *testing.T) {
	m, store, bus := newTestManager(t)
	ctx := context.Background()

	sys, _ := json.Marshal(protocol.System{Name: "physics", Framerate: 10, Components: []string{"pos", "vel"}})
	require.NoError(t, m.handleRegistryReply(ctx, sys))

	require.NoError(t, store.SetAdd(ctx, protocol.MembershipKey("the_void", "pos"), "e1"))
	require.NoError(t, store.SetAdd(ctx, protocol.MembershipKey("the_void", "vel"), "e1"))
	require.NoError(t, store.SetAdd(ctx, protocol.MembershipKey("the_void", "pos"), "e2"))

	frames := collectOn[protocol.EntityFrame](t, bus, "decs.frames.the_void.physics")

	require.NoError(t, m.handleTick(ctx, protocol.GameLoopTick{SeqNo: 0, ElapsedMs: 100, Shard: "the_void"}))

	select {
	case f := <-frames:
		assert.Equal(t, "e1", f.EntityID)
	case <-time.After(time.Second):
		t.Fatal("no frame dispatched")
	}

	select {
	case f := <-frames:
		t.Fatalf("unexpected extra frame for %s", f.EntityID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFrameDispatchRateGating(t *testing.T) {
	m, store, bus := newTestManager(t)
	ctx := context.Background()

	sys, _ := json.Marshal(protocol.System{Name: "physics", Framerate: 1, Components: []string{"pos"}})
	require.NoError(t, m.handleRegistryReply(ctx, sys))
	require.NoError(t, store.SetAdd(ctx, protocol.MembershipKey("the_void", "pos"), "e1"))

	frames := collectOn[protocol.EntityFrame](t, bus, "decs.frames.the_void.physics")

	// modulus = 1000/100/1 = 10; seq_no=5 should be skipped.
	require.NoError(t, m.handleTick(ctx, protocol.GameLoopTick{SeqNo: 5, ElapsedMs: 100, Shard: "the_void"}))
	select {
	case <-frames:
		t.Fatal("frame dispatched on non-aligned tick")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, m.handleTick(ctx, protocol.GameLoopTick{SeqNo: 10, ElapsedMs: 100, Shard: "the_void"}))
	select {
	case f := <-frames:
		assert.Equal(t, uint32(1000), f.ElapsedMs)
	case <-time.After(time.Second):
		t.Fatal("no frame on aligned tick")
	}
}

func TestGetCollectionPrunesExpiredEntries(t *testing.T) {
	m, store, bus := newTestManager(t)
	ctx := context.Background()

	sys, _ := json.Marshal(protocol.System{Name: "ghost", Framerate: 1, Components: nil})
	require.NoError(t, m.handleRegistryReply(ctx, sys))
	require.NoError(t, store.Delete(ctx, detailKey("ghost")))

	reply := make(chan protocol.Reply, 1)
	_, err := bus.Subscribe(ctx, "_inbox.sys", func(msg broker.Message) {
		var r protocol.Reply
		json.Unmarshal(msg.Payload, &r)
		reply <- r
	})
	require.NoError(t, err)

	require.NoError(t, m.handleGetCollection(ctx, protocol.RequestBody{ReplyTo: "_inbox.sys"}))

	select {
	case r := <-reply:
		raw, _ := json.Marshal(r.Result)
		var cr protocol.CollectionResult
		require.NoError(t, json.Unmarshal(raw, &cr))
		assert.Empty(t, cr.Collection)
	case <-time.After(time.Second):
		t.Fatal("no reply")
	}

	names, err := store.ListRange(ctx, registryKey)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMaybePingDedupesPerSeqNo(t *testing.T) {
	m, _, bus := newTestManager(t)
	ctx := context.Background()

	pings := collectOn[protocol.RequestBody](t, bus, registrySubject)

	require.NoError(t, m.maybePing(ctx, 200))
	require.NoError(t, m.maybePing(ctx, 200))

	select {
	case body := <-pings:
		assert.Equal(t, registryReplySubject, body.ReplyTo)
	case <-time.After(time.Second):
		t.Fatal("no ping sent")
	}

	select {
	case <-pings:
		t.Fatal("unexpected second ping for same seq_no")
	case <-time.After(50 * time.Millisecond):
	}
}
