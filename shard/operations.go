package shard

import (
	"context"
	"encoding/json"

	"decs.evalgo.org/internal/decserr"
	"decs.evalgo.org/kv"
	"decs.evalgo.org/protocol"
)

func existsInList(ctx context.Context, store kv.Store, key, value string) (bool, error) {
	items, err := store.ListRange(ctx, key)
	if err != nil {
		return false, err
	}
	for _, v := range items {
		if v == value {
			return true, nil
		}
	}
	return false, nil
}

// currentCount reads a shard's live component count without mutating it, by
// issuing a zero-delta atomic-add (uniform across every Store backend,
// unlike a plain Get which each backend represents differently).
func (m *Manager) currentCount(ctx context.Context, name string) (int64, error) {
	return m.kv.AtomicAdd(ctx, countKey(name), 0)
}

func (m *Manager) loadShard(ctx context.Context, name string) (protocol.Shard, error) {
	raw, err := m.kv.Get(ctx, shardKey(name))
	if err != nil {
		return protocol.Shard{}, err
	}
	var s protocol.Shard
	if err := json.Unmarshal(raw, &s); err != nil {
		return protocol.Shard{}, err
	}
	current, err := m.currentCount(ctx, name)
	if err != nil {
		return protocol.Shard{}, err
	}
	s.Current = uint32(current)
	return s, nil
}

func (m *Manager) createShard(ctx context.Context, name string, capacity uint32) (protocol.Shard, error) {
	s := protocol.Shard{Name: name, Capacity: capacity, Current: 0}
	raw, err := json.Marshal(s)
	if err != nil {
		return protocol.Shard{}, err
	}
	if err := m.kv.Set(ctx, shardKey(name), raw, 0); err != nil {
		return protocol.Shard{}, err
	}
	length, err := m.kv.ListAdd(ctx, registryKey, name)
	if err != nil {
		return protocol.Shard{}, err
	}
	idx := length - 1
	if err := m.publishEvent(ctx, "event.decs.shards.add", protocol.AddEvent{
		Value: protocol.RidRef{Rid: shardRID(name)},
		Idx:   idx,
	}); err != nil {
		return protocol.Shard{}, err
	}
	return s, nil
}

func (m *Manager) handleGetCollection(ctx context.Context, body protocol.RequestBody) error {
	names, err := m.kv.ListRange(ctx, registryKey)
	if err != nil {
		return err
	}

	if len(names) == 0 {
		if _, err := m.createShard(ctx, defaultShard, defaultCap); err != nil {
			return err
		}
		names = []string{defaultShard}
	}

	refs := make([]protocol.RidRef, 0, len(names))
	for _, n := range names {
		refs = append(refs, protocol.RidRef{Rid: shardRID(n)})
	}
	return m.reply(ctx, body.ReplyTo, protocol.ReplyWith(protocol.CollectionResult{Collection: refs}))
}

func (m *Manager) handleGetSingle(ctx context.Context, name string, body protocol.RequestBody) error {
	s, err := m.loadShard(ctx, name)
	if err == kv.ErrNotFound {
		code, message := decserr.ToProtocolError(decserr.NotFound("shard.Get"))
		return m.reply(ctx, body.ReplyTo, protocol.ReplyError(code, message))
	}
	if err != nil {
		return err
	}
	return m.reply(ctx, body.ReplyTo, protocol.ReplyWith(s))
}

func (m *Manager) handleSet(ctx context.Context, name string, body protocol.RequestBody) error {
	var in protocol.Shard
	if len(body.Params) > 0 {
		if err := json.Unmarshal(body.Params, &in); err != nil {
			return err
		}
	}
	if in.Capacity == 0 {
		in.Capacity = defaultCap
	}

	existed, err := existsInList(ctx, m.kv, registryKey, name)
	if err != nil {
		return err
	}

	if !existed {
		if _, err := m.createShard(ctx, name, in.Capacity); err != nil {
			return err
		}
		return m.reply(ctx, body.ReplyTo, protocol.ReplySuccess())
	}

	current, err := m.currentCount(ctx, name)
	if err != nil {
		return err
	}
	s := protocol.Shard{Name: name, Capacity: in.Capacity, Current: uint32(current)}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := m.kv.Set(ctx, shardKey(name), raw, 0); err != nil {
		return err
	}
	if err := m.publishEvent(ctx, "event."+shardRID(name)+".change", protocol.ChangeEvent{Values: raw}); err != nil {
		return err
	}
	return m.reply(ctx, body.ReplyTo, protocol.ReplySuccess())
}

func (m *Manager) handleIncr(ctx context.Context, name string, body protocol.RequestBody) error {
	var params protocol.IncrParams
	if len(body.Params) > 0 {
		if err := json.Unmarshal(body.Params, &params); err != nil {
			return err
		}
	}

	if params.Amount == 0 {
		return m.reply(ctx, body.ReplyTo, protocol.ReplySuccess())
	}

	newCount, err := m.kv.AtomicAdd(ctx, countKey(name), int64(params.Amount))
	if err != nil {
		return err
	}

	raw, err := m.kv.Get(ctx, shardKey(name))
	if err != nil && err != kv.ErrNotFound {
		return err
	}
	var s protocol.Shard
	if err == nil {
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
	} else {
		s = protocol.Shard{Name: name, Capacity: defaultCap}
	}
	s.Current = uint32(newCount)

	updated, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := m.kv.Set(ctx, shardKey(name), updated, 0); err != nil {
		return err
	}
	if err := m.publishEvent(ctx, "event."+shardRID(name)+".change", protocol.ChangeEvent{Values: updated}); err != nil {
		return err
	}

	return m.reply(ctx, body.ReplyTo, protocol.ReplySuccess())
}
