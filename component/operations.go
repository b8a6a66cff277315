package component

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"decs.evalgo.org/internal/decserr"
	"decs.evalgo.org/kv"
	"decs.evalgo.org/protocol"
)

func (m *Manager) handleAccess(ctx context.Context, body protocol.RequestBody) error {
	return m.reply(ctx, body.ReplyTo, protocol.ReplyWith(map[string]interface{}{
		"get":  true,
		"call": "*",
	}))
}

func (m *Manager) handleGet(ctx context.Context, rid string, body protocol.RequestBody) error {
	key := protocol.RIDToKey(rid)

	tag, err := m.kv.Get(ctx, typeKey(key))
	if err != nil && err != kv.ErrNotFound {
		return err
	}

	if err == nil && string(tag) == typeCollection {
		children, err := m.kv.ListRange(ctx, key)
		if err != nil {
			return err
		}
		refs := make([]protocol.RidRef, 0, len(children))
		for _, c := range children {
			refs = append(refs, protocol.RidRef{Rid: c})
		}
		return m.reply(ctx, body.ReplyTo, protocol.ReplyWith(protocol.CollectionResult{Collection: refs}))
	}

	value, err := m.kv.Get(ctx, key)
	if err == kv.ErrNotFound {
		code, message := decserr.ToProtocolError(decserr.NotFound("component.Get"))
		return m.reply(ctx, body.ReplyTo, protocol.ReplyError(code, message))
	}
	if err != nil {
		return err
	}
	return m.reply(ctx, body.ReplyTo, protocol.ReplyWith(protocol.ModelResult{Model: json.RawMessage(value)}))
}

func (m *Manager) handleSet(ctx context.Context, rid string, body protocol.RequestBody) error {
	if len(body.Params) == 0 {
		m.log.WithField("rid", rid).Warn("no message payload")
		return fmt.Errorf("component: set %s: no message payload", rid)
	}

	release := m.locks.Lock(rid)
	defer release()

	shard, entity, comp, ok := protocol.SplitComponentRID(rid)
	if !ok {
		m.log.WithField("rid", rid).Warn("poorly formed resource id")
		return fmt.Errorf("component: set: malformed rid %s", rid)
	}
	key := protocol.RIDToKey(rid)

	existing, err := m.kv.Get(ctx, key)
	existed := true
	if err == kv.ErrNotFound {
		existed = false
	} else if err != nil {
		return err
	}

	if err := m.kv.Set(ctx, typeKey(key), []byte(typeModel), 0); err != nil {
		return err
	}
	if err := m.kv.SetAdd(ctx, membershipKey(shard, comp), entity); err != nil {
		return err
	}
	if err := m.kv.Set(ctx, key, body.Params, 0); err != nil {
		return err
	}

	if !existed {
		if err := m.incrShard(ctx, shard, 1); err != nil {
			return err
		}
	}

	if !existed || !bytes.Equal(existing, body.Params) {
		if err := m.publishEvent(ctx, "event."+rid+".change", protocol.ChangeEvent{Values: body.Params}); err != nil {
			return err
		}
	}

	return m.reply(ctx, body.ReplyTo, protocol.ReplySuccess())
}

func (m *Manager) handleNew(ctx context.Context, parentRID string, body protocol.RequestBody) error {
	if len(body.Params) == 0 {
		m.log.WithField("rid", parentRID).Warn("no message payload")
		return fmt.Errorf("component: new %s: no message payload", parentRID)
	}

	release := m.locks.Lock(parentRID)
	defer release()

	shard, entity, comp, ok := protocol.SplitComponentRID(parentRID)
	if !ok {
		m.log.WithField("rid", parentRID).Warn("poorly formed resource id")
		return fmt.Errorf("component: new: malformed rid %s", parentRID)
	}
	parentKey := protocol.RIDToKey(parentRID)

	subID, err := m.kv.AtomicAdd(ctx, idCounterKey(parentKey), 1)
	if err != nil {
		return err
	}
	childRID := parentRID + "." + strconv.FormatInt(subID, 10)
	childKey := protocol.RIDToKey(childRID)

	if err := m.kv.Set(ctx, typeKey(childKey), []byte(typeModel), 0); err != nil {
		return err
	}
	if err := m.kv.Set(ctx, childKey, body.Params, 0); err != nil {
		return err
	}

	length, err := m.kv.ListAdd(ctx, parentKey, childRID)
	if err != nil {
		return err
	}
	idx := length - 1

	if err := m.kv.Set(ctx, typeKey(parentKey), []byte(typeCollection), 0); err != nil {
		return err
	}
	if err := m.kv.SetAdd(ctx, membershipKey(shard, comp), entity); err != nil {
		return err
	}
	if err := m.incrShard(ctx, shard, 1); err != nil {
		return err
	}

	if err := m.publishEvent(ctx, "event."+parentRID+".add", protocol.AddEvent{
		Value: protocol.RidRef{Rid: childRID},
		Idx:   idx,
	}); err != nil {
		return err
	}

	return m.reply(ctx, body.ReplyTo, protocol.ReplyWith(protocol.NewResult{Rid: childRID}))
}

func (m *Manager) handleDelete(ctx context.Context, rid string, body protocol.RequestBody) error {
	release := m.locks.Lock(rid)
	defer release()

	key := protocol.RIDToKey(rid)
	tag, err := m.kv.Get(ctx, typeKey(key))
	if err != nil && err != kv.ErrNotFound {
		return err
	}

	if err == nil && string(tag) == typeCollection {
		return m.deleteCollectionItem(ctx, rid, key, body)
	}
	return m.deleteModel(ctx, rid, key, body.ReplyTo)
}

func (m *Manager) deleteModel(ctx context.Context, rid, key, replyTo string) error {
	shard, entity, comp, ok := protocol.SplitComponentRID(rid)
	if !ok {
		m.log.WithField("rid", rid).Warn("poorly formed resource id")
		return fmt.Errorf("component: delete: malformed rid %s", rid)
	}

	if err := m.kv.Delete(ctx, key); err != nil {
		return err
	}
	if err := m.kv.Delete(ctx, typeKey(key)); err != nil {
		return err
	}
	if err := m.kv.SetRemove(ctx, membershipKey(shard, comp), entity); err != nil {
		return err
	}
	if err := m.incrShard(ctx, shard, -1); err != nil {
		return err
	}

	return m.reply(ctx, replyTo, protocol.ReplySuccess())
}

func (m *Manager) deleteCollectionItem(ctx context.Context, parentRID, parentKey string, body protocol.RequestBody) error {
	var params protocol.DeleteParams
	if len(body.Params) == 0 {
		m.log.WithField("rid", parentRID).Warn("no message payload")
		return fmt.Errorf("component: delete %s: no message payload", parentRID)
	}
	if err := json.Unmarshal(body.Params, &params); err != nil {
		return err
	}

	shard, entity, comp, ok := protocol.SplitComponentRID(parentRID)
	if !ok {
		m.log.WithField("rid", parentRID).Warn("poorly formed resource id")
		return fmt.Errorf("component: delete: malformed rid %s", parentRID)
	}

	idx, found, err := m.kv.ListDeleteItem(ctx, parentKey, params.Rid)
	if err != nil {
		return err
	}
	if !found {
		return m.reply(ctx, body.ReplyTo, protocol.ReplyError(protocol.CodeNotFound, "No such collection item"))
	}

	childKey := protocol.RIDToKey(params.Rid)
	if err := m.kv.Delete(ctx, childKey); err != nil {
		return err
	}
	if err := m.kv.Delete(ctx, typeKey(childKey)); err != nil {
		return err
	}
	if err := m.kv.SetRemove(ctx, membershipKey(shard, comp), entity); err != nil {
		return err
	}
	if err := m.incrShard(ctx, shard, -1); err != nil {
		return err
	}

	if err := m.publishEvent(ctx, "event."+parentRID+".remove", protocol.RemoveEvent{Idx: idx}); err != nil {
		return err
	}

	return m.reply(ctx, body.ReplyTo, protocol.ReplySuccess())
}
