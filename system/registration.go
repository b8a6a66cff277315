package system

import (
	"context"
	"encoding/json"

	"decs.evalgo.org/internal/decserr"
	"decs.evalgo.org/kv"
	"decs.evalgo.org/protocol"
)

func (m *Manager) sendPing(ctx context.Context) error {
	body := protocol.RequestBody{ReplyTo: registryReplySubject}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return m.broker.Publish(ctx, registrySubject, payload)
}

// maybePing sends the registry heartbeat the first time seqNo crosses a
// pingEveryTicks boundary; a given seqNo may arrive once per shard, so this
// guards against re-pinging for the same tick.
func (m *Manager) maybePing(ctx context.Context, seqNo uint64) error {
	if seqNo%pingEveryTicks != 0 {
		return nil
	}
	m.mu.Lock()
	if int64(seqNo) == m.lastPingAt {
		m.mu.Unlock()
		return nil
	}
	m.lastPingAt = int64(seqNo)
	m.mu.Unlock()
	return m.sendPing(ctx)
}

func (m *Manager) handleRegistryReply(ctx context.Context, payload []byte) error {
	var sys protocol.System
	if err := json.Unmarshal(payload, &sys); err != nil {
		return err
	}
	if sys.Name == "" {
		return nil
	}

	_, err := m.kv.Get(ctx, detailKey(sys.Name))
	existed := true
	if err == kv.ErrNotFound {
		existed = false
	} else if err != nil {
		return err
	}

	raw, err := json.Marshal(sys)
	if err != nil {
		return err
	}
	if err := m.kv.Set(ctx, detailKey(sys.Name), raw, detailTTL); err != nil {
		return err
	}

	if !existed {
		length, err := m.kv.ListAdd(ctx, registryKey, sys.Name)
		if err != nil {
			return err
		}
		return m.publishEvent(ctx, "event.decs.systems.add", protocol.AddEvent{
			Value: protocol.RidRef{Rid: systemRID(sys.Name)},
			Idx:   length - 1,
		})
	}
	return m.publishEvent(ctx, "event."+systemRID(sys.Name)+".change", protocol.ChangeEvent{Values: raw})
}

func (m *Manager) handleGetCollection(ctx context.Context, body protocol.RequestBody) error {
	names, err := m.kv.ListRange(ctx, registryKey)
	if err != nil {
		return err
	}

	live := make([]protocol.RidRef, 0, len(names))
	for _, name := range names {
		if _, err := m.kv.Get(ctx, detailKey(name)); err == kv.ErrNotFound {
			// I5: prune any entry whose detail record has expired.
			if _, _, err := m.kv.ListDeleteItem(ctx, registryKey, name); err != nil {
				return err
			}
			continue
		} else if err != nil {
			return err
		}
		live = append(live, protocol.RidRef{Rid: systemRID(name)})
	}

	return m.reply(ctx, body.ReplyTo, protocol.ReplyWith(protocol.CollectionResult{Collection: live}))
}

func (m *Manager) handleGetSingle(ctx context.Context, name string, body protocol.RequestBody) error {
	raw, err := m.kv.Get(ctx, detailKey(name))
	if err == kv.ErrNotFound {
		code, message := decserr.ToProtocolError(decserr.NotFound("system.Get"))
		return m.reply(ctx, body.ReplyTo, protocol.ReplyError(code, message))
	}
	if err != nil {
		return err
	}
	var sys protocol.System
	if err := json.Unmarshal(raw, &sys); err != nil {
		return err
	}
	return m.reply(ctx, body.ReplyTo, protocol.ReplyWith(sys))
}
