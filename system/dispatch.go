package system

import (
	"context"
	"encoding/json"

	"decs.evalgo.org/kv"
	"decs.evalgo.org/protocol"
)

func (m *Manager) handleTick(ctx context.Context, tick protocol.GameLoopTick) error {
	if err := m.maybePing(ctx, tick.SeqNo); err != nil {
		return err
	}

	names, err := m.kv.ListRange(ctx, registryKey)
	if err != nil {
		return err
	}

	for _, name := range names {
		raw, err := m.kv.Get(ctx, detailKey(name))
		if err == kv.ErrNotFound {
			continue // I5: a silent system is simply skipped here; get.decs.systems prunes it
		}
		if err != nil {
			return err
		}
		var sys protocol.System
		if err := json.Unmarshal(raw, &sys); err != nil {
			return err
		}
		if err := m.dispatchSystem(ctx, tick, sys); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) dispatchSystem(ctx context.Context, tick protocol.GameLoopTick, sys protocol.System) error {
	modulus := frameModulus(tick.ElapsedMs, sys.Framerate)
	if tick.SeqNo%uint64(modulus) != 0 {
		return nil
	}

	keys := make([]string, 0, len(sys.Components))
	for _, c := range sys.Components {
		keys = append(keys, protocol.MembershipKey(tick.Shard, c))
	}
	entities, err := m.kv.SetIntersect(ctx, keys...)
	if err != nil {
		return err
	}

	subject := framesSubject(tick.Shard, sys.Name)
	for _, entityID := range entities {
		frame := protocol.EntityFrame{
			SeqNo:     tick.SeqNo,
			ElapsedMs: tick.ElapsedMs * uint32(modulus),
			Shard:     tick.Shard,
			EntityID:  entityID,
		}
		if err := m.publishEvent(ctx, subject, frame); err != nil {
			return err
		}
	}
	return nil
}

// frameModulus computes floor(1000 / elapsed_ms / framerate), clamped to at
// least 1 so every system fires on every tick in the degenerate case.
func frameModulus(elapsedMs, framerate uint32) int {
	if elapsedMs == 0 || framerate == 0 {
		return 1
	}
	m := 1000 / int(elapsedMs) / int(framerate)
	if m < 1 {
		m = 1
	}
	return m
}
