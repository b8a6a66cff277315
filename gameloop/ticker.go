// Package gameloop implements the Game-Loop Ticker: a timer capability that
// produces a raw {seq_no, elapsed_ms} tick at a configured frequency, reads
// the live shard registry from KV, and republishes the tick as a per-shard
// GameLoopTick on decs.<shard>.gameloop.
package gameloop

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"decs.evalgo.org/broker"
	"decs.evalgo.org/internal/decslog"
	"decs.evalgo.org/kv"
	"decs.evalgo.org/protocol"
)

// Ticker drives the per-shard tick loop. After Start returns, the dispatcher
// (the effective tick period) is read-only; there is no other in-process
// shared state.
type Ticker struct {
	kv     kv.Store
	broker broker.Broker
	log    *decslog.ContextLogger

	period time.Duration

	mu     sync.RWMutex
	seqNo  uint64
	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Ticker over store and bus. desiredFPS and maxFPS follow spec
// §6's TIMER_INTERVAL_FPS / TIMER_MAX_FPS configuration; the effective
// period is max(1000/maxFPS, 1000/desiredFPS) ms, so TIMER_MAX_FPS bounds
// the fastest the ticker will ever run regardless of TIMER_INTERVAL_FPS.
func New(store kv.Store, bus broker.Broker, log *decslog.ContextLogger, desiredFPS, maxFPS int) *Ticker {
	if desiredFPS < 1 {
		desiredFPS = 1
	}
	if maxFPS < 1 {
		maxFPS = 1
	}
	periodMs := 1000 / maxFPS
	if alt := 1000 / desiredFPS; alt > periodMs {
		periodMs = alt
	}
	return &Ticker{
		kv:     store,
		broker: bus,
		log:    log,
		period: time.Duration(periodMs) * time.Millisecond,
	}
}

// Start runs the tick loop in a background goroutine until ctx is canceled
// or the returned teardown func is called; the teardown func blocks until
// the loop has exited.
func (t *Ticker) Start(ctx context.Context) func() {
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})

	go func() {
		defer close(t.doneCh)
		ticker := time.NewTicker(t.period)
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.stopCh:
				return
			case now := <-ticker.C:
				elapsed := now.Sub(last)
				last = now
				if err := t.tick(ctx, elapsed); err != nil {
					t.log.WithError(err).Warn("tick dispatch failed")
				}
			}
		}
	}()

	return func() {
		close(t.stopCh)
		<-t.doneCh
	}
}

func (t *Ticker) tick(ctx context.Context, elapsed time.Duration) error {
	t.mu.Lock()
	seqNo := t.seqNo
	t.seqNo++
	t.mu.Unlock()

	shards, err := t.kv.ListRange(ctx, protocol.ShardRegistryKey)
	if err != nil {
		return err
	}

	elapsedMs := uint32(elapsed.Milliseconds())
	for _, shard := range shards {
		tick := protocol.GameLoopTick{SeqNo: seqNo, ElapsedMs: elapsedMs, Shard: shard}
		payload, err := json.Marshal(tick)
		if err != nil {
			return err
		}
		if err := t.broker.Publish(ctx, subject(shard), payload); err != nil {
			return err
		}
	}
	return nil
}

func subject(shard string) string { return "decs." + shard + ".gameloop" }
