// Package shard implements the Shard Manager: it owns the shard registry
// and reconciles live component-count accounting via an atomic increment
// endpoint, so concurrent component writes never race on `current`.
package shard

import (
	"context"
	"encoding/json"
	"strings"

	"decs.evalgo.org/broker"
	"decs.evalgo.org/internal/decslog"
	"decs.evalgo.org/internal/healthsrv"
	"decs.evalgo.org/kv"
	"decs.evalgo.org/protocol"

	"github.com/google/uuid"
)

// Manager owns the shard registry and count reconciliation.
type Manager struct {
	kv      kv.Store
	broker  broker.Broker
	tracker *healthsrv.Tracker
	log     *decslog.ContextLogger
}

// New builds a Manager over store and bus.
func New(store kv.Store, bus broker.Broker, tracker *healthsrv.Tracker, log *decslog.ContextLogger) *Manager {
	return &Manager{kv: store, broker: bus, tracker: tracker, log: log}
}

var subjectPatterns = []string{
	"access.decs.shard.>",
	"get.decs.shard.>",
	"get.decs.shards",
	"call.decs.shard.>",
}

// Start subscribes to every relevant subject and returns a teardown func.
func (m *Manager) Start(ctx context.Context) (func() error, error) {
	var unsubs []func() error
	for _, pattern := range subjectPatterns {
		unsub, err := m.broker.Subscribe(ctx, pattern, m.dispatch(ctx))
		if err != nil {
			for _, u := range unsubs {
				u()
			}
			return nil, err
		}
		unsubs = append(unsubs, unsub)
	}
	return func() error {
		var firstErr error
		for _, u := range unsubs {
			if err := u(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}, nil
}

func (m *Manager) dispatch(ctx context.Context) broker.Handler {
	return func(msg broker.Message) {
		req, err := protocol.Parse(msg.Subject)
		if err != nil {
			m.log.WithField("subject", msg.Subject).WithError(err).Warn("poorly formed subject")
			return
		}

		var body protocol.RequestBody
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &body); err != nil {
				m.log.WithField("subject", msg.Subject).WithError(err).Warn("undecodable request body")
				return
			}
		}

		opID := uuid.NewString()
		switch {
		case req.Verb == protocol.VerbAccess:
			m.tracker.Track(opID, "access", func() error { return m.handleAccess(ctx, body) })
		case req.Verb == protocol.VerbGet && req.RID == "decs.shards":
			m.tracker.Track(opID, "get_collection", func() error { return m.handleGetCollection(ctx, body) })
		case req.Verb == protocol.VerbGet:
			name := strings.TrimPrefix(req.RID, "decs.shard.")
			m.tracker.Track(opID, "get", func() error { return m.handleGetSingle(ctx, name, body) })
		case req.Verb == protocol.VerbSet:
			name := strings.TrimPrefix(req.RID, "decs.shard.")
			m.tracker.Track(opID, "set", func() error { return m.handleSet(ctx, name, body) })
		case req.Verb == protocol.VerbCall && req.Method == "incr":
			name := strings.TrimPrefix(req.RID, "decs.shard.")
			m.tracker.Track(opID, "incr", func() error { return m.handleIncr(ctx, name, body) })
		default:
			m.log.WithField("subject", msg.Subject).Warn("unsupported shard verb")
		}
	}
}

func (m *Manager) reply(ctx context.Context, replyTo string, r protocol.Reply) error {
	if replyTo == "" {
		return nil
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return m.broker.Publish(ctx, replyTo, payload)
}

func (m *Manager) publishEvent(ctx context.Context, subject string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.broker.Publish(ctx, subject, payload)
}

func (m *Manager) handleAccess(ctx context.Context, body protocol.RequestBody) error {
	return m.reply(ctx, body.ReplyTo, protocol.ReplyWith(map[string]interface{}{
		"get":  true,
		"call": "*",
	}))
}
