// Package component implements the Component Manager: it translates the
// resource-protocol verb set {Access, Get, Set, New, Delete} into key-value
// mutations against component values and their membership/collection
// indices, and emits the corresponding change events.
package component

import (
	"context"
	"encoding/json"

	"decs.evalgo.org/broker"
	"decs.evalgo.org/internal/decslog"
	"decs.evalgo.org/internal/healthsrv"
	"decs.evalgo.org/internal/reslock"
	"decs.evalgo.org/kv"
	"decs.evalgo.org/protocol"

	"github.com/google/uuid"
)

// Manager owns the component value store and its indices.
type Manager struct {
	kv      kv.Store
	broker  broker.Broker
	tracker *healthsrv.Tracker
	log     *decslog.ContextLogger
	locks   *reslock.Striped
}

// New builds a Manager over store and bus.
func New(store kv.Store, bus broker.Broker, tracker *healthsrv.Tracker, log *decslog.ContextLogger) *Manager {
	return &Manager{
		kv:      store,
		broker:  bus,
		tracker: tracker,
		log:     log,
		locks:   reslock.New(64),
	}
}

// Subscriptions the manager needs from the broker (spec §6 consumed
// subjects for the component taxonomy).
var subjectPatterns = []string{
	"access.decs.components.>",
	"get.decs.components.>",
	"call.decs.components.>",
}

// Start subscribes to every relevant subject and returns a function that
// tears down all subscriptions.
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
		switch req.Verb {
		case protocol.VerbAccess:
			m.tracker.Track(opID, "access", func() error { return m.handleAccess(ctx, body) })
		case protocol.VerbGet:
			m.tracker.Track(opID, "get", func() error { return m.handleGet(ctx, req.RID, body) })
		case protocol.VerbSet:
			m.tracker.Track(opID, "set", func() error { return m.handleSet(ctx, req.RID, body) })
		case protocol.VerbNew:
			m.tracker.Track(opID, "new", func() error { return m.handleNew(ctx, req.RID, body) })
		case protocol.VerbDelete:
			m.tracker.Track(opID, "delete", func() error { return m.handleDelete(ctx, req.RID, body) })
		default:
			m.log.WithField("subject", msg.Subject).Warn("unsupported component verb")
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

func (m *Manager) incrShard(ctx context.Context, shard string, amount int32) error {
	if amount == 0 {
		return nil
	}
	params, err := json.Marshal(protocol.IncrParams{Amount: amount})
	if err != nil {
		return err
	}
	body := protocol.RequestBody{Params: params}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return m.broker.Publish(ctx, incrSubject(shard), payload)
}
