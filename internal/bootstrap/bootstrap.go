// Package bootstrap wires the ambient stack every decs cmd/ binary needs:
// KV store selection, broker connection, logging, and the health server.
package bootstrap

import (
	"context"
	"fmt"

	"decs.evalgo.org/broker"
	"decs.evalgo.org/internal/decslog"
	"decs.evalgo.org/internal/healthsrv"
	"decs.evalgo.org/internal/secretmask"
	"decs.evalgo.org/internal/svcconfig"
	"decs.evalgo.org/kv"
)

// Services bundles the ambient collaborators a service main() needs, plus a
// Close that tears down the broker connection and then the KV store.
type Services struct {
	KV      kv.Store
	Broker  broker.Broker
	Log     *decslog.ContextLogger
	Tracker *healthsrv.Tracker
	Health  *healthsrv.Server
}

// New resolves cfg into concrete KV/broker backends, configures logging, and
// builds the health server, but does not start anything yet.
func New(ctx context.Context, cfg svcconfig.Service) (*Services, error) {
	decslog.Configure(cfg.LogLevel, cfg.LogFormat)
	log := decslog.ServiceLogger(cfg.Name)
	log.WithFields(map[string]interface{}{
		"kv_backend": cfg.KVBackend,
		"kv_url":     secretmask.Mask(cfg.KVURL),
		"broker_url": secretmask.Mask(cfg.BrokerURL),
	}).Info("connecting to ambient stack")

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: open kv store: %w", err)
	}

	bus, err := broker.NewRedisBroker(ctx, cfg.BrokerURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect broker: %w", err)
	}

	tracker := healthsrv.NewTracker(cfg.Name, 256)
	health := healthsrv.New(cfg.Name, cfg.HealthAddr, tracker, log)

	return &Services{KV: store, Broker: bus, Log: log, Tracker: tracker, Health: health}, nil
}

func openStore(ctx context.Context, cfg svcconfig.Service) (kv.Store, error) {
	switch cfg.KVBackend {
	case "bolt":
		return kv.OpenBoltStore(cfg.BoltPath)
	default:
		return kv.NewRedisStore(ctx, cfg.KVURL)
	}
}

// Close releases the broker connection and KV store, in that order, and
// returns the first error encountered.
func (s *Services) Close() error {
	var firstErr error
	if err := s.Broker.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.KV.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
