package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"decs.evalgo.org/internal/bootstrap"
	"decs.evalgo.org/internal/svcconfig"
	"decs.evalgo.org/system"
)

func main() {
	cfg := svcconfig.Load("system-manager")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("system-manager: %v", err)
	}
	defer svc.Close()

	mgr := system.New(svc.KV, svc.Broker, svc.Tracker, svc.Log)
	stopMgr, err := mgr.Start(ctx)
	if err != nil {
		log.Fatalf("system-manager: start: %v", err)
	}

	svc.Health.Start()
	svc.Log.Info("system manager started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	svc.Log.Info("system manager shutting down")
	cancel()
	if err := stopMgr(); err != nil {
		svc.Log.WithError(err).Warn("error unsubscribing")
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := svc.Health.Shutdown(shutCtx); err != nil {
		svc.Log.WithError(err).Error("health server forced shutdown")
	}
}
