package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"decs.evalgo.org/gameloop"
	"decs.evalgo.org/internal/bootstrap"
	"decs.evalgo.org/internal/svcconfig"
)

func main() {
	cfg := svcconfig.Load("gameloop-ticker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := bootstrap.New(ctx, cfg)
	if err != nil {
		log.Fatalf("gameloop-ticker: %v", err)
	}
	defer svc.Close()

	tk := gameloop.New(svc.KV, svc.Broker, svc.Log, cfg.TimerFPS, cfg.TimerMaxFPS)
	stopTicker := tk.Start(ctx)

	svc.Health.Start()
	svc.Log.Info("game-loop ticker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	svc.Log.Info("game-loop ticker shutting down")
	stopTicker()
	cancel()

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := svc.Health.Shutdown(shutCtx); err != nil {
		svc.Log.WithError(err).Error("health server forced shutdown")
	}
}
