package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edudebt_collection/internal/app"
	"edudebt_collection/internal/config"
	"edudebt_collection/internal/server"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := config.Init(setupCtx)
	fmt.Printf("✅ Configuration loaded (store=%s)\n", cfg.Store)

	if err := cfg.CheckConnections(setupCtx); err != nil {
		log.Fatalf("❌ Connection check failed: %v", err)
	}
	fmt.Println("🟢 All connections OK")

	a, err := app.Build(setupCtx, cfg)
	if err != nil {
		log.Fatalf("❌ Build failed: %v", err)
	}

	if err := a.Scheduler.Start(); err != nil {
		log.Fatalf("❌ Overdue scheduler: %v", err)
	}

	srv := server.NewServer(cfg.Port, server.Routes(a.Handlers, a.Auth))
	log.Printf("[HTTP] listening on :%s", cfg.Port)
	if err := srv.Run(runCtx); err != nil {
		log.Printf("[HTTP][ERR] %v", err)
	}

	<-a.Scheduler.Stop().Done()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	cfg.Close(closeCtx)
}
