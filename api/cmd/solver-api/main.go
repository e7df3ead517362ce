package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"jee-solver/api/internal/app"
	"jee-solver/api/internal/config"
	"jee-solver/api/internal/handle"
	"jee-solver/api/internal/httpserver"
	"jee-solver/api/internal/logger"
)

func main() {
	cfg := config.Load()

	lg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	if err := cfg.Validate(); err != nil {
		lg.Fatal("invalid config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, lg)
	if err != nil {
		lg.Fatal("startup failed", "err", err)
	}
	defer a.Close()
	a.RunJobs(ctx)

	var health handle.Pinger
	if a.Health != nil {
		health = a.Health
	}
	h := handle.New(a.Solver, a.Acquirer, lg, health)

	if err := httpserver.Serve(ctx, ":"+cfg.Port, h.Routes(), lg); err != nil {
		lg.Error("server stopped", "err", err)
	}
}
