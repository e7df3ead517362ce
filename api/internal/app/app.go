// Package app wires configuration into the engines, the conversation store
// and the solver service shared by both entry points.
package app

import (
	"context"
	"fmt"
	"time"

	"jee-solver/api/internal/acquire"
	"jee-solver/api/internal/config"
	"jee-solver/api/internal/conversation"
	"jee-solver/api/internal/gateway"
	"jee-solver/api/internal/gateway/gemini"
	"jee-solver/api/internal/gateway/openai"
	"jee-solver/api/internal/logger"
	"jee-solver/api/internal/solver"
	"jee-solver/api/internal/store"
	"jee-solver/api/internal/util"
)

const (
	sweepEvery = 5 * time.Minute
	purgeEvery = time.Hour
)

// Pinger reports backend health; nil for the in-memory store.
type Pinger interface {
	Ping(ctx context.Context) error
}

type App struct {
	Config   config.Config
	Log      *logger.Logger
	Engines  *gateway.Engines
	Solver   *solver.Service
	Acquirer *acquire.Acquirer
	Health   Pinger

	jobs    []func(context.Context)
	closers []func() error
}

// BuildEngines registers every engine that has an API key.
func BuildEngines(cfg config.Config, log *logger.Logger) (*gateway.Engines, error) {
	var gs []gateway.Gateway
	if cfg.GeminiAPIKey != "" {
		gs = append(gs, gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, log))
	}
	if cfg.OpenAIAPIKey != "" {
		gs = append(gs, openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, log))
	}
	return gateway.NewEngines(cfg.DefaultEngine, gs...)
}

func Build(ctx context.Context, cfg config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{Config: cfg, Log: log}

	engines, err := BuildEngines(cfg, log)
	if err != nil {
		return nil, err
	}
	a.Engines = engines

	pack, err := util.LoadPromptPack(cfg.PromptsFile)
	if err != nil {
		return nil, err
	}
	opts := []solver.Option{
		solver.WithLogger(log),
		solver.WithPrompts(solver.PromptsFromPack(pack)),
	}

	var st conversation.Store
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("db connected", "dsn", cfg.SafeDSNSummary())
		repo := store.NewConversationRepo(db, cfg.ConversationTTL)
		st, a.Health = repo, repo
		opts = append(opts, solver.WithAnswerCache(store.NewAnswerRepo(db), cfg.AnswerCacheMaxAge))
		a.closers = append(a.closers, db.Close)
		if cfg.ConversationTTL > 0 {
			a.jobs = append(a.jobs, func(ctx context.Context) {
				every(ctx, purgeEvery, func() {
					n, err := repo.PurgeOlderThan(ctx, cfg.ConversationTTL)
					if err != nil {
						log.Warn("purge conversations failed", "err", err)
						return
					}
					if n > 0 {
						log.Info("purged conversations", "count", n)
					}
				})
			})
		}
	case config.BackendRedis:
		rs, err := store.NewRedisStore(ctx, cfg.RedisAddr, cfg.ConversationTTL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		log.Info("redis connected", "addr", cfg.RedisAddr)
		st, a.Health = rs, rs
		a.closers = append(a.closers, rs.Close)
	default:
		ms := store.NewMemoryStore(cfg.ConversationTTL)
		st = ms
		if cfg.ConversationTTL > 0 {
			a.jobs = append(a.jobs, func(ctx context.Context) {
				every(ctx, sweepEvery, func() {
					if n := ms.Sweep(); n > 0 {
						log.Debug("swept conversations", "count", n)
					}
				})
			})
		}
	}

	conv := conversation.NewManager(st, cfg.ClearSnapshotOnReset)
	a.Solver = solver.New(engines, conv, opts...)
	a.Acquirer = acquire.New(cfg.MaxUploadBytes, cfg.FetchTimeout)

	log.Info("app ready",
		"engines", engines.Names(),
		"default_engine", engines.Default().Name(),
		"store", cfg.StoreBackend,
	)
	return a, nil
}

// RunJobs starts the store maintenance loops; they stop with ctx.
func (a *App) RunJobs(ctx context.Context) {
	for _, job := range a.jobs {
		go job(ctx)
	}
}

func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.Log.Warn("close failed", "err", err)
		}
	}
}

func every(ctx context.Context, d time.Duration, fn func()) {
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
