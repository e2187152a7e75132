package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/interview-orchestrator/internal/config"
	"github.com/jonathan/interview-orchestrator/internal/db"
	"github.com/jonathan/interview-orchestrator/internal/interview"
	"github.com/jonathan/interview-orchestrator/internal/llm"
	"github.com/jonathan/interview-orchestrator/internal/logger"
	"github.com/jonathan/interview-orchestrator/internal/store"
)

// app bundles everything a command needs; close releases it in reverse order
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	store   store.Store
	service *interview.Service
	closers []func() error
}

// loadConfig reads the config file and applies the global logging flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg.Log.Debug = cfg.Log.Debug || debugFlag
	cfg.Log.JSON = cfg.Log.JSON || jsonFlag
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}

	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)
	log.Debug("store opened", zap.String("driver", cfg.Database.Driver))

	svc, err := a.buildService(ctx)
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.service = svc
	return a, nil
}

// openStore selects the persistence adapter named by database.driver
func openStore(ctx context.Context, cfg config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case "", "memory":
		return store.NewMemoryStore(), nil
	case "postgres":
		pg, err := db.Connect(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
		return pg, nil
	case "sqlite":
		return db.NewGormStore(db.DriverSQLite, cfg.URL)
	case "gorm-postgres":
		return db.NewGormStore(db.DriverPostgres, cfg.URL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func (a *app) buildService(ctx context.Context) (*interview.Service, error) {
	llmCfg := a.cfg.LLM.LLMSettings()
	gen, err := llm.NewGenerator(ctx, llmCfg, llm.TierStandard)
	if err != nil {
		return nil, fmt.Errorf("creating generator: %w", err)
	}
	a.closers = append(a.closers, gen.Close)

	ic := a.cfg.Interview
	var policy interview.ResolutionPolicy = interview.NewHeuristicPolicy(ic.AnswerThreshold, ic.SkipPhrases)
	if ic.Resolution == "tools" {
		policy = interview.NewToolCallPolicy(policy)
	}

	var summarizer interview.Summarizer = interview.HeuristicSummarizer{}
	if ic.Summarizer == "model" {
		lite, err := llm.NewGenerator(ctx, llmCfg, llm.TierLite)
		if err != nil {
			return nil, fmt.Errorf("creating summary generator: %w", err)
		}
		a.closers = append(a.closers, lite.Close)
		summarizer = interview.NewModelSummarizer(lite, a.log)
	}

	return interview.NewService(a.store, gen, interview.Options{
		WindowTurns:       ic.WindowTurns,
		GenerationTimeout: ic.GenerationTimeout,
		Policy:            policy,
		Summarizer:        summarizer,
		Logger:            a.log,
		Provider:          a.cfg.LLM.Provider,
	}), nil
}

func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	_ = a.log.Sync()
	return first
}
