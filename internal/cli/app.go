package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/restage/internal/cache"
	"github.com/roach88/restage/internal/config"
	"github.com/roach88/restage/internal/energy"
	"github.com/roach88/restage/internal/execute"
	"github.com/roach88/restage/internal/instr"
	"github.com/roach88/restage/internal/mcpl"
	"github.com/roach88/restage/internal/metrics"
	"github.com/roach88/restage/internal/store"
)

// Collaborators overrides the external programs a command drives. Nil
// fields use the configured tools.
type Collaborators struct {
	Runner    execute.Runner
	Compiler  cache.Compiler
	Particles mcpl.Tool
}

// app is the wired object graph behind a command.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	store      *store.Store
	metrics    *metrics.Recorder
	artifacts  *cache.ArtifactCache
	results    *cache.ResultCache
	executor   *execute.Executor
	translator *energy.Translator
}

// openApp loads the configuration and opens the cache database.
func openApp(cfg config.Config, logger *slog.Logger, with Collaborators) (*app, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	logger.Debug("opening cache", "database", cfg.Database, "config", cfg.Path)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	runner := with.Runner
	if runner == nil {
		runner = execute.ExecRunner{Timeout: cfg.Timeout, Logger: logger}
	}
	compiler := with.Compiler
	if compiler == nil {
		compiler = &instr.ExecCompiler{
			Command:          cfg.Tools.Compiler,
			ToolchainVersion: cfg.Tools.ToolchainVersion,
			Runner:           runner,
		}
	}
	particles := with.Particles
	if particles == nil {
		particles = mcpl.ExecTool{Command: cfg.Tools.MCPLTool, Logger: logger}
	}

	rec := metrics.New()
	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		metrics: rec,
		artifacts: cache.NewArtifactCache(st, compiler, cache.ArtifactOptions{
			BinDir:  cfg.BinDir(),
			Logger:  logger,
			Metrics: rec,
		}),
		results: cache.NewResultCache(st, cache.ResultOptions{
			Logger:  logger,
			Metrics: rec,
			Name:    "upstream",
		}),
		executor: execute.New(execute.Options{
			MinBatch:          cfg.MinBatch,
			ParticleParameter: cfg.ParticleParameter,
			Runner:            runner,
			Particles:         particles,
			Logger:            logger,
			Metrics:           rec,
		}),
		translator: energy.NewTranslator(logger, cfg.EnergyFamilies()...),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing cache", "error", err)
	}
}
