// Package app wires configuration, metrics and the parser registry for the
// command-line entry points.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"video-parser/internal/batch"
	"video-parser/internal/config"
	"video-parser/internal/monitor"
	"video-parser/internal/registry"
	"video-parser/pkg/models"
)

// App holds the long-lived components shared by the CLI, server and TUI
type App struct {
	Config   *models.Config
	Logger   zerolog.Logger
	Monitor  *monitor.Monitor
	Registry *registry.Registry
	Batch    *batch.BatchManager
}

// New loads configuration from configPath and registers every enabled platform.
// Component logs go to logger when non-nil, otherwise to the configured output.
func New(configPath string, logger *zerolog.Logger) (*App, error) {
	configManager := config.NewManager()
	cfg, err := configManager.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	log := configManager.GetLogger()
	if logger != nil {
		log = *logger
	}

	mon := monitor.NewMonitor()
	mon.SetLogger(log.With().Str("component", "monitor").Logger())

	reg := registry.NewRegistry()
	if err := reg.RegisterDefaultPlatforms(cfg, mon); err != nil {
		return nil, fmt.Errorf("error registering platforms: %w", err)
	}
	reg.SetLogger(log)

	bm := batch.NewBatchManager(reg, cfg.Batch.MaxWorkers)
	bm.SetLogger(log)
	bm.SetRecorder(mon)

	return &App{
		Config:   cfg,
		Logger:   log,
		Monitor:  mon,
		Registry: reg,
		Batch:    bm,
	}, nil
}

// Close stops background work
func (a *App) Close() error {
	a.Monitor.Stop()
	return a.Batch.Close()
}
