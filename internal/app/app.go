// Package app wires the engine together: loader, graph builder, diff
// engine, plan builder, executor and state store, behind the operations the
// CLI exposes.
package app

import (
	"io"
	"log/slog"

	"github.com/vk/converge/internal/config"
	"github.com/vk/converge/internal/provider"
	"github.com/vk/converge/internal/state"
)

// Config holds everything an App instance needs to run.
type Config struct {
	// ConfigDir is the directory (or single file) holding the desired-state
	// description.
	ConfigDir string
	// StatePath locates the persisted state document.
	StatePath string
	// Parallelism bounds the executor's worker pool.
	Parallelism int
	LogFormat   string
	LogLevel    string
}

// App encapsulates the application's dependencies, configuration and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	loader    config.Loader
	store     state.Store
	providers *provider.Registry
}

// NewApp constructs a fully wired application instance with its own
// isolated logger. Results are written to outW; logs go to logW.
func NewApp(outW, logW io.Writer, cfg *Config, loader config.Loader, store state.Store, providers *provider.Registry) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:      outW,
		logger:    logger,
		config:    cfg,
		loader:    loader,
		store:     store,
		providers: providers,
	}
}

// Store exposes the state store, primarily for tests.
func (a *App) Store() state.Store {
	return a.store
}
