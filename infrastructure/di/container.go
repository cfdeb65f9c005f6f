// Package di assembles the application: configuration, logging, metrics,
// the store, and the services over it.
package di

import (
	"time"

	"go.uber.org/zap"

	"storyforge-backend/application/services"
	"storyforge-backend/infrastructure/config"
	"storyforge-backend/infrastructure/persistence/storystore"
	"storyforge-backend/pkg/observability"
)

// Container holds the wired application components
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Collector
	Store   *storystore.Store

	Stories  *services.StoryService
	Versions *services.VersionService
}

// NewContainer builds the full stack from environment configuration
func NewContainer() (*Container, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewContainerWithConfig(cfg)
}

// NewContainerWithConfig builds the full stack from an explicit config
func NewContainerWithConfig(cfg *config.Config) (*Container, error) {
	logger, err := observability.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	var metrics *observability.Collector
	if cfg.EnableMetrics {
		metrics = observability.NewCollector(cfg.MetricsNamespace)
	}

	store, err := storystore.NewStore(storystore.Config{
		Root:          cfg.DataDir,
		CacheTTL:      time.Duration(cfg.CacheTTLSeconds) * time.Second,
		EnableWatcher: cfg.EnableWatcher,
	}, logger, metrics)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Metrics:  metrics,
		Store:    store,
		Stories:  services.NewStoryService(store, logger),
		Versions: services.NewVersionService(store, logger),
	}, nil
}

// Close releases the store and flushes the logger
func (c *Container) Close() {
	c.Store.Close()
	_ = c.Logger.Sync()
}
