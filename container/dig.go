package container

import (
	"fmt"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"mfkey/internal/config"
	"mfkey/internal/recovery"
	"mfkey/internal/session"
	"mfkey/internal/storage"
	"mfkey/pkg"
)

const serviceName = "mfkey32"

// Build wires the search stack for cfg. Every log line carries runID.
func Build(cfg *config.Config, runID string) (*dig.Container, error) {
	c := dig.New()
	providers := []any{
		func() *config.Config { return cfg },
		func(cfg *config.Config) (*zap.Logger, error) {
			logger, err := pkg.NewLogger(pkg.LoggerConfig{
				ServiceName: serviceName,
				LogPath:     cfg.Logger.Path,
				Level:       cfg.Logger.Level,
			})
			if err != nil {
				return nil, err
			}
			return logger.With(zap.String("run_id", runID)), nil
		},
		pkg.NewMetrics,
		func(cfg *config.Config) (*storage.Factory, error) {
			return storage.NewFactory(cfg.Storage.Backend, cfg.Storage.ScratchDir)
		},
		func(cfg *config.Config, stores *storage.Factory, metrics *pkg.Metrics) (*recovery.Partitioner, error) {
			return recovery.NewPartitioner(recovery.Config{
				MSBLimit: cfg.Search.MSBLimit,
				Workers:  cfg.WorkerCount(),
			}, stores, metrics)
		},
		session.NewRegistry,
		func(cfg *config.Config, p *recovery.Partitioner, reg *session.Registry, metrics *pkg.Metrics, logger *zap.Logger) *session.Driver {
			return session.NewDriver(p, reg, metrics, logger, session.Options{
				SessionTimeout: cfg.Search.SessionTimeout,
				Progress:       cfg.Progress,
			})
		},
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return nil, fmt.Errorf("provide: %w", err)
		}
	}
	return c, nil
}

func GetDriverAndLoggerAndMetricsFromContainer(c *dig.Container) (*session.Driver, *zap.Logger, *pkg.Metrics, error) {
	var (
		driver  *session.Driver
		logger  *zap.Logger
		metrics *pkg.Metrics
	)
	err := c.Invoke(func(d *session.Driver, l *zap.Logger, m *pkg.Metrics) {
		driver = d
		logger = l
		metrics = m
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return driver, logger, metrics, nil
}
