package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/oklog/run"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"mfkey/application"
	"mfkey/container"
	"mfkey/internal/config"
	"mfkey/internal/session"
	"mfkey/pkg"
	"mfkey/server"
)

func main() {
	os.Exit(runMain())
}

func runMain() (code int) {
	configPath := flag.String("config", config.DefaultPath, "YAML config file")
	flag.Usage = config.Usage(os.Stderr, "Environment:", func() {
		fmt.Fprintln(flag.CommandLine.Output(), "usage: mfkey32 [-config path] [logfile]")
		flag.PrintDefaults()
	})
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	runID := xid.New().String()
	c, err := container.Build(cfg, runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	driver, logger, metrics, err := container.GetDriverAndLoggerAndMetricsFromContainer(c)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = pkg.LoggerWithCtx(ctx, logger)

	app := application.NewApp(ctx, logger)
	defer app.Stop()
	app.RegisterShutdown("logger", func() {
		_ = logger.Sync()
	}, 101)
	defer app.RegisterRecovers(func() { code = 1 })()
	app.Start(cancel)

	if cfg.Profile.Dir != "" {
		profiler, err := pkg.StartProfiler(cfg.Profile.Dir, logger)
		if err != nil {
			logger.Error("profiling disabled", zap.Error(err))
		} else {
			app.RegisterShutdown("profiler", func() {
				if err := profiler.Stop(); err != nil {
					logger.Error("save profiles", zap.Error(err))
				}
			}, 50)
		}
	}

	path := cfg.LogFile
	if flag.NArg() > 0 {
		path = flag.Arg(0)
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Error("cannot open capture log", zap.String("path", path), zap.Error(err))
		return 1
	}
	app.RegisterShutdown("capture log", func() {
		_ = f.Close()
	}, 0)
	logger.Info("recovering keys", zap.String("path", path), zap.Int("msb_limit", cfg.Search.MSBLimit))

	var g run.Group
	{
		batchCtx, batchCancel := context.WithCancel(ctx)
		g.Add(func() (err error) {
			defer app.RecoverError(&err)
			_, err = driver.RunBatch(batchCtx, f)
			return err
		}, func(error) {
			batchCancel()
		})
	}
	if cfg.Metrics.Addr != "" {
		srv := server.NewMetricsServer(cfg.Metrics.Addr, metrics, logger)
		g.Add(srv.Run, func(error) {
			srv.Shutdown()
		})
	}

	runErr := g.Run()
	if err := session.WriteReport(os.Stdout, driver.Registry().Keys()); err != nil {
		logger.Error("write report", zap.Error(err))
		return 1
	}
	if runErr != nil {
		logger.Error("batch stopped early", zap.Error(runErr))
		return 1
	}
	return 0
}
