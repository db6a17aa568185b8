package command

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/cidmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/cidmesh-go/internal/infra/confloader"
	"github.com/yndnr/cidmesh-go/internal/infra/shutdown"
	"github.com/yndnr/cidmesh-go/internal/server/clusterserver"
	"github.com/yndnr/cidmesh-go/internal/server/config"
	"github.com/yndnr/cidmesh-go/internal/server/httpserver"
	"github.com/yndnr/cidmesh-go/internal/telemetry/logger"
	"github.com/yndnr/cidmesh-go/internal/telemetry/metric"
	"github.com/yndnr/cidmesh-go/internal/transport"
)

// ShutdownTimeout bounds the shutdown hooks of a node.
const ShutdownTimeout = 10 * time.Second

// memberlistLeaveTimeout bounds the leave broadcast of the memberlist mode.
const memberlistLeaveTimeout = 2 * time.Second

// RunCommand starts a node.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Start a routing node",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "node-id",
				Usage: "Node id, overrides node.id",
			},
			&cli.StringFlag{
				Name:  "public-addr",
				Usage: "Peer facing UDP address, overrides public.addr",
			},
			&cli.StringFlag{
				Name:  "cluster-addr",
				Usage: "Cluster internal UDP address, overrides cluster.addr",
			},
			&cli.StringFlag{
				Name:  "admin-addr",
				Usage: "Admin HTTP address, empty disables it, overrides admin.addr",
			},
			&cli.StringFlag{
				Name:  "discovery",
				Usage: "Discovery mode: seeds, memberlist, kubernetes, fixed",
			},
			&cli.StringSliceFlag{
				Name:  "seed",
				Usage: "Seed cluster address, repeatable",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level: debug, info, warn, error",
			},
		},
		Action: runNode,
	}
}

// flagOverrides maps the flags set on the command line to config keys.
func flagOverrides(c *cli.Context) map[string]any {
	overrides := make(map[string]any)
	for flag, key := range map[string]string{
		"public-addr":  "public.addr",
		"cluster-addr": "cluster.addr",
		"admin-addr":   "admin.addr",
		"discovery":    "discovery.mode",
		"log-level":    "log.level",
	} {
		if c.IsSet(flag) {
			overrides[key] = c.String(flag)
		}
	}
	if c.IsSet("node-id") {
		overrides["node.id"] = c.Int("node-id")
	}
	if c.IsSet("seed") {
		overrides["discovery.seeds"] = c.StringSlice("seed")
	}
	return overrides
}

func runNode(c *cli.Context) error {
	cfg, loader, err := loadConfig(c.String("config"), flagOverrides(c))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	log.Info("starting cidmesh-node",
		"version", buildinfo.Version,
		"commit", buildinfo.Get().Commit,
		"config", loader.FilePath())
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	sh := shutdown.NewHandler(ShutdownTimeout)
	srv, err := startCluster(ctx, cfg, sh, log)
	if err != nil {
		// Hooks registered so far release what was started.
		return joinShutdown(err, sh)
	}
	if err := startAdmin(cfg, srv, sh, log); err != nil {
		return joinShutdown(err, sh)
	}
	if loader.FilePath() != "" {
		if err := watchConfig(ctx, loader, sh, log); err != nil {
			log.Warn("config watcher disabled", "error", err)
		}
	}

	log.Info("node started",
		"node_id", srv.NodeID(),
		"public_addr", srv.PublicAddr(),
		"cluster_addr", srv.ClusterAddr(),
		"discovery", cfg.Discovery.Mode)

	if err := sh.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("node stopped")
	return nil
}

func joinShutdown(err error, sh *shutdown.Handler) error {
	if serr := sh.Shutdown(); serr != nil {
		return fmt.Errorf("%w (shutdown: %v)", err, serr)
	}
	return err
}

// startCluster creates the discovery source and starts the cluster server.
func startCluster(ctx context.Context, cfg *config.ServerConfig, sh *shutdown.Handler, log *slog.Logger) (*clusterserver.Server, error) {
	clusterCfg, err := config.ToClusterConfig(cfg, transport.NewEchoEngine(log), log)
	if err != nil {
		return nil, err
	}

	if cfg.Discovery.Mode != config.DiscoveryFixed {
		source, err := config.NewDiscoverySource(cfg, clusterCfg.NodeID, log)
		if err != nil {
			return nil, fmt.Errorf("discovery: %w", err)
		}
		if ml, ok := source.(*clusterserver.MemberlistSource); ok {
			sh.OnShutdown(func(context.Context) error {
				if err := ml.Leave(memberlistLeaveTimeout); err != nil {
					log.Warn("memberlist leave", "error", err)
				}
				return ml.Shutdown()
			})
		}
		clusterCfg.Source = source
	}

	srv, err := clusterserver.New(clusterCfg)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(ctx); err != nil {
		return nil, err
	}
	sh.OnShutdown(srv.Shutdown)
	return srv, nil
}

// startAdmin serves the admin API and the metrics of srv. An empty
// admin.addr disables it.
func startAdmin(cfg *config.ServerConfig, srv *clusterserver.Server, sh *shutdown.Handler, log *slog.Logger) error {
	if cfg.Admin.Addr == "" {
		return nil
	}

	registry := metric.NewRegistry()
	registry.MustRegister(metric.NewHealthCollector(srv))

	admin := httpserver.New(cfg.Admin.Addr, httpserver.NewRouter(&httpserver.RouterConfig{
		Node:    srv,
		Metrics: registry.Handler(),
		Logger:  log,
	}))
	if err := admin.Listen(); err != nil {
		return fmt.Errorf("admin listen: %w", err)
	}
	sh.OnShutdown(admin.Shutdown)

	go func() {
		log.Info("admin API listening", "addr", admin.Addr())
		if err := admin.Serve(); err != nil {
			log.Error("admin server error", "error", err)
		}
	}()
	return nil
}

// watchConfig reloads the configuration file on change. Only log.level
// takes effect without a restart.
func watchConfig(ctx context.Context, loader *confloader.Loader, sh *shutdown.Handler, log *slog.Logger) error {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return err
	}
	if err := watcher.Watch(loader.FilePath()); err != nil {
		watcher.Stop()
		return err
	}

	watcher.OnChange(func(path string) {
		cfg, err := reloadConfig(loader)
		if err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			log.Warn("config reload rejected", "path", path, "error", err)
			return
		}
		log.Info("config reloaded", "path", path, "log_level", cfg.Log.Level)
	})
	sh.OnShutdown(func(context.Context) error { return watcher.Stop() })

	go watcher.Run(ctx)
	return nil
}
