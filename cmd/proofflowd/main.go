package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ProofFlow-Chain/internal/api"
	"ProofFlow-Chain/internal/config"
	"ProofFlow-Chain/internal/lifecycle"
	"ProofFlow-Chain/internal/query"
	"ProofFlow-Chain/internal/store"
	"ProofFlow-Chain/pkg/logger"
)

// main 是 ProofFlow 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("proofflowd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("PROOFFLOW_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "proofflow.yaml")
	}

	cfg, found, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.Path,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer logger.Sync()

	l := logger.Named("proofflowd")
	if !found {
		l.Warn("配置文件不存在，使用默认配置", slog.String("path", configPath))
	}
	if err := os.MkdirAll(cfg.Runtime.DataDir, 0o755); err != nil {
		return err
	}

	snapshots, closeSnapshots, err := buildSnapshotStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSnapshots()

	proofStore := store.New(store.WithSnapshotStorage(snapshots), store.WithLogger(logger.Named("store")))
	restored, err := proofStore.Restore(ctx)
	if err != nil {
		return err
	}
	l.Info("证明注册表已就绪", slog.Int("restored", restored), slog.String("snapshot_driver", cfg.Snapshot.Driver))

	queue, err := buildQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			l.Warn("关闭工作队列失败", slog.Any("error", err))
		}
	}()

	chains, err := buildChains(ctx, cfg)
	if err != nil {
		return err
	}
	defer chains.Close()
	if chains != nil {
		states, err := chains.Snapshots(ctx)
		if err != nil {
			l.Warn("读取链状态失败", slog.Any("error", err))
		}
		for _, snap := range states {
			l.Info("链已连接", slog.String("chain", snap.Name), slog.String("chain_id", snap.ChainID), slog.String("block", snap.BlockNumber))
		}
	}

	publisher, err := buildPublisher(cfg, chains)
	if err != nil {
		return err
	}
	issuer, err := buildIssuer(cfg, chains)
	if err != nil {
		return err
	}
	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	alerts := buildAlerts(cfg)

	coordinator := lifecycle.NewCoordinator(proofStore, queue, lifecycle.WithCoordinatorAlerts(alerts))
	procOpts := []lifecycle.ProcessorOption{
		lifecycle.WithWorkerCount(cfg.Queue.Workers),
		lifecycle.WithProcessorLogger(logger.Named("processor")),
		lifecycle.WithAlertDispatcher(alerts),
	}
	if issuer != nil {
		procOpts = append(procOpts, lifecycle.WithIssuer(issuer))
	}
	processor := lifecycle.NewProcessor(proofStore, publisher, queue, procOpts...)

	server := api.NewServer(cfg.Server.Address, engine, coordinator, query.NewService(proofStore),
		api.WithRateLimit(cfg.Server.RateLimitPerMinute),
		api.WithRequestTimeout(time.Duration(cfg.Server.RequestTimeoutSecond)*time.Second),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := processor.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("后台处理器异常退出: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := server.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return g.Wait()
}
