package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ProofFlow-Chain/internal/config"
	"ProofFlow-Chain/internal/consensus"
	"ProofFlow-Chain/internal/credential"
	"ProofFlow-Chain/internal/lifecycle"
	"ProofFlow-Chain/internal/observability/alerting"
	"ProofFlow-Chain/internal/reasoning"
	"ProofFlow-Chain/internal/reasoning/openai"
	"ProofFlow-Chain/internal/storage/file"
	"ProofFlow-Chain/internal/storage/mysql"
	"ProofFlow-Chain/internal/storage/redis"
	"ProofFlow-Chain/internal/store"
	"ProofFlow-Chain/internal/web3/provider"
	"ProofFlow-Chain/pkg/logger"
)

func buildSnapshotStorage(ctx context.Context, cfg *config.Config) (store.SnapshotStorage, func(), error) {
	noop := func() {}
	switch cfg.Snapshot.Driver {
	case "", "file":
		s, err := file.NewSnapshotStore(cfg.Runtime.DataDir)
		return s, noop, err
	case "redis":
		s, err := redis.NewSnapshotStore(ctx, redis.Config{
			Address:  cfg.Snapshot.Redis.Address,
			Password: cfg.Snapshot.Redis.Password,
			DB:       cfg.Snapshot.Redis.DB,
			Key:      cfg.Snapshot.Redis.Key,
			History:  cfg.Snapshot.Redis.History,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	case "mysql":
		m := cfg.Snapshot.MySQL
		s, err := mysql.NewSnapshotStore(ctx, mysql.Config{
			DSN:             m.DSN,
			MaxOpenConns:    m.MaxOpenConns,
			MaxIdleConns:    m.MaxIdleConns,
			ConnMaxLifetime: time.Duration(m.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(m.ConnMaxIdleTimeSeconds) * time.Second,
			Retain:          m.Retain,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	case "memory":
		return store.NewMemorySnapshotStorage(), noop, nil
	default:
		return nil, noop, fmt.Errorf("未知的快照驱动: %s", cfg.Snapshot.Driver)
	}
}

func buildQueue(ctx context.Context, cfg *config.Config) (lifecycle.Queue, error) {
	switch cfg.Queue.Driver {
	case "", "memory":
		return lifecycle.NewMemoryQueue(cfg.Queue.Size), nil
	case "redis":
		return lifecycle.NewRedisQueue(ctx, lifecycle.RedisQueueConfig{
			Address:   cfg.Queue.Redis.Address,
			Password:  cfg.Queue.Redis.Password,
			DB:        cfg.Queue.Redis.DB,
			Queue:     cfg.Queue.Redis.Queue,
			BlockWait: time.Duration(cfg.Queue.Redis.BlockWait) * time.Second,
		})
	case "rabbitmq":
		return lifecycle.NewRabbitMQQueue(lifecycle.RabbitMQConfig{
			URL:        cfg.Queue.RabbitMQ.URL,
			Queue:      cfg.Queue.RabbitMQ.Queue,
			Prefetch:   cfg.Queue.RabbitMQ.Prefetch,
			Durable:    cfg.Queue.RabbitMQ.Durable,
			AutoDelete: cfg.Queue.RabbitMQ.AutoDelete,
		})
	default:
		return nil, fmt.Errorf("未知的队列驱动: %s", cfg.Queue.Driver)
	}
}

// buildChains 仅在共识日志或凭证账本需要链上交易时连接节点。
func buildChains(ctx context.Context, cfg *config.Config) (*provider.Registry, error) {
	if cfg.Consensus.Driver != "evm" && cfg.Credential.Driver != "evm" {
		return nil, nil
	}
	return provider.NewRegistry(ctx, cfg.Web3)
}

func buildPublisher(cfg *config.Config, chains *provider.Registry) (*consensus.Publisher, error) {
	var log consensus.Log
	switch cfg.Consensus.Driver {
	case "", "memory":
		channel := cfg.Consensus.ChannelID
		if channel == "" {
			channel = "proofflow-local"
		}
		log = consensus.NewMemoryLog(channel)
	case "evm":
		sender, err := chains.Resolve(cfg.Consensus.Chain)
		if err != nil {
			return nil, err
		}
		evm, err := consensus.NewEVMLog(sender, chainName(cfg.Consensus.Chain, cfg.Web3.DefaultChain), cfg.Consensus.SinkAddress)
		if err != nil {
			return nil, err
		}
		log = evm
	default:
		return nil, fmt.Errorf("未知的共识日志驱动: %s", cfg.Consensus.Driver)
	}
	return consensus.NewPublisher(log, consensus.WithLogger(logger.Named("consensus"))), nil
}

func buildIssuer(cfg *config.Config, chains *provider.Registry) (*credential.Issuer, error) {
	c := cfg.Credential
	issuerCfg := credential.Config{
		MaxAttempts:         c.MaxAttempts,
		BaseDelay:           time.Duration(c.BaseDelayMS) * time.Millisecond,
		Amount:              c.Amount,
		ExplorerURLTemplate: c.ExplorerURLTemplate,
	}

	var ledger credential.Ledger
	switch c.Driver {
	case "", "disabled":
		return nil, nil
	case "memory":
		ledger = credential.NewMemoryLedger()
	case "evm":
		sender, err := chains.Resolve(c.Chain)
		if err != nil {
			return nil, err
		}
		evm, err := credential.NewEVMLedger(sender, c.TokenAddress)
		if err != nil {
			return nil, err
		}
		ledger = evm
		if issuerCfg.ExplorerURLTemplate == "" {
			issuerCfg.ExplorerURLTemplate = chains.ExplorerURL(c.Chain)
		}
	default:
		return nil, fmt.Errorf("未知的凭证驱动: %s", c.Driver)
	}
	return credential.NewIssuer(ledger, issuerCfg), nil
}

func buildEngine(cfg *config.Config) (reasoning.Engine, error) {
	switch cfg.LLM.Provider {
	case "static":
		return reasoning.Static(cfg.LLM.StaticAnswer), nil
	case "", "openai":
		apiKey := cfg.LLM.OpenAI.ResolveAPIKey()
		if apiKey == "" {
			return nil, fmt.Errorf("OpenAI provider 需要配置 api_key 或环境变量 %s", cfg.LLM.OpenAI.APIKeyEnv)
		}
		return openai.NewClient(openai.Config{
			APIKey:      apiKey,
			BaseURL:     cfg.LLM.OpenAI.BaseURL,
			Model:       cfg.LLM.OpenAI.Model,
			Timeout:     time.Duration(cfg.LLM.OpenAI.TimeoutSeconds) * time.Second,
			Temperature: cfg.LLM.OpenAI.Temperature,
		})
	default:
		return nil, fmt.Errorf("未知的大模型 provider: %s", cfg.LLM.Provider)
	}
}

func buildAlerts(cfg *config.Config) *alerting.FanoutDispatcher {
	notifiers := []alerting.Notifier{&alerting.LogNotifier{Logger: logger.Audit()}}
	if url := strings.TrimSpace(cfg.Alerting.WebhookURL); url != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: url, Client: &http.Client{Timeout: 10 * time.Second}})
	}
	return alerting.NewFanout(notifiers...)
}

func chainName(name, fallback string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	if fallback != "" {
		return fallback
	}
	return "default"
}
