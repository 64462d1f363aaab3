package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 描述了 ProofFlow 在启动阶段需要加载的全部配置。
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Snapshot   SnapshotConfig   `json:"snapshot" yaml:"snapshot"`
	Queue      QueueConfig      `json:"queue" yaml:"queue"`
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Consensus  ConsensusConfig  `json:"consensus" yaml:"consensus"`
	Credential CredentialConfig `json:"credential" yaml:"credential"`
	Web3       Web3Config       `json:"web3" yaml:"web3"`
	Alerting   AlertingConfig   `json:"alerting" yaml:"alerting"`
	Runtime    RuntimeConfig    `json:"runtime" yaml:"runtime"`
}

// ServerConfig 控制 API 服务的监听地址与限流。
type ServerConfig struct {
	Address              string `json:"address" yaml:"address"`
	RateLimitPerMinute   int    `json:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	RequestTimeoutSecond int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
}

// LoggingConfig 对应 pkg/logger 的配置。
type LoggingConfig struct {
	Level       string      `json:"level" yaml:"level"`
	Format      string      `json:"format" yaml:"format"`
	OutputPaths []string    `json:"output_paths" yaml:"output_paths"`
	Audit       AuditConfig `json:"audit" yaml:"audit"`
}

// AuditConfig 控制审计日志的落盘与轮转。
type AuditConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

// SnapshotConfig 选择证明快照的持久化后端。
type SnapshotConfig struct {
	Driver string              `json:"driver" yaml:"driver"`
	Redis  RedisSnapshotConfig `json:"redis" yaml:"redis"`
	MySQL  MySQLSnapshotConfig `json:"mysql" yaml:"mysql"`
}

// RedisSnapshotConfig 描述 Redis 快照后端。
type RedisSnapshotConfig struct {
	Address  string `json:"address" yaml:"address"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
	Key      string `json:"key" yaml:"key"`
	History  int    `json:"history" yaml:"history"`
}

// MySQLSnapshotConfig 描述 MySQL 快照后端。
type MySQLSnapshotConfig struct {
	DSN                    string `json:"dsn" yaml:"dsn"`
	MaxOpenConns           int    `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns           int    `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `json:"conn_max_lifetime_seconds" yaml:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int    `json:"conn_max_idle_time_seconds" yaml:"conn_max_idle_time_seconds"`
	Retain                 int    `json:"retain" yaml:"retain"`
}

// QueueConfig 选择锚定工作队列。
type QueueConfig struct {
	Driver   string         `json:"driver" yaml:"driver"`
	Workers  int            `json:"workers" yaml:"workers"`
	Size     int            `json:"size" yaml:"size"`
	Redis    RedisQueue     `json:"redis" yaml:"redis"`
	RabbitMQ RabbitMQConfig `json:"rabbitmq" yaml:"rabbitmq"`
}

// RedisQueue 描述 Redis 队列。
type RedisQueue struct {
	Address   string `json:"address" yaml:"address"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	Queue     string `json:"queue" yaml:"queue"`
	BlockWait int    `json:"block_wait_seconds" yaml:"block_wait_seconds"`
}

// RabbitMQConfig 描述 RabbitMQ 队列。
type RabbitMQConfig struct {
	URL        string `json:"url" yaml:"url"`
	Queue      string `json:"queue" yaml:"queue"`
	Prefetch   int    `json:"prefetch" yaml:"prefetch"`
	Durable    bool   `json:"durable" yaml:"durable"`
	AutoDelete bool   `json:"auto_delete" yaml:"auto_delete"`
}

// LLMConfig 用于配置推理引擎。
type LLMConfig struct {
	Provider string       `json:"provider" yaml:"provider"`
	OpenAI   OpenAIConfig `json:"openai" yaml:"openai"`
	// StaticAnswer 仅在 provider=static 时使用。
	StaticAnswer string `json:"static_answer" yaml:"static_answer"`
}

// OpenAIConfig 描述 OpenAI 兼容接口。
type OpenAIConfig struct {
	APIKey         string  `json:"api_key" yaml:"api_key"`
	APIKeyEnv      string  `json:"api_key_env" yaml:"api_key_env"`
	BaseURL        string  `json:"base_url" yaml:"base_url"`
	Model          string  `json:"model" yaml:"model"`
	TimeoutSeconds int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	Temperature    float32 `json:"temperature" yaml:"temperature"`
}

// ResolveAPIKey 优先使用显式配置，其次读取环境变量。
func (c OpenAIConfig) ResolveAPIKey() string {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key
	}
	if c.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.APIKeyEnv))
}

// ConsensusConfig 选择共识日志实现。
type ConsensusConfig struct {
	Driver      string `json:"driver" yaml:"driver"`
	Chain       string `json:"chain" yaml:"chain"`
	SinkAddress string `json:"sink_address" yaml:"sink_address"`
	ChannelID   string `json:"channel_id" yaml:"channel_id"`
}

// CredentialConfig 描述凭证发放策略与账本。
type CredentialConfig struct {
	Driver              string `json:"driver" yaml:"driver"`
	Chain               string `json:"chain" yaml:"chain"`
	TokenAddress        string `json:"token_address" yaml:"token_address"`
	Amount              uint64 `json:"amount" yaml:"amount"`
	MaxAttempts         int    `json:"max_attempts" yaml:"max_attempts"`
	BaseDelayMS         int    `json:"base_delay_ms" yaml:"base_delay_ms"`
	ExplorerURLTemplate string `json:"explorer_url_template" yaml:"explorer_url_template"`
}

// Web3Config 包含访问区块链节点所需的信息。
type Web3Config struct {
	ChainConfig   string `json:"chain_config" yaml:"chain_config"`
	DefaultChain  string `json:"default_chain" yaml:"default_chain"`
	RPCURL        string `json:"rpc_url" yaml:"rpc_url"`
	ChainID       int64  `json:"chain_id" yaml:"chain_id"`
	PrivateKeyEnv string `json:"private_key_env" yaml:"private_key_env"`
}

// AlertingConfig 配置告警渠道。
type AlertingConfig struct {
	WebhookURL string `json:"webhook_url" yaml:"webhook_url"`
}

// RuntimeConfig 用于放置运行时的通用参数。
type RuntimeConfig struct {
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// Default 返回仅包含默认值的配置，baseDir 用于解析相对路径。
func Default(baseDir string) *Config {
	cfg := &Config{}
	cfg.applyDefaults(baseDir)
	return cfg
}

// Load 解析指定路径的配置文件，按扩展名选择 YAML 或 JSON。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("配置文件路径为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
	default:
		if err := json.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("解析配置失败: %w", err)
		}
	}

	cfg.applyDefaults(filepath.Dir(path))
	return &cfg, nil
}

// LoadOrDefault 与 Load 相同，但文件不存在时返回默认配置。
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return Default(filepath.Dir(path)), false, nil
	}
	return nil, false, err
}

// applyDefaults 在用户未填写部分字段时设置合理的默认值。
func (c *Config) applyDefaults(baseDir string) {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.RateLimitPerMinute <= 0 {
		c.Server.RateLimitPerMinute = 100
	}
	if c.Server.RequestTimeoutSecond <= 0 {
		c.Server.RequestTimeoutSecond = 90
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Snapshot.Driver == "" {
		c.Snapshot.Driver = "file"
	}
	if c.Queue.Driver == "" {
		c.Queue.Driver = "memory"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 4
	}
	if c.Queue.Size <= 0 {
		c.Queue.Size = 1024
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.OpenAI.APIKeyEnv == "" {
		c.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.LLM.OpenAI.TimeoutSeconds <= 0 {
		c.LLM.OpenAI.TimeoutSeconds = 60
	}

	if c.Consensus.Driver == "" {
		c.Consensus.Driver = "memory"
	}
	if c.Credential.Driver == "" {
		c.Credential.Driver = "disabled"
	}
	if c.Credential.Amount == 0 {
		c.Credential.Amount = 1
	}
	if c.Credential.MaxAttempts <= 0 {
		c.Credential.MaxAttempts = 3
	}
	if c.Credential.BaseDelayMS <= 0 {
		c.Credential.BaseDelayMS = 2000
	}

	c.Web3.ChainConfig = resolve(baseDir, c.Web3.ChainConfig)
	if c.Runtime.DataDir == "" {
		c.Runtime.DataDir = filepath.Join(baseDir, "data")
	} else {
		c.Runtime.DataDir = resolve(baseDir, c.Runtime.DataDir)
	}
	if c.Logging.Audit.Enabled && c.Logging.Audit.Path == "" {
		c.Logging.Audit.Path = filepath.Join(c.Runtime.DataDir, "audit.log")
	} else {
		c.Logging.Audit.Path = resolve(baseDir, c.Logging.Audit.Path)
	}
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
