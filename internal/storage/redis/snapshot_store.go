package redis

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/store"
)

const (
	defaultKey     = "proofflow:snapshot:latest"
	historySuffix  = ":history"
	defaultHistory = 10
)

// Config 描述 Redis 快照存储的连接参数。
type Config struct {
	Address     string
	Password    string
	DB          int
	Key         string
	History     int
	DialTimeout time.Duration
}

// SnapshotStore 使用 Redis 字符串保存最新快照。
type SnapshotStore struct {
	client  goredis.UniversalClient
	key     string
	history int
}

var _ store.SnapshotStorage = (*SnapshotStore)(nil)

// NewSnapshotStore 连接 Redis 并返回快照存储。
func NewSnapshotStore(ctx context.Context, cfg Config) (*SnapshotStore, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "Redis address 不能为空")
	}
	opts := &goredis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "连接 Redis 失败")
	}
	return NewSnapshotStoreWithClient(client, cfg.Key, cfg.History), nil
}

// NewSnapshotStoreWithClient 复用已有的 Redis 客户端。
func NewSnapshotStoreWithClient(client goredis.UniversalClient, key string, history int) *SnapshotStore {
	if strings.TrimSpace(key) == "" {
		key = defaultKey
	}
	if history < 0 {
		history = 0
	} else if history == 0 {
		history = defaultHistory
	}
	return &SnapshotStore{client: client, key: key, history: history}
}

// WriteSnapshot 在一个事务中更新最新快照并追加历史记录。
func (s *SnapshotStore) WriteSnapshot(ctx context.Context, data []byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.key, data, 0)
		if s.history > 0 {
			historyKey := s.key + historySuffix
			pipe.LPush(ctx, historyKey, data)
			pipe.LTrim(ctx, historyKey, 0, int64(s.history-1))
		}
		return nil
	})
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("写入 Redis 快照 %s 失败", s.key))
	}
	return nil
}

// ReadLatestSnapshot 读取最新快照。
func (s *SnapshotStore) ReadLatestSnapshot(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if stdErrors.Is(err, goredis.Nil) {
			return nil, store.ErrNoSnapshot
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("读取 Redis 快照 %s 失败", s.key))
	}
	return data, nil
}

// Close 关闭 Redis 连接。
func (s *SnapshotStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
