package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ProofFlow-Chain/pkg/logger"
)

// RedisQueueConfig 描述 Redis 队列的连接参数。
type RedisQueueConfig struct {
	Address   string
	Password  string
	DB        int
	Queue     string
	BlockWait time.Duration
}

// RedisQueue 使用 Redis list 实现工作队列。
type RedisQueue struct {
	client *redis.Client
	queue  string
	wait   time.Duration
	now    func() time.Time
	gate   runGate
	logger *slog.Logger
}

// NewRedisQueue 创建 Redis 队列实例。
func NewRedisQueue(ctx context.Context, cfg RedisQueueConfig) (*RedisQueue, error) {
	if cfg.Address == "" {
		return nil, errors.New("Redis address 不能为空")
	}
	queue := cfg.Queue
	if queue == "" {
		queue = "proofflow:anchor"
	}
	wait := cfg.BlockWait
	if wait <= 0 {
		wait = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}
	l := logger.Named("queue").With(slog.String("driver", "redis"))
	return &RedisQueue{
		client: client,
		queue:  queue,
		wait:   wait,
		now:    time.Now,
		gate:   newRunGate(time.Now(), l),
		logger: l,
	}, nil
}

// Publish 将证明 ID 投递到 Redis。
func (q *RedisQueue) Publish(ctx context.Context, proofID string) error {
	body, err := encodeWorkItem(proofID, q.now())
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.queue, body).Err(); err != nil {
		return fmt.Errorf("Redis 投递失败: %w", err)
	}
	return nil
}

// Consume 通过 BRPOP 从 Redis 获取证明 ID，重启前残留的消息会被丢弃。
func (q *RedisQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	errCh := make(chan error, workerCount)
	for i := 0; i < workerCount; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				default:
				}
				values, err := q.client.BRPop(ctx, q.wait, q.queue).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
						errCh <- err
						return
					}
					if errors.Is(err, redis.Nil) {
						continue
					}
					errCh <- fmt.Errorf("Redis 取出失败: %w", err)
					return
				}
				if len(values) != 2 {
					continue
				}
				proofID, ok := q.gate.admit([]byte(values[1]))
				if !ok {
					continue
				}
				if handlerErr := handler(ctx, proofID); handlerErr != nil && ctx.Err() == nil {
					dropFailed(q.logger, proofID, handlerErr)
				}
			}
		}()
	}
	// 等待第一个错误或取消信号。
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Close 关闭 Redis 连接。
func (q *RedisQueue) Close() error {
	if q == nil || q.client == nil {
		return nil
	}
	return q.client.Close()
}
