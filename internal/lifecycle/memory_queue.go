package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"ProofFlow-Chain/pkg/logger"
)

// MemoryQueue 使用 channel 实现的进程内队列。
type MemoryQueue struct {
	ch     chan string
	mu     sync.RWMutex
	closed bool
	logger *slog.Logger
}

// NewMemoryQueue 创建一个内存队列。
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan string, size), logger: logger.Named("queue")}
}

// Publish 将证明 ID 投递到队列。
func (q *MemoryQueue) Publish(ctx context.Context, proofID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return errors.New("队列已关闭")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case q.ch <- proofID:
		return nil
	}
}

// Len 返回队列中尚未消费的数量。
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}

// Consume 启动指定数量的工作协程消费队列。处理失败的 ID 记录日志后丢弃。
func (q *MemoryQueue) Consume(ctx context.Context, workerCount int, handler Handler) error {
	if workerCount <= 0 {
		workerCount = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case proofID, ok := <-q.ch:
					if !ok {
						return
					}
					if err := handler(ctx, proofID); err != nil && ctx.Err() == nil {
						dropFailed(q.logger, proofID, err)
					}
				}
			}
		}()
	}
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close 关闭内存队列。
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if !q.closed {
		close(q.ch)
		q.closed = true
	}
	q.mu.Unlock()
	return nil
}
