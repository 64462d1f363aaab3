package consensus

import (
	"context"
	"sync"
)

// MemoryLog 是进程内的有序日志实现，用于开发环境与测试。
type MemoryLog struct {
	mu         sync.Mutex
	channelID  string
	next       uint64
	records    [][]byte
	channelErr error
	failAfter  int
	submitErr  error
	channels   int
}

// NewMemoryLog 创建内存日志，序列号从 1 开始。
func NewMemoryLog(channelID string) *MemoryLog {
	if channelID == "" {
		channelID = "memory-log"
	}
	return &MemoryLog{channelID: channelID, next: 1, failAfter: -1}
}

// FailChannel 让后续的 Channel 调用返回 err，传 nil 恢复。
func (m *MemoryLog) FailChannel(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channelErr = err
}

// FailAfter 在成功写入 n 条记录后让后续写入返回 err。n < 0 关闭故障注入。
func (m *MemoryLog) FailAfter(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.submitErr = err
}

// Channel 返回固定的通道 ID。
func (m *MemoryLog) Channel(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels++
	if m.channelErr != nil {
		return "", m.channelErr
	}
	return m.channelID, nil
}

// Submit 追加一条记录并返回它的序列号。
func (m *MemoryLog) Submit(ctx context.Context, channelID string, payload []byte) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if channelID != m.channelID {
		return 0, errUnknownChannel(channelID)
	}
	if m.failAfter >= 0 {
		if m.failAfter == 0 {
			return 0, m.submitErr
		}
		m.failAfter--
	}
	seq := m.next
	m.next++
	m.records = append(m.records, append([]byte(nil), payload...))
	return seq, nil
}

// Records 返回已写入记录的副本。
func (m *MemoryLog) Records() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.records))
	for i, r := range m.records {
		out[i] = append([]byte(nil), r...)
	}
	return out
}

// ChannelCalls 返回 Channel 被调用的次数。
func (m *MemoryLog) ChannelCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels
}
