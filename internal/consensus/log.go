package consensus

import (
	"context"
	"fmt"
)

// Log 是外部有序共识日志的边界。
type Log interface {
	// Channel 获取或创建共享的日志通道。
	Channel(ctx context.Context) (string, error)
	// Submit 写入一条记录并阻塞到日志确认顺序，返回分配的序列号。
	Submit(ctx context.Context, channelID string, payload []byte) (uint64, error)
}

func errUnknownChannel(channelID string) error {
	return fmt.Errorf("未知的共识日志通道 %q", channelID)
}
