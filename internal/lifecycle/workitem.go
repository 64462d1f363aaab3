package lifecycle

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

// workItem 是 Redis / RabbitMQ 中传递的消息体。
type workItem struct {
	ProofID    string `json:"proofId"`
	EnqueuedAt int64  `json:"enqueuedAt"`
}

func encodeWorkItem(proofID string, now time.Time) ([]byte, error) {
	return json.Marshal(workItem{ProofID: proofID, EnqueuedAt: now.UnixMilli()})
}

// runGate 丢弃本进程启动之前入队的消息。持久化队列在重启后仍会保留旧消息
// 或重新投递未确认的消息，处于 PUBLISHING 的证明只能通过显式重新驱动继续。
type runGate struct {
	startedAt int64
	logger    *slog.Logger
}

func newRunGate(startedAt time.Time, l *slog.Logger) runGate {
	return runGate{startedAt: startedAt.UnixMilli(), logger: l}
}

// admit 解析消息体，返回可处理的证明 ID。
func (g runGate) admit(body []byte) (string, bool) {
	var item workItem
	if err := json.Unmarshal(body, &item); err != nil || strings.TrimSpace(item.ProofID) == "" {
		g.logger.Warn("丢弃无法解析的队列消息", slog.String("body", string(body)))
		return "", false
	}
	if item.EnqueuedAt < g.startedAt {
		g.logger.Info("丢弃重启前入队的消息，需显式重新驱动",
			slog.String("proof_id", item.ProofID),
			slog.Int64("enqueued_at", item.EnqueuedAt),
		)
		return "", false
	}
	return item.ProofID, true
}

// dropFailed 记录处理失败的消息。失败的消息不会重新入队，
// 证明保持当前状态，等待显式重新驱动。
func dropFailed(l *slog.Logger, proofID string, err error) {
	l.Error("队列消息处理失败，已丢弃",
		slog.String("proof_id", proofID),
		slog.Any("error", err),
	)
}
