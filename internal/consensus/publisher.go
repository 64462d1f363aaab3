package consensus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"ProofFlow-Chain/internal/observability/metrics"
	"ProofFlow-Chain/internal/proof"
	"ProofFlow-Chain/pkg/logger"
)

// Result 汇总一次成功锚定的结果。
type Result struct {
	ChannelID          string
	SequenceNumbers    []uint64
	RootHash           string
	CompletionSequence uint64
}

// Option 定制 Publisher。
type Option func(*Publisher)

// WithClock 注入时间源。
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLogger 指定日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) {
		if l != nil {
			p.logger = l
		}
	}
}

// Publisher 负责按顺序把证明步骤写入共识日志。
type Publisher struct {
	log    Log
	now    func() time.Time
	logger *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	channel string
}

// NewPublisher 创建 Publisher。
func NewPublisher(log Log, opts ...Option) *Publisher {
	p := &Publisher{
		log:    log,
		now:    time.Now,
		logger: logger.Named("consensus"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// ChannelID 返回进程内共享的日志通道，首次调用时创建。
// 并发的首次调用只会触发一次外部请求；失败不会被缓存。
func (p *Publisher) ChannelID(ctx context.Context) (string, error) {
	p.mu.RLock()
	channel := p.channel
	p.mu.RUnlock()
	if channel != "" {
		return channel, nil
	}

	v, err, _ := p.group.Do("channel", func() (any, error) {
		p.mu.RLock()
		cached := p.channel
		p.mu.RUnlock()
		if cached != "" {
			return cached, nil
		}
		id, err := p.log.Channel(ctx)
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", errors.New("共识日志返回了空的通道 ID")
		}
		p.mu.Lock()
		p.channel = id
		p.mu.Unlock()
		p.logger.Info("共识日志通道已就绪", slog.String("channel_id", id))
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Publish 依次写入每个步骤记录，再写入完成记录。任一写入失败立即中止，
// 不在本调用内重试。
func (p *Publisher) Publish(ctx context.Context, proofID string, steps []proof.Step) (res Result, err error) {
	started := time.Now()
	defer func() { metrics.ObserveAnchor(time.Since(started), err) }()

	if len(steps) == 0 {
		return Result{}, anchorError(proofID, "validate", 0, errors.New("没有可锚定的步骤"))
	}

	channel, err := p.ChannelID(ctx)
	if err != nil {
		return Result{}, anchorError(proofID, "channel", 0, err)
	}

	seqs := make([]uint64, 0, len(steps))
	for _, step := range steps {
		payload, encErr := encodeRecord(newStepRecord(proofID, step))
		if encErr != nil {
			return Result{}, anchorError(proofID, "encode", step.StepNumber, encErr)
		}
		seq, subErr := p.log.Submit(ctx, channel, payload)
		if subErr != nil {
			return Result{}, anchorError(proofID, "step", step.StepNumber, subErr)
		}
		seqs = append(seqs, seq)
		p.logger.Debug("步骤已锚定",
			slog.String("proof_id", proofID),
			slog.Int("step", step.StepNumber),
			slog.Uint64("sequence", seq),
		)
	}

	root := proof.RootHash(steps)
	payload, err := encodeRecord(CompleteRecord{
		Type:       RecordProofComplete,
		ProofID:    proofID,
		TotalSteps: len(steps),
		RootHash:   root,
		Timestamp:  p.now().UnixMilli(),
	})
	if err != nil {
		return Result{}, anchorError(proofID, "encode", 0, err)
	}
	completion, err := p.log.Submit(ctx, channel, payload)
	if err != nil {
		return Result{}, anchorError(proofID, "complete", 0, err)
	}

	return Result{
		ChannelID:          channel,
		SequenceNumbers:    seqs,
		RootHash:           root,
		CompletionSequence: completion,
	}, nil
}
