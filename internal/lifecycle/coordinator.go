package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/observability/alerting"
	"ProofFlow-Chain/internal/observability/metrics"
	"ProofFlow-Chain/internal/proof"
	"ProofFlow-Chain/internal/store"
	"ProofFlow-Chain/pkg/logger"
)

// Store 是生命周期所需的证明存储能力。
type Store interface {
	Put(ctx context.Context, p *proof.Proof) error
	Get(ctx context.Context, id string) (*proof.Proof, error)
	Update(ctx context.Context, id string, fn func(*proof.Proof) error) (*proof.Proof, error)
}

// SubmitRequest 描述一次证明登记请求。
type SubmitRequest struct {
	Question          string
	RawOutput         string
	RequesterIdentity string
}

// Coordinator 负责登记证明并把后续工作交给队列。
type Coordinator struct {
	store    Store
	producer Producer
	alerter  alerting.Dispatcher
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// CoordinatorOption 定义可选配置。
type CoordinatorOption func(*Coordinator)

// WithClock 注入时间源。
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator 替换证明 ID 生成方式。
func WithIDGenerator(gen func() string) CoordinatorOption {
	return func(c *Coordinator) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// WithCoordinatorAlerts 配置告警派发器。
func WithCoordinatorAlerts(dispatcher alerting.Dispatcher) CoordinatorOption {
	return func(c *Coordinator) {
		c.alerter = dispatcher
	}
}

// NewCoordinator 构造 Coordinator。
func NewCoordinator(st Store, producer Producer, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:    st,
		producer: producer,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger.Named("coordinator"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Submit 提取步骤、登记证明并投递锚定工作，立即返回 PUBLISHING 状态的证明。
// 快照写入失败与入队失败都只记录日志：证明已登记，调用方仍能拿到 ID。
func (c *Coordinator) Submit(ctx context.Context, req SubmitRequest) (*proof.Proof, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, xerrors.New(proof.CodeProofValidation, "问题不能为空")
	}
	if c.store == nil || c.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "生命周期协调器未初始化")
	}

	now := c.now()
	extraction := proof.ExtractAt(req.RawOutput, now)
	id := c.newID()
	if extraction.Degraded() {
		reasons := extraction.Reasons()
		metrics.RecordExtractionDegraded(reasons)
		logger.Audit().Warn("步骤提取降级",
			slog.String("proof_id", id),
			slog.Any("reasons", reasons),
			slog.Int("steps", len(extraction.Steps)),
		)
	}

	p, err := proof.New(id, req.Question, extraction.Steps, req.RequesterIdentity, now)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, p); err != nil {
		if !xerrors.HasCode(err, store.CodePersistenceFailure) {
			return nil, err
		}
		c.report(ctx, id, "register", err)
	}
	metrics.RecordSubmission()
	metrics.RecordTransition(string(proof.StatusPublishing))
	logger.Audit().Info("证明已登记",
		slog.String("proof_id", id),
		slog.Int("steps", p.TotalSteps),
		slog.Bool("with_requester", p.RequesterIdentity != ""),
	)

	if err := c.producer.Publish(ctx, id); err != nil {
		c.report(ctx, id, "enqueue", xerrors.Wrap(CodeQueuePublishFailed, err,
			fmt.Sprintf("证明 %s 投递到队列失败", id), xerrors.WithMetadata("proof_id", id)))
	}
	return p, nil
}

// Redrive 为停滞的证明重新投递工作。只接受仍处于 PUBLISHING，
// 或已锚定但尚未发放凭证的证明。
func (c *Coordinator) Redrive(ctx context.Context, id string) (*proof.Proof, error) {
	if c.store == nil || c.producer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "生命周期协调器未初始化")
	}
	p, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case p.Status == proof.StatusPublishing:
	case p.Anchored() && p.NeedsCredential():
	case p.Anchored() && p.CredentialReceipt != nil:
		return nil, proof.ErrCredentialAlreadyIssued
	default:
		return nil, xerrors.New(CodeRedriveRejected, fmt.Sprintf("证明 %s 处于 %s 状态，无需重新驱动", id, p.Status),
			xerrors.WithMetadata("proof_id", id),
			xerrors.WithMetadata("status", string(p.Status)),
		)
	}
	if err := c.producer.Publish(ctx, id); err != nil {
		return nil, xerrors.Wrap(CodeQueuePublishFailed, err, fmt.Sprintf("证明 %s 重新投递失败", id))
	}
	logger.Audit().Info("证明已重新投递",
		slog.String("proof_id", id),
		slog.String("status", string(p.Status)),
	)
	return p, nil
}

func (c *Coordinator) report(ctx context.Context, id, stage string, err error) {
	reportError(ctx, c.logger, c.alerter, id, stage, err)
}
