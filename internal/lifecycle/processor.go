package lifecycle

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"time"

	"ProofFlow-Chain/internal/consensus"
	"ProofFlow-Chain/internal/credential"
	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/observability/alerting"
	"ProofFlow-Chain/internal/observability/metrics"
	"ProofFlow-Chain/internal/proof"
	"ProofFlow-Chain/internal/store"
	"ProofFlow-Chain/pkg/logger"
)

// Anchorer 把证明步骤写入共识日志。
type Anchorer interface {
	Publish(ctx context.Context, proofID string, steps []proof.Step) (consensus.Result, error)
}

// Issuer 为证明发放凭证。
type Issuer interface {
	Issue(ctx context.Context, proofID, identity string) (proof.CredentialReceipt, error)
}

// Processor 从队列消费证明 ID，完成锚定与凭证发放。
//
// 后台错误在 handle 中统一记录并派发告警，不会传回原始调用方。
type Processor struct {
	store       Store
	anchorer    Anchorer
	issuer      Issuer
	consumer    Consumer
	workerCount int
	logger      *slog.Logger
	alerter     alerting.Dispatcher
	locks       *keyedMutex
}

// ProcessorOption 定义可选配置。
type ProcessorOption func(*Processor)

// WithProcessorLogger 指定日志输出。
func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithWorkerCount 设置消费协程数量。
func WithWorkerCount(workers int) ProcessorOption {
	return func(p *Processor) {
		if workers > 0 {
			p.workerCount = workers
		}
	}
}

// WithIssuer 配置凭证发放器。未配置时跳过发放。
func WithIssuer(issuer Issuer) ProcessorOption {
	return func(p *Processor) {
		p.issuer = issuer
	}
}

// WithAlertDispatcher 配置告警派发器。
func WithAlertDispatcher(dispatcher alerting.Dispatcher) ProcessorOption {
	return func(p *Processor) {
		p.alerter = dispatcher
	}
}

// NewProcessor 构造 Processor。
func NewProcessor(st Store, anchorer Anchorer, consumer Consumer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:       st,
		anchorer:    anchorer,
		consumer:    consumer,
		workerCount: 1,
		logger:      logger.Named("processor"),
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Start 启动消费循环，直到 ctx 取消。启动时不会扫描存储中未完成的证明。
func (p *Processor) Start(ctx context.Context) error {
	if p.consumer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "未配置队列消费者")
	}
	return p.consumer.Consume(ctx, p.workerCount, p.handle)
}

func (p *Processor) handle(ctx context.Context, proofID string) error {
	err := p.Process(ctx, proofID)
	if err == nil {
		return nil
	}
	if stdErrors.Is(err, proof.ErrNotFound) {
		logger.ForProof(p.logger, proofID).Debug("跳过未知证明")
		return nil
	}
	stage := "process"
	switch xerrors.CodeOf(err) {
	case consensus.CodeAnchorFailure:
		stage = "anchor"
	case credential.CodeIssuanceFailure:
		stage = "issue"
	case xerrors.CodeInitializationFailure:
		return err
	}
	p.report(ctx, proofID, stage, err)
	return nil
}

// Process 同步推进单个证明：PUBLISHING 时锚定并确认，随后在需要时发放凭证。
// 同一证明 ID 的调用互斥执行。
func (p *Processor) Process(ctx context.Context, proofID string) error {
	if p.store == nil || p.anchorer == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "处理器未初始化")
	}
	unlock := p.locks.Lock(proofID)
	defer unlock()

	current, err := p.store.Get(ctx, proofID)
	if err != nil {
		return err
	}

	if current.Status == proof.StatusPublishing {
		current, err = p.anchor(ctx, current)
		if err != nil {
			return err
		}
	}

	if !current.Anchored() || !current.NeedsCredential() {
		return nil
	}
	if p.issuer == nil {
		logger.ForProof(p.logger, proofID).Debug("未配置凭证发放，跳过")
		return nil
	}
	return p.issue(ctx, current)
}

func (p *Processor) anchor(ctx context.Context, current *proof.Proof) (*proof.Proof, error) {
	res, err := p.anchorer.Publish(ctx, current.ProofID, current.Steps)
	if err != nil {
		return nil, err
	}
	updated, err := p.store.Update(ctx, current.ProofID, func(pr *proof.Proof) error {
		return pr.Confirm(res.ChannelID, res.RootHash, res.SequenceNumbers)
	})
	if err != nil {
		if updated == nil || !xerrors.HasCode(err, store.CodePersistenceFailure) {
			return nil, err
		}
		p.report(ctx, current.ProofID, "persist", err)
	}
	metrics.RecordTransition(string(proof.StatusConfirmed))
	logger.ForProof(logger.Audit(), updated.ProofID).Info("证明已锚定",
		slog.String("consensus_log_id", updated.ConsensusLogID),
		slog.String("root_hash", updated.RootHash),
		slog.Int("steps", updated.TotalSteps),
	)
	return updated, nil
}

func (p *Processor) issue(ctx context.Context, current *proof.Proof) error {
	receipt, err := p.issuer.Issue(ctx, current.ProofID, current.RequesterIdentity)
	if err != nil {
		return err
	}
	updated, err := p.store.Update(ctx, current.ProofID, func(pr *proof.Proof) error {
		return pr.AttachReceipt(receipt)
	})
	if err != nil {
		if updated == nil || !xerrors.HasCode(err, store.CodePersistenceFailure) {
			return err
		}
		p.report(ctx, current.ProofID, "persist", err)
	}
	logger.ForProof(logger.Audit(), current.ProofID).Info("凭证已发放",
		slog.String("requester", current.RequesterIdentity),
		slog.String("transaction_ref", receipt.TransactionRef),
	)
	return nil
}

func (p *Processor) report(ctx context.Context, proofID, stage string, err error) {
	reportError(ctx, p.logger, p.alerter, proofID, stage, err)
}

// reportError 是后台错误唯一的记录点：日志、指标与告警。
func reportError(ctx context.Context, l *slog.Logger, alerter alerting.Dispatcher, proofID, stage string, err error) {
	code := xerrors.CodeOf(err)
	severity := xerrors.SeverityOf(err)
	l = logger.ForProof(l, proofID)
	l.Error("证明处理失败",
		slog.String("stage", stage),
		slog.String("error_code", string(code)),
		slog.String("severity", string(severity)),
		slog.Any("error", err),
	)
	metrics.RecordBackgroundError(string(code))

	if alerter == nil || !xerrors.ShouldAlert(err) {
		return
	}
	metadata := xerrors.MetadataOf(err)
	metadata["cause"] = err.Error()
	event := alerting.Event{
		Code:       code,
		Message:    err.Error(),
		Severity:   severity,
		ProofID:    proofID,
		Stage:      stage,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}
	if alertErr := alerter.Notify(ctx, event); alertErr != nil {
		l.Error("告警通知失败",
			slog.Any("error", alertErr),
			slog.String("proof_id", proofID),
			slog.String("stage", stage),
		)
	}
}
