package credential

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/observability/metrics"
	"ProofFlow-Chain/internal/proof"
	"ProofFlow-Chain/pkg/logger"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultAmount      = 1

	txPlaceholder = "{tx}"
)

// Config 描述发放策略。
type Config struct {
	MaxAttempts         int
	BaseDelay           time.Duration
	Amount              uint64
	ExplorerURLTemplate string
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.Amount == 0 {
		c.Amount = DefaultAmount
	}
}

// SleepFunc 等待指定时长，ctx 取消时提前返回。
type SleepFunc func(ctx context.Context, d time.Duration) error

// Issuer 按指数退避重试调用账本。
type Issuer struct {
	ledger Ledger
	cfg    Config
	sleep  SleepFunc
	logger *slog.Logger
}

// IssuerOption 定制 Issuer。
type IssuerOption func(*Issuer)

// WithSleep 替换等待函数，测试中用于记录退避时长。
func WithSleep(sleep SleepFunc) IssuerOption {
	return func(i *Issuer) {
		if sleep != nil {
			i.sleep = sleep
		}
	}
}

// NewIssuer 创建 Issuer。
func NewIssuer(ledger Ledger, cfg Config, opts ...IssuerOption) *Issuer {
	cfg.applyDefaults()
	i := &Issuer{
		ledger: ledger,
		cfg:    cfg,
		sleep:  sleepContext,
		logger: logger.Named("credential"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(i)
		}
	}
	return i
}

// Backoff 返回第 attempt 次尝试前的等待时长，首次尝试为 0。
func (i *Issuer) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return i.cfg.BaseDelay << (attempt - 2)
}

// Issue 为证明发放凭证。最多尝试 MaxAttempts 次，非可重试错误立即终止。
// 失败时不返回任何部分结果。
func (i *Issuer) Issue(ctx context.Context, proofID, identity string) (proof.CredentialReceipt, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return proof.CredentialReceipt{}, xerrors.New(xerrors.CodeInvalidArgument, "缺少凭证接收身份")
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= i.cfg.MaxAttempts; attempt++ {
		if delay := i.Backoff(attempt); delay > 0 {
			if err := i.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}
		attempts = attempt
		ref, err := i.ledger.Mint(ctx, identity, i.cfg.Amount)
		metrics.RecordIssuanceAttempt(err)
		if err == nil {
			return proof.CredentialReceipt{
				TransactionRef: ref,
				ExplorerURL:    i.ExplorerURL(ref),
			}, nil
		}
		lastErr = err
		i.logger.Warn("凭证发放失败",
			slog.String("proof_id", proofID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", i.cfg.MaxAttempts),
			slog.Any("error", err),
		)
		if e, ok := xerrors.From(err); ok && !e.Retryable() {
			break
		}
	}

	return proof.CredentialReceipt{}, xerrors.Wrap(CodeIssuanceFailure, lastErr,
		fmt.Sprintf("证明 %s 的凭证发放失败", proofID),
		xerrors.WithMetadata("proof_id", proofID),
		xerrors.WithMetadata("attempts", strconv.Itoa(attempts)),
	)
}

// ExplorerURL 根据模板生成交易浏览器链接。模板中的 {tx} 会被替换，
// 没有占位符时直接拼接在末尾。
func (i *Issuer) ExplorerURL(txRef string) string {
	tmpl := strings.TrimSpace(i.cfg.ExplorerURLTemplate)
	if tmpl == "" {
		return ""
	}
	if strings.Contains(tmpl, txPlaceholder) {
		return strings.ReplaceAll(tmpl, txPlaceholder, txRef)
	}
	return strings.TrimRight(tmpl, "/") + "/" + txRef
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
