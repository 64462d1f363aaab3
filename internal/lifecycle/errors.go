package lifecycle

import (
	xerrors "ProofFlow-Chain/internal/errors"
)

const (
	// CodeQueuePublishFailed 表示证明已登记但未能投递到工作队列。
	CodeQueuePublishFailed xerrors.Code = "QUEUE_PUBLISH_FAILED"
	// CodeRedriveRejected 表示证明当前状态无需重新驱动。
	CodeRedriveRejected xerrors.Code = "REDRIVE_REJECTED"
)

var (
	// ErrRedriveRejected 用于 errors.Is 判断。
	ErrRedriveRejected = xerrors.New(CodeRedriveRejected, "redrive rejected")
)

func init() {
	xerrors.Register(CodeQueuePublishFailed, xerrors.Attributes{
		Message:   "queue publish failed",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeRedriveRejected, xerrors.Attributes{
		Message:   "redrive rejected",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}
