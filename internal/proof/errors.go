package proof

import (
	"fmt"

	xerrors "ProofFlow-Chain/internal/errors"
)

const (
	CodeProofNotFound           xerrors.Code = "PROOF_NOT_FOUND"
	CodeProofValidation         xerrors.Code = "PROOF_VALIDATION_FAILED"
	CodeInvalidTransition       xerrors.Code = "PROOF_INVALID_TRANSITION"
	CodeCredentialAlreadyIssued xerrors.Code = "CREDENTIAL_ALREADY_ISSUED"
)

var (
	// ErrNotFound 表示指定的证明不存在。
	ErrNotFound = xerrors.New(CodeProofNotFound, "proof not found")
	// ErrCredentialAlreadyIssued 表示证明已经绑定过凭证回执。
	ErrCredentialAlreadyIssued = xerrors.New(CodeCredentialAlreadyIssued, "credential already issued")
	// ErrInvalidTransition 用于 errors.Is 判断非法状态迁移。
	ErrInvalidTransition = xerrors.New(CodeInvalidTransition, "invalid proof transition")
)

func init() {
	xerrors.Register(CodeProofNotFound, xerrors.Attributes{
		Message:   "proof not found",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeProofValidation, xerrors.Attributes{
		Message:   "proof validation failed",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeInvalidTransition, xerrors.Attributes{
		Message:   "invalid proof transition",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeCredentialAlreadyIssued, xerrors.Attributes{
		Message:   "credential already issued",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
}

// NotFound 返回带证明 ID 的 NotFound 错误。
func NotFound(id string) error {
	return xerrors.New(CodeProofNotFound, fmt.Sprintf("证明 %s 不存在", id), xerrors.WithMetadata("proof_id", id))
}

func validationError(msg string) error {
	return xerrors.New(CodeProofValidation, msg)
}

func transitionError(from, to Status, reason string) error {
	return xerrors.New(CodeInvalidTransition, fmt.Sprintf("%s -> %s: %s", from, to, reason),
		xerrors.WithMetadata("from", string(from)),
		xerrors.WithMetadata("to", string(to)),
	)
}
