package credential

import (
	xerrors "ProofFlow-Chain/internal/errors"
)

// CodeIssuanceFailure 表示凭证发放在重试耗尽后仍然失败。
const CodeIssuanceFailure xerrors.Code = "ISSUANCE_FAILURE"

// ErrIssuanceFailure 用于 errors.Is 判断发放失败。
var ErrIssuanceFailure = xerrors.New(CodeIssuanceFailure, "issuance failure")

func init() {
	xerrors.Register(CodeIssuanceFailure, xerrors.Attributes{
		Message:   "issuance failure",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     true,
	})
}
