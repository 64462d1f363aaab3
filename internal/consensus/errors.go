package consensus

import (
	"fmt"
	"strconv"

	xerrors "ProofFlow-Chain/internal/errors"
)

// CodeAnchorFailure 表示任意一条记录写入共识日志失败。
const CodeAnchorFailure xerrors.Code = "ANCHOR_FAILURE"

// ErrAnchorFailure 用于 errors.Is 判断锚定失败。
var ErrAnchorFailure = xerrors.New(CodeAnchorFailure, "anchor failure")

func init() {
	xerrors.Register(CodeAnchorFailure, xerrors.Attributes{
		Message:   "anchor failure",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
}

func anchorError(proofID string, stage string, step int, cause error) error {
	msg := fmt.Sprintf("证明 %s 锚定失败 (%s)", proofID, stage)
	opts := []xerrors.Option{
		xerrors.WithMetadata("proof_id", proofID),
		xerrors.WithMetadata("stage", stage),
	}
	if step > 0 {
		msg = fmt.Sprintf("证明 %s 第 %d 步锚定失败", proofID, step)
		opts = append(opts, xerrors.WithMetadata("step", strconv.Itoa(step)))
	}
	return xerrors.Wrap(CodeAnchorFailure, cause, msg, opts...)
}
