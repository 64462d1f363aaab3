// Package reasoning defines the boundary to the language model that produces
// raw step-formatted answers.
package reasoning

import (
	"context"
	"fmt"

	xerrors "ProofFlow-Chain/internal/errors"
)

const (
	CodeModelUnavailable xerrors.Code = "MODEL_UNAVAILABLE"
	CodeModelTimeout     xerrors.Code = "MODEL_TIMEOUT"
)

var (
	// ErrModelUnavailable 表示模型服务不可用或返回了无效响应。
	ErrModelUnavailable = xerrors.New(CodeModelUnavailable, "model unavailable")
	// ErrModelTimeout 表示模型调用超时。
	ErrModelTimeout = xerrors.New(CodeModelTimeout, "model timeout")
)

func init() {
	xerrors.Register(CodeModelUnavailable, xerrors.Attributes{
		Message:   "model unavailable",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
	xerrors.Register(CodeModelTimeout, xerrors.Attributes{
		Message:   "model timeout",
		Severity:  xerrors.SeverityWarning,
		Retryable: true,
		Alert:     false,
	})
}

// SystemPrompt 要求模型按 [STEP n] / [FINAL] 格式输出推理过程。
const SystemPrompt = `You are a transparent reasoning engine. Before giving your final answer, you MUST think step by step. Format your response EXACTLY like this:

[STEP 1] {first reasoning step}
[STEP 2] {second reasoning step}
[STEP 3] {third reasoning step}
... (as many steps as needed, minimum 4)
[FINAL] {your final answer}`

// Engine 根据提示词生成原始推理文本。任何文本都是合法的提取输入。
type Engine interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EngineFunc 把普通函数适配为 Engine。
type EngineFunc func(ctx context.Context, prompt string) (string, error)

// Generate 实现 Engine。
func (f EngineFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Unavailable 包装模型不可用错误。
func Unavailable(cause error, msg string) error {
	return xerrors.Wrap(CodeModelUnavailable, cause, msg)
}

// Timeout 包装模型超时错误。
func Timeout(cause error, msg string) error {
	return xerrors.Wrap(CodeModelTimeout, cause, msg)
}

// Static 返回固定文本的引擎，用于本地开发时不依赖外部模型。
func Static(answer string) Engine {
	return EngineFunc(func(ctx context.Context, prompt string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", Timeout(err, "生成被取消")
		}
		if answer != "" {
			return answer, nil
		}
		return fmt.Sprintf("[STEP 1] Restate the question: %s [FINAL] No model is configured; this is a placeholder answer.", prompt), nil
	})
}
