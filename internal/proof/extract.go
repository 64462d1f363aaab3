package proof

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var markerPattern = regexp.MustCompile(`(?i)\[\s*(STEP\s*\d+|FINAL)\s*\]`)

// Extraction 是一次步骤解析的结果。
type Extraction struct {
	Steps []Step
	// Fallback 表示原文中没有任何标记，整段文本作为单个 FINAL 步骤。
	Fallback bool
	// Relabelled 表示 FINAL 标记缺失或重复，解析时做了修正。
	Relabelled bool
	// EmptySteps 记录内容为空的步骤编号。
	EmptySteps []int
}

// Degraded 判断解析结果是否需要在审计日志中标记。
func (e Extraction) Degraded() bool {
	return e.Fallback || e.Relabelled || len(e.EmptySteps) > 0
}

// Reasons 返回降级原因，供日志与指标使用。
func (e Extraction) Reasons() []string {
	var reasons []string
	if e.Fallback {
		reasons = append(reasons, "no_markers")
	}
	if e.Relabelled {
		reasons = append(reasons, "final_relabelled")
	}
	if len(e.EmptySteps) > 0 {
		reasons = append(reasons, "empty_content")
	}
	return reasons
}

// Extract 把模型原始输出解析为有序步骤，永不失败。
func Extract(raw string) Extraction {
	return ExtractAt(raw, time.Now())
}

// ExtractAt 与 Extract 相同，但使用给定时间作为步骤时间戳。
//
// 标记形如 [STEP n] 或 [FINAL]，大小写与空白不敏感。步骤编号按出现位置
// 重新分配，忽略标记内的数字。第一个标记之前的文本被丢弃。
func ExtractAt(raw string, now time.Time) Extraction {
	ts := now.UnixMilli()
	matches := markerPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		content := strings.TrimSpace(raw)
		result := Extraction{
			Steps:    []Step{newStep(1, LabelFinal, content, ts)},
			Fallback: true,
		}
		if content == "" {
			result.EmptySteps = []int{1}
		}
		return result
	}

	lastFinal := -1
	for i, m := range matches {
		if isFinalMarker(raw[m[2]:m[3]]) {
			lastFinal = i
		}
	}

	result := Extraction{Steps: make([]Step, 0, len(matches))}
	// FINAL 只能是最后一步：缺失时把最后一步改为 FINAL，重复时只保留最后一个。
	if lastFinal != len(matches)-1 {
		result.Relabelled = true
	}
	for i, m := range matches {
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := strings.TrimSpace(raw[m[1]:end])
		number := i + 1
		label := fmt.Sprintf("STEP %d", number)
		if i == len(matches)-1 {
			label = LabelFinal
		} else if isFinalMarker(raw[m[2]:m[3]]) {
			result.Relabelled = true
		}
		if content == "" {
			result.EmptySteps = append(result.EmptySteps, number)
		}
		result.Steps = append(result.Steps, newStep(number, label, content, ts))
	}
	return result
}

func isFinalMarker(marker string) bool {
	return strings.EqualFold(strings.TrimSpace(marker), LabelFinal)
}

func newStep(number int, label, content string, ts int64) Step {
	return Step{
		StepNumber: number,
		Label:      label,
		Content:    content,
		Hash:       HashContent(content),
		Timestamp:  ts,
	}
}
