package proof

import (
	"fmt"
	"strings"
	"time"
)

// Status 表示证明在生命周期中的状态。
type Status string

const (
	// StatusPublishing 为注册后的初始状态，步骤尚未全部锚定。
	StatusPublishing Status = "PUBLISHING"
	// StatusConfirmed 表示全部步骤与完成记录均已写入共识日志。
	StatusConfirmed Status = "CONFIRMED"
	// StatusVerified 仅由外部验证信号触发，本服务不会自动进入该状态。
	StatusVerified Status = "VERIFIED"
)

// PendingLogID 是尚未分配共识日志通道时的占位值。
const PendingLogID = "pending"

// LabelFinal 是终结步骤的标签。
const LabelFinal = "FINAL"

// Step 是模型输出中的一个推理单元。
type Step struct {
	StepNumber int    `json:"stepNumber"`
	Label      string `json:"label"`
	Content    string `json:"content"`
	Hash       string `json:"hash"`
	Timestamp  int64  `json:"timestamp"`
}

// CredentialReceipt 记录一次成功的奖励凭证发放。
type CredentialReceipt struct {
	TransactionRef string `json:"transactionRef"`
	ExplorerURL    string `json:"explorerUrl"`
}

// Proof 是可被外部验证的推理证明。
type Proof struct {
	ProofID           string             `json:"proofId"`
	Question          string             `json:"question"`
	Steps             []Step             `json:"steps"`
	TotalSteps        int                `json:"totalSteps"`
	Status            Status             `json:"status"`
	ConsensusLogID    string             `json:"consensusLogId"`
	RootHash          string             `json:"rootHash,omitempty"`
	SequenceNumbers   []uint64           `json:"sequenceNumbers"`
	RequesterIdentity string             `json:"requesterIdentity,omitempty"`
	CredentialReceipt *CredentialReceipt `json:"credentialReceipt,omitempty"`
	CreatedAt         int64              `json:"createdAt"`
}

// New 构造一个处于 PUBLISHING 状态的证明。
func New(id, question string, steps []Step, requester string, createdAt time.Time) (*Proof, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, validationError("证明 ID 不能为空")
	}
	if err := ValidateSteps(steps); err != nil {
		return nil, err
	}
	copied := make([]Step, len(steps))
	copy(copied, steps)
	return &Proof{
		ProofID:           id,
		Question:          question,
		Steps:             copied,
		TotalSteps:        len(copied),
		Status:            StatusPublishing,
		ConsensusLogID:    PendingLogID,
		SequenceNumbers:   []uint64{},
		RequesterIdentity: strings.TrimSpace(requester),
		CreatedAt:         createdAt.UnixMilli(),
	}, nil
}

// ValidateSteps 校验步骤序列：编号从 1 连续递增，且仅最后一步标记为 FINAL。
func ValidateSteps(steps []Step) error {
	if len(steps) == 0 {
		return validationError("证明至少需要一个步骤")
	}
	for i, step := range steps {
		if step.StepNumber != i+1 {
			return validationError(fmt.Sprintf("步骤编号不连续: 位置 %d 的编号为 %d", i+1, step.StepNumber))
		}
		last := i == len(steps)-1
		if (step.Label == LabelFinal) != last {
			return validationError(fmt.Sprintf("FINAL 标签必须且只能出现在最后一步 (位置 %d)", i+1))
		}
		if step.Hash != HashContent(step.Content) {
			return validationError(fmt.Sprintf("步骤 %d 的哈希与内容不匹配", step.StepNumber))
		}
	}
	return nil
}

// Confirm 在锚定完成后把证明推进到 CONFIRMED。
func (p *Proof) Confirm(channelID, rootHash string, sequenceNumbers []uint64) error {
	if p.Status != StatusPublishing {
		return transitionError(p.Status, StatusConfirmed, "仅 PUBLISHING 状态可以确认")
	}
	if len(sequenceNumbers) != len(p.Steps) {
		return transitionError(p.Status, StatusConfirmed,
			fmt.Sprintf("序列号数量 %d 与步骤数量 %d 不一致", len(sequenceNumbers), len(p.Steps)))
	}
	if strings.TrimSpace(rootHash) == "" {
		return transitionError(p.Status, StatusConfirmed, "根哈希为空")
	}
	if expected := RootHash(p.Steps); expected != rootHash {
		return transitionError(p.Status, StatusConfirmed, "根哈希与步骤哈希不一致")
	}
	if strings.TrimSpace(channelID) == "" {
		return transitionError(p.Status, StatusConfirmed, "共识日志通道为空")
	}
	p.ConsensusLogID = channelID
	p.RootHash = rootHash
	p.SequenceNumbers = append([]uint64(nil), sequenceNumbers...)
	p.Status = StatusConfirmed
	return nil
}

// MarkVerified 记录外部验证信号，只允许从 CONFIRMED 进入。
func (p *Proof) MarkVerified() error {
	if p.Status != StatusConfirmed {
		return transitionError(p.Status, StatusVerified, "仅 CONFIRMED 状态可以标记为已验证")
	}
	p.Status = StatusVerified
	return nil
}

// AttachReceipt 绑定凭证回执。同一证明只能绑定一次。
func (p *Proof) AttachReceipt(receipt CredentialReceipt) error {
	if p.CredentialReceipt != nil {
		return ErrCredentialAlreadyIssued
	}
	if !p.Anchored() {
		return transitionError(p.Status, p.Status, "证明尚未锚定，不能发放凭证")
	}
	if strings.TrimSpace(receipt.TransactionRef) == "" {
		return validationError("凭证交易引用不能为空")
	}
	p.CredentialReceipt = &receipt
	return nil
}

// Anchored 判断证明是否已完成锚定。
func (p *Proof) Anchored() bool {
	return p.Status == StatusConfirmed || p.Status == StatusVerified
}

// NeedsCredential 判断证明是否仍需要发放凭证。
func (p *Proof) NeedsCredential() bool {
	return p.RequesterIdentity != "" && p.CredentialReceipt == nil
}

// FinalAnswer 返回 FINAL 步骤的内容。
func (p *Proof) FinalAnswer() string {
	for i := len(p.Steps) - 1; i >= 0; i-- {
		if p.Steps[i].Label == LabelFinal {
			return p.Steps[i].Content
		}
	}
	return ""
}

// Clone 返回深拷贝，调用方可以自由修改。
func (p *Proof) Clone() *Proof {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Steps = append([]Step(nil), p.Steps...)
	if p.SequenceNumbers != nil {
		clone.SequenceNumbers = append([]uint64{}, p.SequenceNumbers...)
	}
	if p.CredentialReceipt != nil {
		receipt := *p.CredentialReceipt
		clone.CredentialReceipt = &receipt
	}
	return &clone
}

// IsValidStatus 检查状态是否为支持的枚举值。
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPublishing, StatusConfirmed, StatusVerified:
		return true
	default:
		return false
	}
}
