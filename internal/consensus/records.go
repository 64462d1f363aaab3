package consensus

import (
	"encoding/json"

	"ProofFlow-Chain/internal/proof"
)

// RecordType 标识写入共识日志的记录类型。
type RecordType string

const (
	RecordReasoningStep RecordType = "REASONING_STEP"
	RecordProofComplete RecordType = "PROOF_COMPLETE"
)

// StepRecord 对应单个推理步骤。
type StepRecord struct {
	Type       RecordType `json:"type"`
	ProofID    string     `json:"proofId"`
	StepNumber int        `json:"stepNumber"`
	Label      string     `json:"label"`
	Hash       string     `json:"hash"`
	Timestamp  int64      `json:"timestamp"`
}

// CompleteRecord 在全部步骤确认后写入，承诺根哈希。
type CompleteRecord struct {
	Type       RecordType `json:"type"`
	ProofID    string     `json:"proofId"`
	TotalSteps int        `json:"totalSteps"`
	RootHash   string     `json:"rootHash"`
	Timestamp  int64      `json:"timestamp"`
}

// newStepRecord 使用步骤的提取时间，使链上记录可以与持久化的步骤逐项比对。
func newStepRecord(proofID string, step proof.Step) StepRecord {
	return StepRecord{
		Type:       RecordReasoningStep,
		ProofID:    proofID,
		StepNumber: step.StepNumber,
		Label:      step.Label,
		Hash:       step.Hash,
		Timestamp:  step.Timestamp,
	}
}

func encodeRecord(record any) ([]byte, error) {
	return json.Marshal(record)
}
