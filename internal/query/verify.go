package query

import (
	"context"

	"ProofFlow-Chain/internal/proof"
)

// StepCheck 是单个步骤的哈希复核结果。
type StepCheck struct {
	StepNumber   int    `json:"stepNumber"`
	Label        string `json:"label"`
	StoredHash   string `json:"storedHash"`
	ComputedHash string `json:"computedHash"`
	Match        bool   `json:"match"`
}

// Report 汇总一个证明的完整性复核结果。
type Report struct {
	ProofID              string       `json:"proofId"`
	Status               proof.Status `json:"status"`
	ConsensusLogID       string       `json:"consensusLogId"`
	Steps                []StepCheck  `json:"steps"`
	StepsMatch           bool         `json:"stepsMatch"`
	StoredRootHash       string       `json:"storedRootHash,omitempty"`
	ComputedRootHash     string       `json:"computedRootHash"`
	RootHashMatch        bool         `json:"rootHashMatch"`
	Anchored             bool         `json:"anchored"`
	SequenceNumbersMatch bool         `json:"sequenceNumbersMatch"`
	Valid                bool         `json:"valid"`
}

// Verify 重新计算每个步骤哈希与根哈希，并与存储的值比对。
// 未锚定的证明没有根哈希可比，Valid 只反映步骤哈希。
func (s *Service) Verify(ctx context.Context, id string) (Report, error) {
	p, err := s.reader.Get(ctx, id)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(p), nil
}

// BuildReport 对给定证明执行复核。
func BuildReport(p *proof.Proof) Report {
	r := Report{
		ProofID:          p.ProofID,
		Status:           p.Status,
		ConsensusLogID:   p.ConsensusLogID,
		Steps:            make([]StepCheck, 0, len(p.Steps)),
		StepsMatch:       true,
		StoredRootHash:   p.RootHash,
		ComputedRootHash: proof.RootHash(p.Steps),
		Anchored:         p.Anchored(),
	}
	for _, step := range p.Steps {
		computed := proof.HashContent(step.Content)
		check := StepCheck{
			StepNumber:   step.StepNumber,
			Label:        step.Label,
			StoredHash:   step.Hash,
			ComputedHash: computed,
			Match:        computed == step.Hash,
		}
		if !check.Match {
			r.StepsMatch = false
		}
		r.Steps = append(r.Steps, check)
	}
	r.RootHashMatch = p.RootHash != "" && p.RootHash == r.ComputedRootHash
	r.SequenceNumbersMatch = len(p.SequenceNumbers) == len(p.Steps)

	r.Valid = r.StepsMatch
	if r.Anchored {
		r.Valid = r.Valid && r.RootHashMatch && r.SequenceNumbersMatch
	}
	return r
}
