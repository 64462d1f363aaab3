package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ProofFlow-Chain/internal/proof"
)

// 快照格式为按插入顺序排列的 [id, record] 数组，读取时同时兼容对象映射。

type snapshotRecord struct {
	id    string
	proof *proof.Proof
}

// legacyFields 兼容早期版本写出的字段名。
type legacyFields struct {
	HCSTopicID         string   `json:"hcsTopicId"`
	HCSSequenceNumbers []uint64 `json:"hcsSequenceNumbers"`
	RequesterAddress   string   `json:"requesterAddress"`
	TokenTxID          string   `json:"tokenTxId"`
	ExplorerURL        string   `json:"explorerUrl"`
}

func encodeSnapshot(records []snapshotRecord) ([]byte, error) {
	pairs := make([][2]any, 0, len(records))
	for _, rec := range records {
		pairs = append(pairs, [2]any{rec.id, rec.proof})
	}
	return json.Marshal(pairs)
}

func decodeSnapshot(data []byte) ([]snapshotRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		return decodePairs(trimmed)
	case '{':
		return decodeObject(trimmed)
	default:
		return nil, fmt.Errorf("无法识别的快照格式")
	}
}

func decodePairs(data []byte) ([]snapshotRecord, error) {
	var pairs [][]json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("解析快照失败: %w", err)
	}
	records := make([]snapshotRecord, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("快照第 %d 项不是 [id, record] 结构", i)
		}
		var id string
		if err := json.Unmarshal(pair[0], &id); err != nil {
			return nil, fmt.Errorf("解析快照第 %d 项 ID 失败: %w", i, err)
		}
		p, err := decodeRecord(id, pair[1])
		if err != nil {
			return nil, err
		}
		records = append(records, snapshotRecord{id: id, proof: p})
	}
	return records, nil
}

func decodeObject(data []byte) ([]snapshotRecord, error) {
	var object map[string]json.RawMessage
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, fmt.Errorf("解析快照失败: %w", err)
	}
	records := make([]snapshotRecord, 0, len(object))
	for id, raw := range object {
		p, err := decodeRecord(id, raw)
		if err != nil {
			return nil, err
		}
		records = append(records, snapshotRecord{id: id, proof: p})
	}
	// 对象映射没有顺序，按创建时间近似还原插入顺序。
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].proof.CreatedAt == records[j].proof.CreatedAt {
			return records[i].id < records[j].id
		}
		return records[i].proof.CreatedAt < records[j].proof.CreatedAt
	})
	return records, nil
}

func decodeRecord(id string, raw json.RawMessage) (*proof.Proof, error) {
	var p proof.Proof
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("解析证明 %s 失败: %w", id, err)
	}
	var legacy legacyFields
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("解析证明 %s 失败: %w", id, err)
	}
	if p.ProofID == "" {
		p.ProofID = id
	}
	if p.ConsensusLogID == "" {
		p.ConsensusLogID = legacy.HCSTopicID
	}
	if p.ConsensusLogID == "" {
		p.ConsensusLogID = proof.PendingLogID
	}
	if len(p.SequenceNumbers) == 0 && len(legacy.HCSSequenceNumbers) > 0 {
		p.SequenceNumbers = legacy.HCSSequenceNumbers
	}
	if p.SequenceNumbers == nil {
		p.SequenceNumbers = []uint64{}
	}
	if p.RequesterIdentity == "" {
		p.RequesterIdentity = legacy.RequesterAddress
	}
	// 已发放过凭证的旧记录必须带回收据，否则重驱动会再次发放。
	if p.CredentialReceipt == nil && strings.TrimSpace(legacy.TokenTxID) != "" {
		p.CredentialReceipt = &proof.CredentialReceipt{
			TransactionRef: strings.TrimSpace(legacy.TokenTxID),
			ExplorerURL:    strings.TrimSpace(legacy.ExplorerURL),
		}
	}
	// 未知状态（例如旧版的 PUBLISHING_TO_HEDERA）按 PUBLISHING 处理。
	p.Status = proof.Status(strings.ToUpper(strings.TrimSpace(string(p.Status))))
	if !proof.IsValidStatus(p.Status) {
		p.Status = proof.StatusPublishing
	}
	p.TotalSteps = len(p.Steps)
	return &p, nil
}
