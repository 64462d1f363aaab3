// Package query serves read-only views of the proof registry. Every call works
// on copies and may run concurrently with background writers.
package query

import (
	"context"

	"ProofFlow-Chain/internal/proof"
	"ProofFlow-Chain/internal/store"
)

// Reader 是只读查询所需的存储能力。
type Reader interface {
	Get(ctx context.Context, id string) (*proof.Proof, error)
	ListRecent(ctx context.Context, opts ...store.ListOption) ([]*proof.Proof, error)
	Stats(ctx context.Context) store.Stats
}

// Service 提供证明查询。
type Service struct {
	reader Reader
}

// NewService 创建查询服务。
func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// GetByID 返回单个证明，不存在时返回 PROOF_NOT_FOUND。
func (s *Service) GetByID(ctx context.Context, id string) (*proof.Proof, error) {
	return s.reader.Get(ctx, id)
}

// ListRecent 按创建时间倒序返回证明。limit 非正时取默认值 20，
// requester 为空时不过滤。
func (s *Service) ListRecent(ctx context.Context, limit int, requester string, statuses ...proof.Status) ([]*proof.Proof, error) {
	opts := []store.ListOption{store.WithLimit(limit), store.WithRequester(requester)}
	if len(statuses) > 0 {
		opts = append(opts, store.WithStatuses(statuses...))
	}
	return s.reader.ListRecent(ctx, opts...)
}

// Stats 返回注册表统计。
func (s *Service) Stats(ctx context.Context) store.Stats {
	return s.reader.Stats(ctx)
}
