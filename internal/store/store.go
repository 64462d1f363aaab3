package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/observability/metrics"
	"ProofFlow-Chain/internal/proof"
	"ProofFlow-Chain/pkg/logger"
)

type entry struct {
	proof *proof.Proof
	seq   uint64
}

// ProofStore 是进程内证明记录的权威注册表。
//
// 读操作使用读锁，可与写操作并发；每次变更后都会同步写入快照，
// 调用方在方法返回时即可认为快照已经落盘（或已记录失败）。
type ProofStore struct {
	mu      sync.RWMutex
	proofs  map[string]*entry
	nextSeq uint64

	snapMu    sync.Mutex
	snapshots SnapshotStorage
	logger    *slog.Logger
}

// Option 定义可选配置。
type Option func(*ProofStore)

// WithSnapshotStorage 指定快照后端。未配置时仅保存在内存中。
func WithSnapshotStorage(storage SnapshotStorage) Option {
	return func(s *ProofStore) {
		s.snapshots = storage
	}
}

// WithLogger 指定日志输出。
func WithLogger(l *slog.Logger) Option {
	return func(s *ProofStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// New 创建 ProofStore。
func New(opts ...Option) *ProofStore {
	s := &ProofStore{proofs: make(map[string]*entry)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = logger.Named("proof_store")
	}
	return s
}

// Put 注册新的证明并写入快照。
//
// 若快照写入失败，内存中的记录仍然保留，返回 PERSISTENCE_FAILURE 错误。
func (s *ProofStore) Put(ctx context.Context, p *proof.Proof) error {
	if p == nil || strings.TrimSpace(p.ProofID) == "" {
		return xerrors.New(xerrors.CodeInvalidArgument, "证明或证明 ID 不能为空")
	}
	s.mu.Lock()
	if _, ok := s.proofs[p.ProofID]; ok {
		s.mu.Unlock()
		return ErrConflict
	}
	s.nextSeq++
	s.proofs[p.ProofID] = &entry{proof: p.Clone(), seq: s.nextSeq}
	s.mu.Unlock()

	return s.persist(ctx, p.ProofID)
}

// Get 返回证明的副本。
func (s *ProofStore) Get(_ context.Context, id string) (*proof.Proof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.proofs[id]
	if !ok {
		return nil, proof.NotFound(id)
	}
	return e.proof.Clone(), nil
}

// Update 在副本上执行 fn，成功后替换原记录并写入快照。
// fn 返回错误时不做任何修改。
func (s *ProofStore) Update(ctx context.Context, id string, fn func(*proof.Proof) error) (*proof.Proof, error) {
	s.mu.Lock()
	e, ok := s.proofs[id]
	if !ok {
		s.mu.Unlock()
		return nil, proof.NotFound(id)
	}
	working := e.proof.Clone()
	if err := fn(working); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	working.TotalSteps = len(working.Steps)
	e.proof = working
	result := working.Clone()
	s.mu.Unlock()

	return result, s.persist(ctx, id)
}

// ListRecent 按创建时间倒序返回证明，时间相同时先插入的排在前面。
func (s *ProofStore) ListRecent(_ context.Context, opts ...ListOption) ([]*proof.Proof, error) {
	options := BuildListOptions(opts)

	s.mu.RLock()
	matched := make([]*entry, 0, len(s.proofs))
	for _, e := range s.proofs {
		if options.matches(e.proof) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].proof.CreatedAt == matched[j].proof.CreatedAt {
			return matched[i].seq < matched[j].seq
		}
		return matched[i].proof.CreatedAt > matched[j].proof.CreatedAt
	})
	if len(matched) > options.Limit {
		matched = matched[:options.Limit]
	}
	results := make([]*proof.Proof, 0, len(matched))
	for _, e := range matched {
		results = append(results, e.proof.Clone())
	}
	return results, nil
}

// Stats 返回当前注册表的统计信息。
func (s *ProofStore) Stats(_ context.Context) Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats Stats
	for _, e := range s.proofs {
		p := e.proof
		stats.Total++
		stats.TotalSteps += len(p.Steps)
		switch p.Status {
		case proof.StatusPublishing:
			stats.Publishing++
		case proof.StatusConfirmed:
			stats.Confirmed++
		case proof.StatusVerified:
			stats.Verified++
		}
		if p.CredentialReceipt != nil {
			stats.WithCredential++
		}
		if stats.OldestCreatedAt == 0 || p.CreatedAt < stats.OldestCreatedAt {
			stats.OldestCreatedAt = p.CreatedAt
		}
		if p.CreatedAt > stats.NewestCreatedAt {
			stats.NewestCreatedAt = p.CreatedAt
		}
	}
	return stats
}

// Len 返回证明数量。
func (s *ProofStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.proofs)
}

// Snapshot 按插入顺序序列化全部证明。
func (s *ProofStore) Snapshot() ([]byte, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.proofs))
	for _, e := range s.proofs {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	records := make([]snapshotRecord, 0, len(entries))
	for _, e := range entries {
		records = append(records, snapshotRecord{id: e.proof.ProofID, proof: e.proof.Clone()})
	}
	s.mu.RUnlock()

	return encodeSnapshot(records)
}

// Restore 从快照后端加载最近一次快照，替换当前内容，返回加载的证明数量。
// 应在接受新请求之前调用。
func (s *ProofStore) Restore(ctx context.Context) (int, error) {
	if s.snapshots == nil {
		return 0, nil
	}
	data, err := s.snapshots.ReadLatestSnapshot(ctx)
	if err != nil {
		if xerrors.HasCode(err, CodeNoSnapshot) {
			return 0, nil
		}
		return 0, xerrors.Wrap(CodePersistenceFailure, err, "读取快照失败")
	}
	records, err := decodeSnapshot(data)
	if err != nil {
		return 0, xerrors.Wrap(CodePersistenceFailure, err, "解码快照失败")
	}

	restored := make(map[string]*entry, len(records))
	var seq uint64
	for _, rec := range records {
		seq++
		restored[rec.id] = &entry{proof: rec.proof, seq: seq}
	}

	s.mu.Lock()
	s.proofs = restored
	s.nextSeq = seq
	s.mu.Unlock()

	publishing := 0
	for _, rec := range records {
		if rec.proof.Status == proof.StatusPublishing {
			publishing++
		}
	}
	s.logger.Info("快照恢复完成",
		slog.Int("proofs", len(records)),
		slog.Int("publishing", publishing),
	)
	if publishing > 0 {
		// 重启不会自动恢复锚定，这些证明需要外部重新驱动。
		logger.Audit().Warn("存在未完成锚定的证明",
			slog.Int("publishing", publishing),
		)
	}
	return len(records), nil
}

func (s *ProofStore) persist(ctx context.Context, id string) error {
	if s.snapshots == nil {
		return nil
	}
	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	data, err := s.Snapshot()
	if err == nil {
		err = s.snapshots.WriteSnapshot(ctx, data)
	}
	metrics.RecordSnapshotWrite(err)
	if err != nil {
		return xerrors.Wrap(CodePersistenceFailure, err, fmt.Sprintf("证明 %s 变更后写入快照失败", id),
			xerrors.WithMetadata("proof_id", id))
	}
	return nil
}
