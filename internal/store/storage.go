package store

import (
	"context"
	"sync"

	xerrors "ProofFlow-Chain/internal/errors"
)

// SnapshotStorage 是快照的持久化后端，只需保证最近一次写入可读。
type SnapshotStorage interface {
	WriteSnapshot(ctx context.Context, data []byte) error
	ReadLatestSnapshot(ctx context.Context) ([]byte, error)
}

const (
	CodePersistenceFailure xerrors.Code = "PERSISTENCE_FAILURE"
	CodeNoSnapshot         xerrors.Code = "SNAPSHOT_NOT_FOUND"
	CodeProofConflict      xerrors.Code = "PROOF_CONFLICT"
)

var (
	// ErrNoSnapshot 表示后端中还没有任何快照。
	ErrNoSnapshot = xerrors.New(CodeNoSnapshot, "no snapshot available")
	// ErrConflict 表示证明 ID 已存在。
	ErrConflict = xerrors.New(CodeProofConflict, "proof already exists")
)

func init() {
	xerrors.Register(CodePersistenceFailure, xerrors.Attributes{
		Message:   "snapshot persistence failed",
		Severity:  xerrors.SeverityCritical,
		Retryable: true,
		Alert:     true,
	})
	xerrors.Register(CodeNoSnapshot, xerrors.Attributes{
		Message:   "no snapshot available",
		Severity:  xerrors.SeverityInfo,
		Retryable: false,
		Alert:     false,
	})
	xerrors.Register(CodeProofConflict, xerrors.Attributes{
		Message:   "proof already exists",
		Severity:  xerrors.SeverityWarning,
		Retryable: false,
		Alert:     false,
	})
}

// MemorySnapshotStorage 只在内存中保留最近一次快照，主要用于测试。
type MemorySnapshotStorage struct {
	mu     sync.Mutex
	data   []byte
	writes int
	err    error
}

// NewMemorySnapshotStorage 创建内存快照后端。
func NewMemorySnapshotStorage() *MemorySnapshotStorage {
	return &MemorySnapshotStorage{}
}

// FailWith 让后续写入返回指定错误，传 nil 恢复正常。
func (m *MemorySnapshotStorage) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Writes 返回成功写入次数。
func (m *MemorySnapshotStorage) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// WriteSnapshot 实现 SnapshotStorage。
func (m *MemorySnapshotStorage) WriteSnapshot(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data = append([]byte(nil), data...)
	m.writes++
	return nil
}

// ReadLatestSnapshot 实现 SnapshotStorage。
func (m *MemorySnapshotStorage) ReadLatestSnapshot(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), m.data...), nil
}
