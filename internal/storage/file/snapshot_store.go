// Package file keeps proof registry snapshots on the local filesystem.
package file

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/store"
)

// DefaultFileName 是快照文件的默认名称。
const DefaultFileName = "proofs.json"

// SnapshotStore 把快照写到单个 JSON 文件，通过临时文件加 rename 保证原子替换。
type SnapshotStore struct {
	mu   sync.Mutex
	path string
}

var _ store.SnapshotStorage = (*SnapshotStore)(nil)

// NewSnapshotStore 在 dataDir 下创建快照存储。
func NewSnapshotStore(dataDir string) (*SnapshotStore, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "创建数据目录失败")
	}
	return &SnapshotStore{path: filepath.Join(dataDir, DefaultFileName)}, nil
}

// Path 返回快照文件路径。
func (s *SnapshotStore) Path() string {
	return s.path
}

// WriteSnapshot 实现 store.SnapshotStorage。
func (s *SnapshotStore) WriteSnapshot(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".proofs-*.tmp")
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建临时快照文件失败")
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}
	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入临时快照文件失败")
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "同步临时快照文件失败")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "关闭临时快照文件失败")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("替换快照文件 %s 失败", s.path))
	}
	return nil
}

// ReadLatestSnapshot 实现 store.SnapshotStorage。
func (s *SnapshotStore) ReadLatestSnapshot(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if stdErrors.Is(err, fs.ErrNotExist) {
			return nil, store.ErrNoSnapshot
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取快照文件失败")
	}
	return data, nil
}
