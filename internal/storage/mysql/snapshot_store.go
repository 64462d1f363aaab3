package mysql

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"time"

	xerrors "ProofFlow-Chain/internal/errors"
	"ProofFlow-Chain/internal/store"
)

// SnapshotStore 以追加写的方式把快照写入 proof_snapshots 表。
type SnapshotStore struct {
	db     *sql.DB
	retain int
	now    func() time.Time
}

var _ store.SnapshotStorage = (*SnapshotStore)(nil)

// NewSnapshotStore 建立连接并执行迁移。
func NewSnapshotStore(ctx context.Context, cfg Config) (*SnapshotStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "初始化 MySQL 快照存储失败")
	}
	s := &SnapshotStore{db: db, retain: cfg.Retain, now: time.Now}
	if err := s.runMigrations(ctx); err != nil {
		db.Close()
		return nil, xerrors.Wrap(xerrors.CodeInitializationFailure, err, "执行快照表迁移失败")
	}
	return s, nil
}

// WriteSnapshot 插入一行新快照，并按保留数量清理旧快照。
func (s *SnapshotStore) WriteSnapshot(ctx context.Context, data []byte) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO proof_snapshots (payload, proof_count, created_at) VALUES (?, ?, ?)`,
		data, countRecords(data), s.now().UnixMilli(),
	)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入 MySQL 快照失败")
	}
	if s.retain <= 0 {
		return nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取快照自增 ID 失败")
	}
	if cutoff := id - int64(s.retain); cutoff > 0 {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM proof_snapshots WHERE id <= ?`, cutoff); err != nil {
			return xerrors.Wrap(xerrors.CodeStorageFailure, err, fmt.Sprintf("清理 %d 之前的快照失败", cutoff))
		}
	}
	return nil
}

// ReadLatestSnapshot 返回最新一行快照。
func (s *SnapshotStore) ReadLatestSnapshot(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM proof_snapshots ORDER BY id DESC LIMIT 1`,
	).Scan(&payload)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoSnapshot
		}
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取 MySQL 快照失败")
	}
	return payload, nil
}

// Close 关闭连接池。
func (s *SnapshotStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// countRecords 粗略统计快照中的证明数量，仅用于运维查询。
func countRecords(data []byte) int {
	depth, count := 0, 0
	inString, escaped := false, false
	for _, b := range data {
		switch {
		case escaped:
			escaped = false
		case inString && b == '\\':
			escaped = true
		case b == '"':
			inString = !inString
		case inString:
		case b == '[' || b == '{':
			depth++
			if depth == 2 {
				count++
			}
		case b == ']' || b == '}':
			depth--
		}
	}
	return count
}
