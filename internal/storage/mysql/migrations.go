package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"

	"ProofFlow-Chain/deploy/migrations"
)

var embeddedMigrations = migrations.Files

// 迁移台账表名带项目前缀，避免与同库其他服务的迁移记录冲突。
const (
	ledgerDDL = `CREATE TABLE IF NOT EXISTS proofflow_migrations (
        version VARCHAR(32) NOT NULL PRIMARY KEY,
        name VARCHAR(255) NOT NULL,
        applied_at BIGINT NOT NULL
)`
	ledgerSelect = `SELECT version, name FROM proofflow_migrations`
	ledgerInsert = `INSERT INTO proofflow_migrations (version, name, applied_at) VALUES (?, ?, ?)`
)

// migration 是一个嵌入的 .sql 文件，按版本号排序后依次执行。
type migration struct {
	version    string
	name       string
	statements []string
}

// runMigrations 确保快照表结构为最新版本。
// 台账中已记录的版本会被跳过；若同一版本对应的文件名发生变化则拒绝启动。
func (s *SnapshotStore) runMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, ledgerDDL); err != nil {
		return fmt.Errorf("创建迁移台账失败: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return err
	}
	all, err := embeddedMigrationSet()
	if err != nil {
		return err
	}

	for _, m := range all {
		recorded, ok := applied[m.version]
		if !ok {
			if err := s.apply(ctx, m); err != nil {
				return err
			}
			continue
		}
		if recorded != "" && recorded != m.name {
			return fmt.Errorf("迁移版本 %s 已记录为 %s，与当前文件 %s 不一致", m.version, recorded, m.name)
		}
	}
	return nil
}

// appliedMigrations 返回 version -> name 的台账快照。
func (s *SnapshotStore) appliedMigrations(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, ledgerSelect)
	if err != nil {
		return nil, fmt.Errorf("读取迁移台账失败: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var (
			version string
			name    sql.NullString
		)
		if err := rows.Scan(&version, &name); err != nil {
			return nil, fmt.Errorf("解析迁移台账失败: %w", err)
		}
		out[version] = name.String
	}
	return out, rows.Err()
}

func (s *SnapshotStore) apply(ctx context.Context, m migration) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启迁移事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range m.statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("迁移 %s 第 %d 条语句执行失败: %w", m.name, i+1, err)
		}
	}
	if _, err = tx.ExecContext(ctx, ledgerInsert, m.version, m.name, s.clock().UnixMilli()); err != nil {
		return fmt.Errorf("写入迁移台账失败: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("提交迁移 %s 失败: %w", m.name, err)
	}
	return nil
}

func (s *SnapshotStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// embeddedMigrationSet 读取全部非空的 .sql 文件并按 (version, name) 排序。
func embeddedMigrationSet() ([]migration, error) {
	names, err := fs.Glob(embeddedMigrations, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("枚举迁移文件失败: %w", err)
	}

	set := make([]migration, 0, len(names))
	for _, name := range names {
		raw, err := fs.ReadFile(embeddedMigrations, name)
		if err != nil {
			return nil, fmt.Errorf("读取迁移文件 %s 失败: %w", name, err)
		}
		stmts := splitSQLStatements(string(raw))
		if len(stmts) == 0 {
			continue
		}
		set = append(set, migration{version: parseMigrationVersion(name), name: name, statements: stmts})
	}

	slices.SortFunc(set, func(a, b migration) int {
		if c := strings.Compare(a.version, b.version); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	return set, nil
}

// splitSQLStatements 去掉整行 "--" 注释后按分号切分。
func splitSQLStatements(content string) []string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "--") {
			kept = append(kept, line)
		}
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// parseMigrationVersion 取文件名中第一个 '_' 之前的部分，没有则去掉扩展名。
func parseMigrationVersion(name string) string {
	base := strings.TrimSuffix(path.Base(name), path.Ext(name))
	if version, _, ok := strings.Cut(base, "_"); ok && version != "" {
		return version
	}
	return base
}
