// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和 goose Schema 迁移。
// 适用于开发、测试和轻量级部署场景。
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"user-admin/deployments"
	"user-admin/internal/shared/storage/dbutil"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.StripPgCasts(dbutil.RebindToQuestion(query))
}

// ILike SQLite 的 LIKE 对 ASCII 字符本身大小写不敏感
func (d *Dialect) ILike(column, placeholder string) string {
	return fmt.Sprintf(`%s LIKE %s ESCAPE '\'`, column, placeholder)
}

func (d *Dialect) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (d *Dialect) Migrate(ctx context.Context, db *sql.DB) error {
	return dbutil.RunMigrations(ctx, db, "sqlite3", deployments.SQLiteMigrations())
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:test.db?cache=shared&mode=rwc" 或 ":memory:"
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// 内存库每个连接是独立的数据库，只能保留一个连接
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}
