// Package repository 数据库无关的 SQL 存储层
//
// 通过 dbutil.Dialect 接口屏蔽不同数据库的 SQL 差异，
// 所有 SQL 以 PostgreSQL 风格编写，运行时由 Dialect.Rebind() 转换。
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"user-admin/internal/shared/storage"
	"user-admin/internal/shared/storage/dbutil"
	"user-admin/pkg/logging"
)

// Store 通用存储实现
// 实现了 storage.Store 接口
type Store struct {
	db      *sql.DB
	dialect dbutil.Dialect
	log     *logging.Logger
	onQuery func(operation, table string, d time.Duration)
}

var _ storage.Store = (*Store)(nil)

// NewStore 创建通用存储
func NewStore(db *sql.DB, dialect dbutil.Dialect) *Store {
	return &Store{db: db, dialect: dialect, log: logging.Discard()}
}

// WithLogger 设置查询日志器（Debug 级别记录耗时，失败记 Error）
func (s *Store) WithLogger(l *logging.Logger) *Store {
	if l != nil {
		s.log = l
	}
	return s
}

// WithQueryObserver 设置查询耗时回调（Prometheus 指标）
func (s *Store) WithQueryObserver(fn func(operation, table string, d time.Duration)) *Store {
	s.onQuery = fn
	return s
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping 检查数据库连接
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB 返回底层数据库连接（仅用于测试）
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect 返回当前方言
func (s *Store) Dialect() dbutil.Dialect {
	return s.dialect
}

// rebind 快捷方法：将 PG 风格 SQL 转换为当前方言
func (s *Store) rebind(query string) string {
	return s.dialect.Rebind(query)
}

// observe 记录一次查询
func (s *Store) observe(operation, table string, start time.Time, err error) {
	d := time.Since(start)
	s.log.DBQueryLog(operation, table, d, err)
	if s.onQuery != nil {
		s.onQuery(operation, table, d)
	}
}

// translate 将驱动错误转换为存储层领域错误
func (s *Store) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case err == sql.ErrNoRows:
		return storage.ErrNotFound
	case s.dialect.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
	default:
		return err
	}
}

// inTx 在事务中执行 fn，fn 返回错误时回滚
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
