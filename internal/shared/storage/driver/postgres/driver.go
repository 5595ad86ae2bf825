// Package postgres PostgreSQL 数据库驱动
//
// 提供 PostgreSQL 连接管理、方言实现和 goose Schema 迁移。
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"user-admin/deployments"
	"user-admin/internal/shared/storage/dbutil"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// uniqueViolation PostgreSQL unique_violation 错误码
const uniqueViolation = "23505"

// Dialect PostgreSQL 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverPostgres
}

func (d *Dialect) Rebind(query string) string {
	return query
}

func (d *Dialect) ILike(column, placeholder string) string {
	return fmt.Sprintf("%s ILIKE %s", column, placeholder)
}

func (d *Dialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func (d *Dialect) Migrate(ctx context.Context, db *sql.DB) error {
	return dbutil.RunMigrations(ctx, db, "pgx", deployments.PostgresMigrations())
}

// Open 创建 PostgreSQL 数据库连接
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return db, nil
}

// NewDialect 创建 PostgreSQL 方言
func NewDialect() *Dialect {
	return &Dialect{}
}
