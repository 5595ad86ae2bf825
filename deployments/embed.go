// Package deployments 嵌入部署相关文件到二进制
//
// 包含：
//   - migrations/sqlite/*.sql: SQLite 迁移脚本（goose 格式）
//   - migrations/postgres/*.sql: PostgreSQL 迁移脚本（goose 格式）
package deployments

import (
	"embed"
	"io/fs"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// SQLiteMigrations SQLite 迁移目录（根即脚本所在目录）
func SQLiteMigrations() fs.FS {
	sub, _ := fs.Sub(migrationFiles, "migrations/sqlite")
	return sub
}

// PostgresMigrations PostgreSQL 迁移目录
func PostgresMigrations() fs.FS {
	sub, _ := fs.Sub(migrationFiles, "migrations/postgres")
	return sub
}
