// Package dbutil 提供数据库方言抽象和工具函数
//
// 通过 Dialect 接口屏蔽不同数据库（PostgreSQL、SQLite）的 SQL 差异，
// 使 repository 层可以编写与数据库无关的业务逻辑。
package dbutil

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// DriverType 数据库驱动类型
type DriverType string

const (
	DriverPostgres DriverType = "postgres"
	DriverSQLite   DriverType = "sqlite"
)

// Dialect 数据库方言接口
//
// 不同数据库的 SQL 语法差异通过该接口屏蔽：
//   - 占位符：PostgreSQL 用 $1, $2；SQLite 用 ?
//   - 大小写不敏感匹配：PostgreSQL 用 ILIKE；SQLite 的 LIKE 对 ASCII 本身不敏感
//   - 唯一约束冲突的错误形态
type Dialect interface {
	// DriverType 返回驱动类型标识
	DriverType() DriverType

	// Rebind 将 PostgreSQL 风格的占位符 ($1, $2, ...) 转换为目标数据库的占位符格式
	Rebind(query string) string

	// ILike 返回大小写不敏感的模糊匹配表达式，如 "username ILIKE $1"
	ILike(column, placeholder string) string

	// IsUniqueViolation 判断错误是否为唯一约束冲突
	IsUniqueViolation(err error) bool

	// Migrate 执行嵌入的 Schema 迁移
	Migrate(ctx context.Context, db *sql.DB) error
}

// pgPlaceholderRe 匹配 PostgreSQL 风格占位符 $1, $2, ...
var pgPlaceholderRe = regexp.MustCompile(`\$(\d+)`)

// pgCastRe 匹配 PostgreSQL 类型转换 ::type
var pgCastRe = regexp.MustCompile(`::(\w+)`)

// RebindToQuestion 将 $N 占位符转换为 ?（SQLite 专用）
func RebindToQuestion(query string) string {
	return pgPlaceholderRe.ReplaceAllString(query, "?")
}

// StripPgCasts 去除 PostgreSQL 类型转换 (::varchar, ::text 等)
func StripPgCasts(query string) string {
	return pgCastRe.ReplaceAllString(query, "")
}

// BuildDynamicQuery 构建动态 WHERE 条件的查询
// 条件中的占位符以 PostgreSQL 风格书写，返回前按方言转换
func BuildDynamicQuery(d Dialect, baseQuery string, conditions []string, suffix string) string {
	if len(conditions) > 0 {
		baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	}
	if suffix != "" {
		baseQuery += " " + suffix
	}
	return d.Rebind(baseQuery)
}

// PlaceholderList 生成指定数量的占位符列表，如 "$1, $2, $3"
func PlaceholderList(d Dialect, start, count int) string {
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return d.Rebind(strings.Join(parts, ", "))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern 构造子串匹配的 LIKE 模式，转义通配符
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
