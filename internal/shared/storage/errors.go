// Package storage 定义存储层领域错误
//
// 这些错误用于隔离业务层与底层存储引擎的错误类型，
// 各驱动实现（repository/mongostore）负责将底层错误转换为这些领域错误。
package storage

import "errors"

var (
	// ErrNotFound 实体不存在
	// 替代 sql.ErrNoRows / mongo.ErrNoDocuments
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate 唯一键冲突（用户名、角色名、权限码重复）
	ErrDuplicate = errors.New("duplicate: entity already exists")
)
