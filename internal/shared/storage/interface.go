// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在子包中：repository/（SQL）、mongostore/（MongoDB）
//   - 初始化时通过依赖注入传入实现
package storage

import (
	"context"

	"user-admin/internal/shared/model"
)

// UserStore 用户存储
//
// Find* 返回的用户已加载角色及各角色的权限；不存在时返回 ErrNotFound。
type UserStore interface {
	FindUserByUsername(ctx context.Context, username string) (*model.User, error)
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)

	// CreateUser 插入用户并按 Role.ID 关联角色；用户名冲突返回 ErrDuplicate
	CreateUser(ctx context.Context, user *model.User) error

	// UpdateUser 更新可变字段（密码、昵称、邮箱、头像、手机号、冻结状态）
	UpdateUser(ctx context.Context, user *model.User) error

	// ListUsers 分页查询，返回当前页（不含角色）和满足条件的总数
	ListUsers(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error)
}

// RoleStore 角色与权限存储（初始化数据使用）
type RoleStore interface {
	// SavePermissions 插入权限，空 ID 自动生成
	SavePermissions(ctx context.Context, perms []*model.Permission) error

	// SaveRoles 插入角色及其权限关联（按 Permission.ID）
	SaveRoles(ctx context.Context, roles []*model.Role) error

	FindRoleByName(ctx context.Context, name string) (*model.Role, error)
}

// Store 完整的持久化存储
type Store interface {
	UserStore
	RoleStore
	Close() error
}
