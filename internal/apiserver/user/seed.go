package user

import (
	"context"
	"fmt"

	"user-admin/internal/apiserver/auth"
	"user-admin/internal/shared/model"
	"user-admin/internal/shared/storage"
	"user-admin/pkg/logging"
)

// 内置权限码
const (
	PermCCC        = "ccc"
	PermDDD        = "ddd"
	PermUserList   = "user:list"
	PermUserFreeze = "user:freeze"
)

// 内置角色名
const (
	RoleAdmin  = "管理员"
	RoleNormal = "普通用户"
)

// Seed 写入演示数据：4 个权限、2 个角色、2 个用户
//
// zhangsan 已存在时直接返回，可重复调用。
func Seed(ctx context.Context, store storage.Store, hasher *auth.Hasher, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Discard()
	}
	exists, err := store.ExistsByUsername(ctx, "zhangsan")
	if err != nil {
		return fmt.Errorf("check seed user: %w", err)
	}
	if exists {
		logger.Info("seed data already present, skipping")
		return nil
	}

	ccc := &model.Permission{Code: PermCCC, Name: "ccc", Description: "访问 ccc 接口"}
	ddd := &model.Permission{Code: PermDDD, Name: "ddd", Description: "访问 ddd 接口"}
	list := &model.Permission{Code: PermUserList, Name: "用户列表", Description: "查询用户列表"}
	freeze := &model.Permission{Code: PermUserFreeze, Name: "冻结用户", Description: "冻结指定用户"}
	if err := store.SavePermissions(ctx, []*model.Permission{ccc, ddd, list, freeze}); err != nil {
		return fmt.Errorf("seed permissions: %w", err)
	}

	admin := &model.Role{Name: RoleAdmin, Permissions: []*model.Permission{ccc, ddd, list, freeze}}
	normal := &model.Role{Name: RoleNormal, Permissions: []*model.Permission{ccc}}
	if err := store.SaveRoles(ctx, []*model.Role{admin, normal}); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	users := []struct {
		user     *model.User
		password string
	}{
		{&model.User{
			Username:    "zhangsan",
			NickName:    "张三",
			Email:       "xxx@xx.com",
			PhoneNumber: "13233323333",
			IsAdmin:     true,
			Roles:       []*model.Role{admin},
		}, "111111"},
		{&model.User{
			Username: "lisi",
			NickName: "李四",
			Email:    "yy@yy.com",
			Roles:    []*model.Role{normal},
		}, "222222"},
	}
	for _, su := range users {
		hash, err := hasher.Hash(su.password)
		if err != nil {
			return fmt.Errorf("hash seed password: %w", err)
		}
		su.user.PasswordHash = hash
		if err := store.CreateUser(ctx, su.user); err != nil {
			return fmt.Errorf("seed user %s: %w", su.user.Username, err)
		}
	}

	logger.Info("seed data created", "users", len(users), "roles", 2, "permissions", 4)
	return nil
}
