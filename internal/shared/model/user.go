package model

import "time"

// Permission 权限，Code 是守卫匹配使用的唯一标识
type Permission struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Role 角色，可以不挂任何权限
type Role struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Permissions []*Permission `json:"permissions"`
}

// User 用户
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"` // never expose in JSON
	NickName     string    `json:"nickName"`
	Email        string    `json:"email"`
	HeadPic      string    `json:"headPic"`
	PhoneNumber  string    `json:"phoneNumber"`
	IsFrozen     bool      `json:"isFrozen"`
	IsAdmin      bool      `json:"isAdmin"`
	CreatedAt    time.Time `json:"createTime"`
	UpdatedAt    time.Time `json:"updateTime"`
	Roles        []*Role   `json:"-"`
}

// RoleNames 返回角色名列表
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// PermissionCodes 展开所有角色的权限码，按首次出现顺序去重
func (u *User) PermissionCodes() []string {
	seen := make(map[string]struct{})
	codes := make([]string, 0)
	for _, r := range u.Roles {
		for _, p := range r.Permissions {
			if _, ok := seen[p.Code]; ok {
				continue
			}
			seen[p.Code] = struct{}{}
			codes = append(codes, p.Code)
		}
	}
	return codes
}

// UserFilter 用户列表查询条件，字符串字段为子串匹配（忽略大小写），空串表示不过滤
type UserFilter struct {
	Username string
	NickName string
	Email    string
	Offset   int
	Limit    int
}
