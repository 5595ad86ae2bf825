package mongostore

import (
	"time"

	"user-admin/internal/shared/model"
)

// userDoc users 集合文档，角色以 ID 引用
type userDoc struct {
	ID           string    `bson:"_id"`
	Username     string    `bson:"username"`
	PasswordHash string    `bson:"password_hash"`
	NickName     string    `bson:"nick_name"`
	Email        string    `bson:"email"`
	HeadPic      string    `bson:"head_pic"`
	PhoneNumber  string    `bson:"phone_number"`
	IsFrozen     bool      `bson:"is_frozen"`
	IsAdmin      bool      `bson:"is_admin"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
	RoleIDs      []string  `bson:"role_ids"`
}

// roleDoc roles 集合文档，权限以 ID 引用
type roleDoc struct {
	ID            string   `bson:"_id"`
	Name          string   `bson:"name"`
	PermissionIDs []string `bson:"permission_ids"`
}

type permissionDoc struct {
	ID          string `bson:"_id"`
	Code        string `bson:"code"`
	Name        string `bson:"name"`
	Description string `bson:"description"`
}

func newUserDoc(u *model.User) *userDoc {
	roleIDs := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roleIDs = append(roleIDs, r.ID)
	}
	return &userDoc{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		NickName:     u.NickName,
		Email:        u.Email,
		HeadPic:      u.HeadPic,
		PhoneNumber:  u.PhoneNumber,
		IsFrozen:     u.IsFrozen,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		RoleIDs:      roleIDs,
	}
}

func (d *userDoc) toModel() *model.User {
	return &model.User{
		ID:           d.ID,
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		NickName:     d.NickName,
		Email:        d.Email,
		HeadPic:      d.HeadPic,
		PhoneNumber:  d.PhoneNumber,
		IsFrozen:     d.IsFrozen,
		IsAdmin:      d.IsAdmin,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func (d *permissionDoc) toModel() *model.Permission {
	return &model.Permission{ID: d.ID, Code: d.Code, Name: d.Name, Description: d.Description}
}

// assembleRoles 按 roleIDs 顺序组装角色及其权限，引用缺失的 ID 被跳过
func assembleRoles(roleIDs []string, roles []*roleDoc, perms []*permissionDoc) []*model.Role {
	permByID := make(map[string]*permissionDoc, len(perms))
	for _, p := range perms {
		permByID[p.ID] = p
	}
	roleByID := make(map[string]*roleDoc, len(roles))
	for _, r := range roles {
		roleByID[r.ID] = r
	}

	out := make([]*model.Role, 0, len(roleIDs))
	for _, id := range roleIDs {
		rd, ok := roleByID[id]
		if !ok {
			continue
		}
		role := &model.Role{ID: rd.ID, Name: rd.Name, Permissions: []*model.Permission{}}
		for _, pid := range rd.PermissionIDs {
			if pd, ok := permByID[pid]; ok {
				role.Permissions = append(role.Permissions, pd.toModel())
			}
		}
		out = append(out, role)
	}
	return out
}
