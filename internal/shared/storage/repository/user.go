package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"user-admin/internal/shared/model"
	"user-admin/internal/shared/storage"
	"user-admin/internal/shared/storage/dbutil"

	"github.com/google/uuid"
)

const userColumns = `u.id, u.username, u.password_hash, u.nick_name, u.email, u.head_pic,
	u.phone_number, u.is_frozen, u.is_admin, u.created_at, u.updated_at`

// userWithRolesQuery 一次 JOIN 取出用户、角色、权限，行展开后在 Go 里合并
const userWithRolesQuery = `SELECT ` + userColumns + `,
	r.id, r.name, p.id, p.code, p.name, p.description
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id
	LEFT JOIN role_permissions rp ON rp.role_id = r.id
	LEFT JOIN permissions p ON p.id = rp.permission_id
	WHERE %s
	ORDER BY r.name, p.code`

func scanUser(sc interface{ Scan(...any) error }, u *model.User, extra ...any) error {
	dest := []any{&u.ID, &u.Username, &u.PasswordHash, &u.NickName, &u.Email, &u.HeadPic,
		&u.PhoneNumber, &u.IsFrozen, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt}
	return sc.Scan(append(dest, extra...)...)
}

// FindUserByUsername 按用户名查找（含角色与权限）
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findUser(ctx, "u.username = $1", username)
}

// FindUserByID 按 ID 查找（含角色与权限）
func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, "u.id = $1", id)
}

func (s *Store) findUser(ctx context.Context, where string, arg any) (_ *model.User, err error) {
	start := time.Now()
	defer func() { s.observe("select", "users", start, err) }()

	rows, err := s.db.QueryContext(ctx, s.rebind(fmt.Sprintf(userWithRolesQuery, where)), arg)
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	defer rows.Close()

	var user *model.User
	roles := make(map[string]*model.Role)
	for rows.Next() {
		var (
			u                          model.User
			roleID, roleName           sql.NullString
			permID, permCode, permName sql.NullString
			permDesc                   sql.NullString
		)
		if err := scanUser(rows, &u, &roleID, &roleName, &permID, &permCode, &permName, &permDesc); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if user == nil {
			user = &u
			user.Roles = []*model.Role{}
		}
		if !roleID.Valid {
			continue
		}
		role, ok := roles[roleID.String]
		if !ok {
			role = &model.Role{ID: roleID.String, Name: roleName.String, Permissions: []*model.Permission{}}
			roles[roleID.String] = role
			user.Roles = append(user.Roles, role)
		}
		if permID.Valid {
			role.Permissions = append(role.Permissions, &model.Permission{
				ID: permID.String, Code: permCode.String, Name: permName.String, Description: permDesc.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	if user == nil {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

// ExistsByUsername 用户名是否已被占用
func (s *Store) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(1) FROM users WHERE username = $1`), username).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

// CreateUser 创建用户并关联角色
func (s *Store) CreateUser(ctx context.Context, user *model.User) (err error) {
	start := time.Now()
	defer func() { s.observe("insert", "users", start, err) }()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO users (id, username, password_hash, nick_name, email, head_pic, phone_number,
				is_frozen, is_admin, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`),
			user.ID, user.Username, user.PasswordHash, user.NickName, user.Email, user.HeadPic,
			user.PhoneNumber, user.IsFrozen, user.IsAdmin, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert user: %w", s.translate(err))
		}
		for _, r := range user.Roles {
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`),
				user.ID, r.ID); err != nil {
				return fmt.Errorf("link role %s: %w", r.Name, s.translate(err))
			}
		}
		return nil
	})
}

// UpdateUser 更新可变字段
func (s *Store) UpdateUser(ctx context.Context, user *model.User) (err error) {
	start := time.Now()
	defer func() { s.observe("update", "users", start, err) }()

	user.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE users SET password_hash = $1, nick_name = $2, email = $3, head_pic = $4,
			phone_number = $5, is_frozen = $6, updated_at = $7
		 WHERE id = $8`),
		user.PasswordHash, user.NickName, user.Email, user.HeadPic,
		user.PhoneNumber, user.IsFrozen, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", s.translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListUsers 分页查询用户，按创建时间升序
func (s *Store) ListUsers(ctx context.Context, filter model.UserFilter) (_ []*model.User, _ int, err error) {
	start := time.Now()
	defer func() { s.observe("select", "users", start, err) }()

	var (
		conditions []string
		args       []any
	)
	addLike := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, dbutil.ContainsPattern(value))
		conditions = append(conditions, s.dialect.ILike(column, fmt.Sprintf("$%d", len(args))))
	}
	addLike("u.username", filter.Username)
	addLike("u.nick_name", filter.NickName)
	addLike("u.email", filter.Email)

	var total int
	countQuery := dbutil.BuildDynamicQuery(s.dialect, `SELECT COUNT(1) FROM users u`, conditions, "")
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	suffix := fmt.Sprintf("ORDER BY u.created_at ASC, u.id ASC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	pageQuery := dbutil.BuildDynamicQuery(s.dialect, `SELECT `+userColumns+` FROM users u`, conditions, suffix)

	rows, err := s.db.QueryContext(ctx, pageQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0, limit)
	for rows.Next() {
		u := &model.User{}
		if err := scanUser(rows, u); err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}
