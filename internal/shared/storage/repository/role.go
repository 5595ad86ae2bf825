package repository

import (
	"context"
	"database/sql"
	"fmt"

	"user-admin/internal/shared/model"
	"user-admin/internal/shared/storage"

	"github.com/google/uuid"
)

// SavePermissions 批量插入权限
func (s *Store) SavePermissions(ctx context.Context, perms []*model.Permission) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, p := range perms {
			if p.ID == "" {
				p.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, s.rebind(
				`INSERT INTO permissions (id, code, name, description) VALUES ($1, $2, $3, $4)`),
				p.ID, p.Code, p.Name, p.Description); err != nil {
				return fmt.Errorf("insert permission %s: %w", p.Code, s.translate(err))
			}
		}
		return nil
	})
}

// SaveRoles 批量插入角色及角色-权限关联
func (s *Store) SaveRoles(ctx context.Context, roles []*model.Role) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range roles {
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			if _, err := tx.ExecContext(ctx, s.rebind(`INSERT INTO roles (id, name) VALUES ($1, $2)`),
				r.ID, r.Name); err != nil {
				return fmt.Errorf("insert role %s: %w", r.Name, s.translate(err))
			}
			for _, p := range r.Permissions {
				if _, err := tx.ExecContext(ctx, s.rebind(
					`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)`),
					r.ID, p.ID); err != nil {
					return fmt.Errorf("link permission %s to role %s: %w", p.Code, r.Name, s.translate(err))
				}
			}
		}
		return nil
	})
}

// FindRoleByName 按名称查找角色（含权限）
func (s *Store) FindRoleByName(ctx context.Context, name string) (*model.Role, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT r.id, r.name, p.id, p.code, p.name, p.description
		 FROM roles r
		 LEFT JOIN role_permissions rp ON rp.role_id = r.id
		 LEFT JOIN permissions p ON p.id = rp.permission_id
		 WHERE r.name = $1
		 ORDER BY p.code`), name)
	if err != nil {
		return nil, fmt.Errorf("query role: %w", err)
	}
	defer rows.Close()

	var role *model.Role
	for rows.Next() {
		var (
			id, roleName                        string
			permID, code, permName, description sql.NullString
		)
		if err := rows.Scan(&id, &roleName, &permID, &code, &permName, &description); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		if role == nil {
			role = &model.Role{ID: id, Name: roleName, Permissions: []*model.Permission{}}
		}
		if permID.Valid {
			role.Permissions = append(role.Permissions, &model.Permission{
				ID: permID.String, Code: code.String, Name: permName.String, Description: description.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate role rows: %w", err)
	}
	if role == nil {
		return nil, storage.ErrNotFound
	}
	return role, nil
}
