package mongostore

import (
	"context"

	"user-admin/internal/shared/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ============================================================================
// RoleStore
// ============================================================================

func (s *Store) SavePermissions(ctx context.Context, perms []*model.Permission) error {
	for _, p := range perms {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		doc := &permissionDoc{ID: p.ID, Code: p.Code, Name: p.Name, Description: p.Description}
		if err := insertOne(ctx, s.col(ColPermissions), doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) SaveRoles(ctx context.Context, roles []*model.Role) error {
	for _, r := range roles {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		permIDs := make([]string, 0, len(r.Permissions))
		for _, p := range r.Permissions {
			permIDs = append(permIDs, p.ID)
		}
		if err := insertOne(ctx, s.col(ColRoles), &roleDoc{ID: r.ID, Name: r.Name, PermissionIDs: permIDs}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) FindRoleByName(ctx context.Context, name string) (*model.Role, error) {
	rd, err := findOne[roleDoc](ctx, s.col(ColRoles), bson.D{{Key: "name", Value: name}})
	if err != nil {
		return nil, err
	}
	var perms []*permissionDoc
	if len(rd.PermissionIDs) > 0 {
		if perms, err = findMany[permissionDoc](ctx, s.col(ColPermissions), byIDs(rd.PermissionIDs)); err != nil {
			return nil, err
		}
	}
	return assembleRoles([]string{rd.ID}, []*roleDoc{rd}, perms)[0], nil
}
