package mongostore

import (
	"context"
	"regexp"
	"time"

	"user-admin/internal/shared/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// ============================================================================
// UserStore
// ============================================================================

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.findUser(ctx, bson.D{{Key: "username", Value: username}})
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return s.findUser(ctx, bson.D{{Key: "_id", Value: id}})
}

// findUser 两步取数：用户文档 → 角色 → 权限
func (s *Store) findUser(ctx context.Context, filter bson.D) (*model.User, error) {
	doc, err := findOne[userDoc](ctx, s.col(ColUsers), filter)
	if err != nil {
		return nil, err
	}
	user := doc.toModel()
	user.Roles = []*model.Role{}
	if len(doc.RoleIDs) == 0 {
		return user, nil
	}

	roles, err := findMany[roleDoc](ctx, s.col(ColRoles), byIDs(doc.RoleIDs))
	if err != nil {
		return nil, err
	}
	var permIDs []string
	for _, r := range roles {
		permIDs = append(permIDs, r.PermissionIDs...)
	}
	var perms []*permissionDoc
	if len(permIDs) > 0 {
		if perms, err = findMany[permissionDoc](ctx, s.col(ColPermissions), byIDs(permIDs)); err != nil {
			return nil, err
		}
	}

	user.Roles = assembleRoles(doc.RoleIDs, roles, perms)
	return user, nil
}

func (s *Store) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	n, err := s.col(ColUsers).CountDocuments(ctx, bson.D{{Key: "username", Value: username}},
		options.Count().SetLimit(1))
	if err != nil {
		return false, wrapError(err)
	}
	return n > 0, nil
}

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	return insertOne(ctx, s.col(ColUsers), newUserDoc(user))
}

func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now()
	return updateFields(ctx, s.col(ColUsers), user.ID, bson.D{
		{Key: "password_hash", Value: user.PasswordHash},
		{Key: "nick_name", Value: user.NickName},
		{Key: "email", Value: user.Email},
		{Key: "head_pic", Value: user.HeadPic},
		{Key: "phone_number", Value: user.PhoneNumber},
		{Key: "is_frozen", Value: user.IsFrozen},
		{Key: "updated_at", Value: user.UpdatedAt},
	})
}

func (s *Store) ListUsers(ctx context.Context, filter model.UserFilter) ([]*model.User, int, error) {
	query := bson.D{}
	addRegex := func(field, value string) {
		if value == "" {
			return
		}
		query = append(query, bson.E{Key: field, Value: bson.Regex{Pattern: regexp.QuoteMeta(value), Options: "i"}})
	}
	addRegex("username", filter.Username)
	addRegex("nick_name", filter.NickName)
	addRegex("email", filter.Email)

	total, err := s.col(ColUsers).CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, wrapError(err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(max(filter.Offset, 0))).
		SetLimit(int64(limit))
	docs, err := findMany[userDoc](ctx, s.col(ColUsers), query, opts)
	if err != nil {
		return nil, 0, err
	}

	users := make([]*model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.toModel())
	}
	return users, int(total), nil
}
