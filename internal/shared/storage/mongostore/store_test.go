package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"user-admin/internal/shared/model"
	"user-admin/internal/shared/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStore 创建测试用 Store，使用独立数据库避免污染
func testStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}

	s, err := NewStore(uri, "user_admin_test")
	if err != nil {
		t.Skipf("MongoDB not available: %v", err)
	}

	ctx := context.Background()
	if err := s.db.Drop(ctx); err != nil {
		t.Fatalf("Failed to drop test database: %v", err)
	}
	if err := s.ensureIndexes(ctx); err != nil {
		t.Fatalf("Failed to create indexes: %v", err)
	}

	t.Cleanup(func() {
		s.db.Drop(context.Background())
		s.Close()
	})

	return s
}

func TestAssembleRoles(t *testing.T) {
	roles := []*roleDoc{
		{ID: "r2", Name: "普通用户", PermissionIDs: []string{"p1"}},
		{ID: "r1", Name: "管理员", PermissionIDs: []string{"p1", "p2", "gone"}},
	}
	perms := []*permissionDoc{{ID: "p1", Code: "ccc"}, {ID: "p2", Code: "ddd"}}

	out := assembleRoles([]string{"r1", "missing", "r2"}, roles, perms)
	require.Len(t, out, 2)
	assert.Equal(t, "管理员", out[0].Name)
	assert.Len(t, out[0].Permissions, 2, "dangling permission id skipped")
	assert.Equal(t, "普通用户", out[1].Name)

	u := &model.User{Roles: out}
	assert.Equal(t, []string{"ccc", "ddd"}, u.PermissionCodes())
}

func TestUserLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	ccc := &model.Permission{Code: "ccc"}
	ddd := &model.Permission{Code: "ddd"}
	require.NoError(t, s.SavePermissions(ctx, []*model.Permission{ccc, ddd}))
	admin := &model.Role{Name: "管理员", Permissions: []*model.Permission{ccc, ddd}}
	require.NoError(t, s.SaveRoles(ctx, []*model.Role{admin}))

	u := &model.User{Username: "zhangsan", PasswordHash: "h", Email: "zs@example.com", Roles: []*model.Role{admin}}
	require.NoError(t, s.CreateUser(ctx, u))

	got, err := s.FindUserByUsername(ctx, "zhangsan")
	require.NoError(t, err)
	assert.Equal(t, []string{"管理员"}, got.RoleNames())
	assert.ElementsMatch(t, []string{"ccc", "ddd"}, got.PermissionCodes())

	err = s.CreateUser(ctx, &model.User{Username: "zhangsan", PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got.IsFrozen = true
	require.NoError(t, s.UpdateUser(ctx, got))
	byID, err := s.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, byID.IsFrozen)

	_, err = s.FindUserByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	role, err := s.FindRoleByName(ctx, "管理员")
	require.NoError(t, err)
	assert.Len(t, role.Permissions, 2)
}

func TestListUsers(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 4; i++ {
		require.NoError(t, s.CreateUser(ctx, &model.User{
			Username: fmt.Sprintf("user%d", i), PasswordHash: "h",
			Email: fmt.Sprintf("u%d@Example.com", i), CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	users, total, err := s.ListUsers(ctx, model.UserFilter{Email: "EXAMPLE", Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, users, 2)
	assert.Equal(t, "user1", users[0].Username)

	_, total, err = s.ListUsers(ctx, model.UserFilter{Username: "user.", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total, "regex metacharacters are literal")
}
