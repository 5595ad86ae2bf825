package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()

	require.NoError(t, Seed(ctx, f.store, f.hasher, nil))
	require.NoError(t, Seed(ctx, f.store, f.hasher, nil), "second run is a no-op")

	admin, err := f.svc.Login(ctx, "zhangsan", "111111")
	require.NoError(t, err)
	assert.True(t, admin.UserInfo.IsAdmin)
	assert.Equal(t, []string{RoleAdmin}, admin.Principal.Roles)
	assert.ElementsMatch(t, []string{PermCCC, PermDDD, PermUserList, PermUserFreeze}, admin.Principal.Permissions)

	normal, err := f.svc.Login(ctx, "lisi", "222222")
	require.NoError(t, err)
	assert.False(t, normal.UserInfo.IsAdmin)
	assert.Equal(t, []string{PermCCC}, normal.Principal.Permissions)

	res, err := f.svc.ListUsers(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
}
