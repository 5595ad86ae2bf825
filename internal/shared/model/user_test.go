package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUser_PermissionCodesDeduplicated(t *testing.T) {
	ccc := &Permission{ID: "p1", Code: "ccc"}
	ddd := &Permission{ID: "p2", Code: "ddd"}
	u := &User{Roles: []*Role{
		{Name: "管理员", Permissions: []*Permission{ddd, ccc}},
		{Name: "普通用户", Permissions: []*Permission{ccc}},
		{Name: "访客"},
	}}

	assert.Equal(t, []string{"管理员", "普通用户", "访客"}, u.RoleNames())
	assert.Equal(t, []string{"ddd", "ccc"}, u.PermissionCodes())
}

func TestUser_NoRoles(t *testing.T) {
	u := &User{}
	assert.Empty(t, u.RoleNames())
	assert.NotNil(t, u.PermissionCodes())
	assert.Empty(t, u.PermissionCodes())
}

func TestUser_JSONHidesPasswordHash(t *testing.T) {
	b, err := json.Marshal(&User{ID: "u1", Username: "lisi", PasswordHash: "$2a$10$secret"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "secret")
	assert.Contains(t, string(b), `"username":"lisi"`)
}
