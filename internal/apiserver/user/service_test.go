package user

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"user-admin/internal/apiserver/auth"
	"user-admin/internal/config"
	"user-admin/internal/shared/cache"
	cacheredis "user-admin/internal/shared/cache/redis"
	"user-admin/internal/shared/model"
	"user-admin/internal/shared/notify"
	"user-admin/internal/shared/storage/repository"
	sqlitedriver "user-admin/internal/shared/storage/driver/sqlite"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// captureMailer 记录投递的邮件
type captureMailer struct {
	mu    sync.Mutex
	mails []notify.Mail
}

func (c *captureMailer) Dispatch(m notify.Mail) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mails = append(c.mails, m)
	return true
}

func (c *captureMailer) last() notify.Mail {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mails[len(c.mails)-1]
}

// fakeAvatars 记录上传的对象
type fakeAvatars struct {
	key         string
	contentType string
	body        []byte
}

func (f *fakeAvatars) Upload(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	f.key, f.contentType = key, contentType
	f.body, _ = io.ReadAll(r)
	return "http://minio.local/avatars/" + key, nil
}

type fixture struct {
	svc    *Service
	store  *repository.Store
	codes  *cacheredis.Store
	redis  *miniredis.Miniredis
	tokens *auth.TokenService
	hasher *auth.Hasher
	mailer *captureMailer
}

func newFixture(t *testing.T, opts Options, avatars AvatarStore) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.Migrate(ctx, db))
	store := repository.NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })

	mr := miniredis.RunT(t)
	codes := cacheredis.NewStoreFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { codes.Close() })

	tokens, err := auth.NewTokenService(auth.Config{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	require.NoError(t, err)

	f := &fixture{
		store:  store,
		codes:  codes,
		redis:  mr,
		tokens: tokens,
		hasher: auth.NewHasher(bcrypt.MinCost),
		mailer: &captureMailer{},
	}
	deps := Deps{
		Store:       store,
		Codes:       codes,
		Revocations: codes,
		Hasher:      f.hasher,
		Tokens:      tokens,
		Mailer:      f.mailer,
		Avatars:     avatars,
	}
	f.svc = NewService(deps, opts)
	return f
}

// requestCode 申请验证码并从缓存读出
func (f *fixture) requestCode(t *testing.T, purpose Purpose, email string) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.svc.RequestCode(ctx, purpose, email))
	code, ok, err := f.codes.Get(ctx, cache.CodeKey(string(purpose), email))
	require.NoError(t, err)
	require.True(t, ok)
	return code
}

func (f *fixture) register(t *testing.T, username, password, email string) {
	t.Helper()
	code := f.requestCode(t, PurposeRegister, email)
	require.NoError(t, f.svc.Register(context.Background(), RegisterInput{
		Username: username, Password: password, NickName: username, Email: email, Code: code,
	}))
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()

	code := f.requestCode(t, PurposeRegister, "z@x.com")
	err := f.svc.Register(ctx, RegisterInput{
		Username: "zhangsan", Password: "pw123456", NickName: "Zhang San", Email: "z@x.com", Code: code,
	})
	require.NoError(t, err)

	res, err := f.svc.Login(ctx, "zhangsan", "pw123456")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Empty(t, res.Principal.Roles)
	assert.Equal(t, "Zhang San", res.UserInfo.NickName)

	p, err := f.tokens.Verify(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.UserInfo.ID, p.UserID)
	assert.Equal(t, "zhangsan", p.Username)

	_, err = f.svc.Login(ctx, "zhangsan", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "nobody", "pw123456")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRegister_CodeChecks(t *testing.T) {
	ctx := context.Background()

	t.Run("no code requested", func(t *testing.T) {
		f := newFixture(t, Options{}, nil)
		err := f.svc.Register(ctx, RegisterInput{Username: "a", Password: "pw123456", Email: "alice@x.com", Code: "abcdef"})
		assert.ErrorIs(t, err, ErrCodeExpired)
	})

	t.Run("stale code", func(t *testing.T) {
		f := newFixture(t, Options{}, nil)
		f.requestCode(t, PurposeRegister, "alice@x.com")
		err := f.svc.Register(ctx, RegisterInput{Username: "a", Password: "pw123456", Email: "alice@x.com", Code: "stale-code"})
		assert.ErrorIs(t, err, ErrCodeMismatch)
	})

	t.Run("expired code", func(t *testing.T) {
		f := newFixture(t, Options{}, nil)
		code := f.requestCode(t, PurposeRegister, "alice@x.com")
		f.redis.FastForward(5*time.Minute + time.Second)
		err := f.svc.Register(ctx, RegisterInput{Username: "a", Password: "pw123456", Email: "alice@x.com", Code: code})
		assert.ErrorIs(t, err, ErrCodeExpired)
	})

	t.Run("code for another purpose", func(t *testing.T) {
		f := newFixture(t, Options{}, nil)
		code := f.requestCode(t, PurposeUpdatePassword, "alice@x.com")
		err := f.svc.Register(ctx, RegisterInput{Username: "a", Password: "pw123456", Email: "alice@x.com", Code: code})
		assert.ErrorIs(t, err, ErrCodeExpired)
	})

	t.Run("code is single use", func(t *testing.T) {
		f := newFixture(t, Options{}, nil)
		code := f.requestCode(t, PurposeRegister, "alice@x.com")
		require.NoError(t, f.svc.Register(ctx, RegisterInput{Username: "a", Password: "pw123456", Email: "alice@x.com", Code: code}))
		err := f.svc.Register(ctx, RegisterInput{Username: "b", Password: "pw123456", Email: "alice@x.com", Code: code})
		assert.ErrorIs(t, err, ErrCodeExpired)
	})
}

func TestRegister_UserExists(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.register(t, "lisi", "pw123456", "l@x.com")

	code := f.requestCode(t, PurposeRegister, "other@x.com")
	err := f.svc.Register(context.Background(), RegisterInput{
		Username: "lisi", Password: "pw123456", NickName: "dup", Email: "other@x.com", Code: code,
	})
	assert.ErrorIs(t, err, ErrUserExists)

	_, stillThere, err := f.codes.Get(context.Background(), cache.CodeKey(string(PurposeRegister), "other@x.com"))
	require.NoError(t, err)
	assert.True(t, stillThere, "failed registration keeps the code")
}

func TestRequestCode(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()

	first := f.requestCode(t, PurposeRegister, "a@x.com")
	assert.Len(t, first, 6)
	assert.Equal(t, strings.ToLower(first), first)
	assert.Equal(t, 5*time.Minute, f.redis.TTL("register:a@x.com"))

	mail := f.mailer.last()
	assert.Equal(t, "a@x.com", mail.To)
	assert.Equal(t, "注册验证码", mail.Subject)
	assert.Contains(t, mail.HTML, first)

	// 新验证码覆盖旧验证码
	f.redis.FastForward(time.Minute)
	second := f.requestCode(t, PurposeRegister, "a@x.com")
	assert.Equal(t, 5*time.Minute, f.redis.TTL("register:a@x.com"))
	if first != second {
		err := f.svc.Register(ctx, RegisterInput{Username: "a", Password: "pw123456", Email: "a@x.com", Code: first})
		assert.ErrorIs(t, err, ErrCodeMismatch)
	}

	f.requestCode(t, PurposeUpdateInfo, "a@x.com")
	assert.Equal(t, "更改用户信息验证码", f.mailer.last().Subject)

	assert.Error(t, f.svc.RequestCode(ctx, Purpose("bogus"), "a@x.com"))
}

func TestRequestCode_CustomLength(t *testing.T) {
	f := newFixture(t, Options{CodeLength: 8, CodeTTL: time.Minute}, nil)
	code := f.requestCode(t, PurposeRegister, "a@x.com")
	assert.Len(t, code, 8)
	assert.Equal(t, time.Minute, f.redis.TTL("register:a@x.com"))
}

func TestRefresh_ReflectsCurrentRoles(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()

	ccc := &model.Permission{Code: "ccc"}
	require.NoError(t, f.store.SavePermissions(ctx, []*model.Permission{ccc}))
	role := &model.Role{Name: "普通用户", Permissions: []*model.Permission{ccc}}
	require.NoError(t, f.store.SaveRoles(ctx, []*model.Role{role}))

	f.register(t, "wangwu", "pw123456", "w@x.com")
	login, err := f.svc.Login(ctx, "wangwu", "pw123456")
	require.NoError(t, err)
	assert.Empty(t, login.Principal.Permissions)

	// 登录后才授予角色
	_, err = f.store.DB().ExecContext(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`,
		login.UserInfo.ID, role.ID)
	require.NoError(t, err)

	old, err := f.tokens.Verify(login.AccessToken)
	require.NoError(t, err)
	assert.Empty(t, old.Permissions, "issued token is stale until refresh")

	pair, err := f.svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	p, err := f.tokens.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"ccc"}, p.Permissions)
	assert.Equal(t, []string{"普通用户"}, p.Roles)

	id, err := f.tokens.VerifyRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, login.UserInfo.ID, id)
}

func TestRefresh_Failures(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	f.register(t, "zhaoliu", "pw123456", "z@x.com")
	login, err := f.svc.Login(ctx, "zhaoliu", "pw123456")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = f.svc.Refresh(ctx, login.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated, "access token cannot refresh")

	orphan, err := f.tokens.IssueRefresh("deleted-user")
	require.NoError(t, err)
	_, err = f.svc.Refresh(ctx, orphan)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdatePassword(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	f.register(t, "lisi", "pw123456", "l@x.com")
	login, err := f.svc.Login(ctx, "lisi", "pw123456")
	require.NoError(t, err)
	userID := login.UserInfo.ID

	code := f.requestCode(t, PurposeUpdatePassword, "l@x.com")
	assert.Equal(t, "修改密码验证码", f.mailer.last().Subject)

	err = f.svc.UpdatePassword(ctx, userID, UpdatePasswordInput{
		OldPassword: "not-mine", NewPassword: "newpass1", Email: "l@x.com", Code: code,
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "旧密码不正确", err.Error())

	err = f.svc.UpdatePassword(ctx, userID, UpdatePasswordInput{
		OldPassword: "pw123456", NewPassword: "newpass1", Email: "l@x.com", Code: "wrong",
	})
	assert.ErrorIs(t, err, ErrCodeMismatch)

	require.NoError(t, f.svc.UpdatePassword(ctx, userID, UpdatePasswordInput{
		OldPassword: "pw123456", NewPassword: "newpass1", Email: "l@x.com", Code: code,
	}))

	_, err = f.svc.Login(ctx, "lisi", "pw123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "lisi", "newpass1")
	assert.NoError(t, err)
}

func TestUpdatePassword_UserGone(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	code := f.requestCode(t, PurposeUpdatePassword, "g@x.com")
	err := f.svc.UpdatePassword(context.Background(), "missing", UpdatePasswordInput{
		OldPassword: "pw123456", NewPassword: "newpass1", Email: "g@x.com", Code: code,
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfile_OnlyProvidedFields(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	f.register(t, "lisi", "pw123456", "l@x.com")
	login, err := f.svc.Login(ctx, "lisi", "pw123456")
	require.NoError(t, err)
	userID := login.UserInfo.ID

	code := f.requestCode(t, PurposeUpdateInfo, "l@x.com")
	require.NoError(t, f.svc.UpdateProfile(ctx, userID, UpdateProfileInput{
		HeadPic: "http://img/a.png", Email: "l@x.com", Code: code,
	}))

	info, err := f.svc.UserInfo(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "lisi", info.NickName, "nickname untouched")
	assert.Equal(t, "http://img/a.png", info.HeadPic)

	code = f.requestCode(t, PurposeUpdateInfo, "l@x.com")
	require.NoError(t, f.svc.UpdateProfile(ctx, userID, UpdateProfileInput{
		NickName: "李四", Email: "l@x.com", Code: code,
	}))
	info, err = f.svc.UserInfo(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "李四", info.NickName)
	assert.Equal(t, "http://img/a.png", info.HeadPic, "avatar untouched")
}

func TestFreeze(t *testing.T) {
	ctx := context.Background()

	for _, policy := range []string{config.FreezePolicyLazy, config.FreezePolicyEager} {
		t.Run(policy, func(t *testing.T) {
			f := newFixture(t, Options{FreezePolicy: policy}, nil)
			f.register(t, "lisi", "pw123456", "l@x.com")
			login, err := f.svc.Login(ctx, "lisi", "pw123456")
			require.NoError(t, err)
			userID := login.UserInfo.ID

			require.NoError(t, f.svc.Freeze(ctx, userID))
			require.NoError(t, f.svc.Freeze(ctx, userID), "freezing twice is fine")

			info, err := f.svc.UserInfo(ctx, userID)
			require.NoError(t, err)
			assert.True(t, info.IsFrozen)

			_, err = f.svc.Login(ctx, "lisi", "pw123456")
			assert.ErrorIs(t, err, ErrUserFrozen)
			_, err = f.svc.Refresh(ctx, login.RefreshToken)
			assert.ErrorIs(t, err, ErrUserFrozen)

			revoked, err := f.codes.IsRevoked(ctx, userID)
			require.NoError(t, err)
			assert.Equal(t, policy == config.FreezePolicyEager, revoked)
			if revoked {
				assert.Equal(t, 30*time.Minute, f.redis.TTL(cache.RevokedUserKey(userID)))
			}
		})
	}

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t, Options{}, nil)
		assert.ErrorIs(t, f.svc.Freeze(ctx, "missing"), ErrUserNotFound)
	})
}

func TestListUsers(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	ctx := context.Background()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		require.NoError(t, f.store.CreateUser(ctx, &model.User{Username: name, PasswordHash: "h", Email: name + "@x.com"}))
		time.Sleep(5 * time.Millisecond)
	}

	res, err := f.svc.ListUsers(ctx, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	require.Len(t, res.Users, 3)
	assert.Equal(t, "alpha", res.Users[0].Username)

	res, err = f.svc.ListUsers(ctx, ListQuery{PageNo: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalCount)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "gamma", res.Users[0].Username)

	res, err = f.svc.ListUsers(ctx, ListQuery{Username: "ET", PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)

	res, err = f.svc.ListUsers(ctx, ListQuery{PageNo: 9})
	require.NoError(t, err)
	assert.NotNil(t, res.Users)
	assert.Empty(t, res.Users)
}

func TestUploadAvatar(t *testing.T) {
	ctx := context.Background()
	png := []byte("\x89PNG\r\n\x1a\n0000")

	t.Run("disabled", func(t *testing.T) {
		f := newFixture(t, Options{}, nil)
		_, err := f.svc.UploadAvatar(ctx, "u-1", bytes.NewReader(png), int64(len(png)), "image/png")
		assert.ErrorIs(t, err, ErrUploadDisabled)
	})

	t.Run("stored under user prefix", func(t *testing.T) {
		avatars := &fakeAvatars{}
		f := newFixture(t, Options{}, avatars)
		url, err := f.svc.UploadAvatar(ctx, "u-1", bytes.NewReader(png), int64(len(png)), "image/png")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(avatars.key, "avatars/u-1/"))
		assert.True(t, strings.HasSuffix(avatars.key, ".png"))
		assert.Equal(t, png, avatars.body)
		assert.Equal(t, "http://minio.local/avatars/"+avatars.key, url)
	})

	t.Run("rejects non images", func(t *testing.T) {
		f := newFixture(t, Options{}, &fakeAvatars{})
		_, err := f.svc.UploadAvatar(ctx, "u-1", strings.NewReader("hi"), 2, "text/plain; charset=utf-8")
		assert.ErrorIs(t, err, ErrInvalidFile)
	})

	t.Run("rejects large files", func(t *testing.T) {
		f := newFixture(t, Options{}, &fakeAvatars{})
		_, err := f.svc.UploadAvatar(ctx, "u-1", bytes.NewReader(png), MaxAvatarSize+1, "image/png")
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})
}

func TestIsDomainError(t *testing.T) {
	assert.True(t, IsDomainError(ErrCodeMismatch))
	assert.True(t, IsDomainError(ErrOldPasswordMismatch))
	assert.True(t, IsDomainError(&ValidationError{Messages: []string{"x"}}))
	assert.False(t, IsDomainError(ErrUploadDisabled))
	assert.False(t, IsDomainError(errors.New("db down")))
}

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := generateCode(6)
		require.NoError(t, err)
		assert.Regexp(t, `^[0-9a-z]{6}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}
