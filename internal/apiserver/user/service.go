// Package user 用户业务：注册、登录、令牌刷新、资料维护、管理员列表与冻结
package user

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"user-admin/internal/apiserver/auth"
	"user-admin/internal/config"
	"user-admin/internal/shared/cache"
	"user-admin/internal/shared/model"
	"user-admin/internal/shared/notify"
	"user-admin/internal/shared/storage"
	"user-admin/pkg/logging"

	"github.com/google/uuid"
)

// Mailer 异步邮件投递（notify.Dispatcher）
type Mailer interface {
	Dispatch(m notify.Mail) bool
}

// AvatarStore 头像对象存储（objstore.Client）
type AvatarStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
}

// Observer 业务事件观测（Prometheus 指标）
type Observer interface {
	LoginAttempt(result string)
	CodeIssued(purpose string)
}

type noopObserver struct{}

func (noopObserver) LoginAttempt(string) {}
func (noopObserver) CodeIssued(string)   {}

// Options 业务参数
type Options struct {
	FreezePolicy string        // config.FreezePolicyLazy | config.FreezePolicyEager
	CodeTTL      time.Duration // 验证码有效期，默认 5 分钟
	CodeLength   int           // 验证码长度，默认 6
}

// Deps 服务依赖
type Deps struct {
	Store       storage.Store
	Codes       cache.CodeStore
	Revocations cache.RevocationList // 可为 nil（lazy 策略）
	Hasher      *auth.Hasher
	Tokens      *auth.TokenService
	Mailer      Mailer
	Avatars     AvatarStore // 可为 nil（未配置 MinIO）
	Observer    Observer
	Logger      *logging.Logger
}

// Service 用户业务服务
type Service struct {
	store       storage.Store
	codes       cache.CodeStore
	revocations cache.RevocationList
	hasher      *auth.Hasher
	tokens      *auth.TokenService
	mailer      Mailer
	avatars     AvatarStore
	observer    Observer
	logger      *logging.Logger
	opts        Options
}

// NewService 创建服务
func NewService(d Deps, opts Options) *Service {
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = defaultCodeTTL
	}
	if opts.CodeLength <= 0 {
		opts.CodeLength = defaultCodeLength
	}
	if opts.FreezePolicy == "" {
		opts.FreezePolicy = config.FreezePolicyLazy
	}
	s := &Service{
		store:       d.Store,
		codes:       d.Codes,
		revocations: d.Revocations,
		hasher:      d.Hasher,
		tokens:      d.Tokens,
		mailer:      d.Mailer,
		avatars:     d.Avatars,
		observer:    d.Observer,
		logger:      d.Logger,
		opts:        opts,
	}
	if s.revocations == nil {
		s.revocations = cache.NoOpRevocationList{}
	}
	if s.observer == nil {
		s.observer = noopObserver{}
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	s.logger = s.logger.Named("user")
	return s
}

// ============================================================================
// 输入/输出类型
// ============================================================================

// RegisterInput 注册参数
type RegisterInput struct {
	Username string
	Password string
	NickName string
	Email    string
	Code     string
}

// UpdatePasswordInput 修改密码参数
type UpdatePasswordInput struct {
	OldPassword string
	NewPassword string
	Email       string
	Code        string
}

// UpdateProfileInput 修改资料参数，空字符串表示不修改
type UpdateProfileInput struct {
	NickName string
	HeadPic  string
	Email    string
	Code     string
}

// UserView 用户信息（含角色名与权限码）
type UserView struct {
	*model.User
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func newUserView(u *model.User) *UserView {
	return &UserView{User: u, Roles: u.RoleNames(), Permissions: u.PermissionCodes()}
}

// LoginResult 登录结果
type LoginResult struct {
	UserInfo     *UserView       `json:"userInfo"`
	Principal    *auth.Principal `json:"-"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

// TokenPair 刷新结果
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// ListQuery 列表查询参数
type ListQuery struct {
	PageNo   int
	PageSize int
	Username string
	NickName string
	Email    string
}

// ListResult 列表结果
type ListResult struct {
	Users      []*model.User `json:"users"`
	TotalCount int           `json:"totalCount"`
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ============================================================================
// 认证流程
// ============================================================================

// Register 校验注册验证码后创建无角色用户
func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	if err := s.checkCode(ctx, PurposeRegister, in.Email, in.Code); err != nil {
		return err
	}

	exists, err := s.store.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if exists {
		return ErrUserExists
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		Username:     in.Username,
		PasswordHash: hash,
		NickName:     in.NickName,
		Email:        in.Email,
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		// 并发注册同名用户时由唯一约束兜底
		if errors.Is(err, storage.ErrDuplicate) {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}

	s.consumeCode(ctx, PurposeRegister, in.Email)
	s.logger.WithContext(ctx).AuthLog("register", in.Username, true, "user_id", u.ID)
	return nil
}

// Login 校验用户名密码，签发访问令牌与刷新令牌
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.store.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.loginFailed(ctx, username, "not_found")
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		s.loginFailed(ctx, username, "bad_password")
		return nil, ErrInvalidCredentials
	}
	if u.IsFrozen {
		s.loginFailed(ctx, username, "frozen")
		return nil, ErrUserFrozen
	}

	principal := auth.NewPrincipal(u)
	access, refresh, err := s.issue(principal)
	if err != nil {
		return nil, err
	}

	s.observer.LoginAttempt("success")
	s.logger.WithContext(ctx).AuthLog("login", username, true, "user_id", u.ID)
	return &LoginResult{
		UserInfo:     newUserView(u),
		Principal:    principal,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *Service) loginFailed(ctx context.Context, username, reason string) {
	s.observer.LoginAttempt(reason)
	s.logger.WithContext(ctx).AuthLog("login", username, false, "reason", reason)
}

// Refresh 用刷新令牌重新加载用户并重新签发两个令牌
//
// 角色或权限的变更只在这里被纳入新的访问令牌。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	u, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if u.IsFrozen {
		return nil, ErrUserFrozen
	}

	access, refresh, err := s.issue(auth.NewPrincipal(u))
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) issue(p *auth.Principal) (access, refresh string, err error) {
	access, err = s.tokens.IssueAccess(p)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.tokens.IssueRefresh(p.UserID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ============================================================================
// 资料维护
// ============================================================================

// UpdatePassword 校验验证码与旧密码后更新密码
func (s *Service) UpdatePassword(ctx context.Context, userID string, in UpdatePasswordInput) error {
	if err := s.checkCode(ctx, PurposeUpdatePassword, in.Email, in.Code); err != nil {
		return err
	}
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(in.OldPassword, u.PasswordHash) {
		return ErrOldPasswordMismatch
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.consumeCode(ctx, PurposeUpdatePassword, in.Email)
	s.logger.WithContext(ctx).AuthLog("update_password", u.Username, true)
	return nil
}

// UpdateProfile 校验验证码后更新昵称、头像
func (s *Service) UpdateProfile(ctx context.Context, userID string, in UpdateProfileInput) error {
	if err := s.checkCode(ctx, PurposeUpdateInfo, in.Email, in.Code); err != nil {
		return err
	}
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if in.NickName != "" {
		u.NickName = in.NickName
	}
	if in.HeadPic != "" {
		u.HeadPic = in.HeadPic
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	s.consumeCode(ctx, PurposeUpdateInfo, in.Email)
	return nil
}

// UserInfo 当前用户信息
func (s *Service) UserInfo(ctx context.Context, userID string) (*UserView, error) {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newUserView(u), nil
}

func (s *Service) findUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

// ============================================================================
// 验证码
// ============================================================================

// RequestCode 生成验证码写入缓存（覆盖旧码）并异步发送邮件
//
// 邮件是否送达不影响返回值。
func (s *Service) RequestCode(ctx context.Context, purpose Purpose, email string) error {
	tmpl, ok := mailTemplates[purpose]
	if !ok {
		return fmt.Errorf("unknown code purpose %q", purpose)
	}
	code, err := generateCode(s.opts.CodeLength)
	if err != nil {
		return err
	}
	if err := s.codes.Set(ctx, cache.CodeKey(string(purpose), email), code, s.opts.CodeTTL); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	s.observer.CodeIssued(string(purpose))
	if s.mailer != nil {
		s.mailer.Dispatch(notify.CodeMail(email, tmpl.subject, tmpl.intro, code, s.opts.CodeTTL))
	}
	s.logger.WithContext(ctx).Debug("code issued", "purpose", string(purpose), "email", email)
	return nil
}

func (s *Service) checkCode(ctx context.Context, purpose Purpose, email, code string) error {
	stored, ok, err := s.codes.Get(ctx, cache.CodeKey(string(purpose), email))
	if err != nil {
		return fmt.Errorf("load code: %w", err)
	}
	if !ok {
		return ErrCodeExpired
	}
	if stored != code {
		return ErrCodeMismatch
	}
	return nil
}

// consumeCode 成功使用后删除验证码，失败只记日志
func (s *Service) consumeCode(ctx context.Context, purpose Purpose, email string) {
	if err := s.codes.Delete(ctx, cache.CodeKey(string(purpose), email)); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("delete code failed", "purpose", string(purpose))
	}
}

// ============================================================================
// 管理员操作
// ============================================================================

// ListUsers 分页查询用户
func (s *Service) ListUsers(ctx context.Context, q ListQuery) (*ListResult, error) {
	pageNo := q.PageNo
	if pageNo < 1 {
		pageNo = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	users, total, err := s.store.ListUsers(ctx, model.UserFilter{
		Username: strings.TrimSpace(q.Username),
		NickName: strings.TrimSpace(q.NickName),
		Email:    strings.TrimSpace(q.Email),
		Offset:   (pageNo - 1) * pageSize,
		Limit:    pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return &ListResult{Users: users, TotalCount: total}, nil
}

// Freeze 冻结用户；eager 策略下同时吊销其未过期的访问令牌
func (s *Service) Freeze(ctx context.Context, userID string) error {
	u, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if !u.IsFrozen {
		u.IsFrozen = true
		if err := s.store.UpdateUser(ctx, u); err != nil {
			return fmt.Errorf("freeze user: %w", err)
		}
	}

	if s.opts.FreezePolicy == config.FreezePolicyEager {
		if err := s.revocations.Revoke(ctx, u.ID, s.tokens.AccessTTL()); err != nil {
			return fmt.Errorf("revoke tokens: %w", err)
		}
	}
	s.logger.WithContext(ctx).Info("user frozen", "user_id", u.ID, "policy", s.opts.FreezePolicy)
	return nil
}

// ============================================================================
// 头像
// ============================================================================

// 头像上传限制
const MaxAvatarSize = 3 << 20

var avatarExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadAvatar 上传头像，返回公开访问地址
//
// contentType 应由调用方根据文件内容嗅探得到。
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (string, error) {
	if s.avatars == nil {
		return "", ErrUploadDisabled
	}
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return "", ErrInvalidFile
	}
	if size > MaxAvatarSize {
		return "", ErrFileTooLarge
	}

	key := path.Join("avatars", userID, uuid.NewString()+ext)
	url, err := s.avatars.Upload(ctx, key, r, size, contentType)
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	return url, nil
}
