package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrTokenInvalid 令牌缺失、签名错误、过期或类型不符
var ErrTokenInvalid = errors.New("token invalid")

// claims JWT 声明
type claims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"userId"`
	Username    string   `json:"username,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	Type        string   `json:"typ"`
}

// TokenService 签发与校验访问/刷新令牌（HS256）
//
// 校验只依赖签名与过期时间，不回查存储。
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenService 创建令牌服务，密钥为空或 TTL 非正时返回错误
func NewTokenService(cfg Config) (*TokenService, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive (access=%s, refresh=%s)",
			cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	}
	return &TokenService{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		now:        time.Now,
	}, nil
}

// AccessTTL 访问令牌有效期
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// IssueAccess 签发携带完整 Principal 的访问令牌
func (s *TokenService) IssueAccess(p *Principal) (string, error) {
	return s.sign(claims{
		RegisteredClaims: s.registered(p.UserID, s.accessTTL),
		UserID:           p.UserID,
		Username:         p.Username,
		Roles:            p.Roles,
		Permissions:      p.Permissions,
		Type:             tokenTypeAccess,
	})
}

// IssueRefresh 签发只携带用户 ID 的刷新令牌
func (s *TokenService) IssueRefresh(userID string) (string, error) {
	return s.sign(claims{
		RegisteredClaims: s.registered(userID, s.refreshTTL),
		UserID:           userID,
		Type:             tokenTypeRefresh,
	})
}

// Verify 校验访问令牌并还原 Principal
func (s *TokenService) Verify(token string) (*Principal, error) {
	c, err := s.parse(token, tokenTypeAccess)
	if err != nil {
		return nil, err
	}
	p := &Principal{
		UserID:      c.UserID,
		Username:    c.Username,
		Roles:       c.Roles,
		Permissions: c.Permissions,
	}
	if p.Roles == nil {
		p.Roles = []string{}
	}
	if p.Permissions == nil {
		p.Permissions = []string{}
	}
	return p, nil
}

// VerifyRefresh 校验刷新令牌，返回用户 ID
func (s *TokenService) VerifyRefresh(token string) (string, error) {
	c, err := s.parse(token, tokenTypeRefresh)
	if err != nil {
		return "", err
	}
	return c.UserID, nil
}

func (s *TokenService) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) sign(c claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", c.Type, err)
	}
	return signed, nil
}

func (s *TokenService) parse(token, wantType string) (*claims, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	c := &claims{}
	parsed, err := jwt.ParseWithClaims(token, c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if c.Type != wantType {
		return nil, fmt.Errorf("%w: token type %q, want %q", ErrTokenInvalid, c.Type, wantType)
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrTokenInvalid)
	}
	return c, nil
}
