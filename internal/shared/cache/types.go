// Package cache 缓存层键与常量定义
package cache

import "time"

// Key 前缀
const (
	KeyRevokedUser = "revoked_user:" // revoked_user:{user_id}
)

// TTL 默认值
const (
	TTLCode = 5 * time.Minute
)

// CodeKey 验证码键：{purpose}:{email}
func CodeKey(purpose, email string) string {
	return purpose + ":" + email
}

// RevokedUserKey 吊销列表键
func RevokedUserKey(userID string) string {
	return KeyRevokedUser + userID
}
