// Package cache 缓存层抽象接口
//
// 提供带 TTL 的临时状态存取能力，当前由 Redis 实现。
package cache

import (
	"context"
	"time"
)

// CodeStore 一次性验证码存储
//
// 同一个 key 重复 Set 会覆盖旧值并重置 TTL。
type CodeStore interface {
	// Get 返回 (值, 是否存在, 错误)，过期与从未写入都表现为不存在
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// RevocationList 用户级令牌吊销列表（冻结立即生效时使用）
type RevocationList interface {
	// Revoke 在 ttl 内拒绝该用户的所有访问令牌
	Revoke(ctx context.Context, userID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, userID string) (bool, error)
}

// Cache 缓存组合接口
type Cache interface {
	CodeStore
	RevocationList
	Close() error
}
