package redis

import (
	"context"
	"fmt"
	"time"

	"user-admin/internal/shared/cache"
)

// Revoke 记录被吊销的用户，TTL 与访问令牌有效期一致
func (s *Store) Revoke(ctx context.Context, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, cache.RevokedUserKey(userID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("redis revoke %s: %w", userID, err)
	}
	return nil
}

// IsRevoked 用户是否在吊销列表中
func (s *Store) IsRevoked(ctx context.Context, userID string) (bool, error) {
	n, err := s.client.Exists(ctx, cache.RevokedUserKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %s: %w", userID, err)
	}
	return n > 0, nil
}
