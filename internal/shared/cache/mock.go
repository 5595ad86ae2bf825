// Package cache 缓存层 mock 实现
package cache

import (
	"context"
	"time"
)

// NoOpRevocationList 不做任何吊销的实现（冻结策略为 lazy 时使用）
type NoOpRevocationList struct{}

var _ RevocationList = NoOpRevocationList{}

func (NoOpRevocationList) Revoke(context.Context, string, time.Duration) error { return nil }

func (NoOpRevocationList) IsRevoked(context.Context, string) (bool, error) { return false, nil }
