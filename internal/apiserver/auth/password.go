package auth

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher bcrypt 密码哈希，盐内嵌在摘要中
type Hasher struct {
	cost int
}

// NewHasher 创建哈希器，cost 越界时使用 bcrypt.DefaultCost
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash 生成密码摘要
func (h *Hasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	return string(b), err
}

// Verify 校验明文与摘要是否匹配
func (h *Hasher) Verify(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
