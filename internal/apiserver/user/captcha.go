package user

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Purpose 验证码用途，同时作为存储键前缀
type Purpose string

const (
	PurposeRegister       Purpose = "register"
	PurposeUpdatePassword Purpose = "update-password"
	PurposeUpdateInfo     Purpose = "update-info"
)

// mailTemplate 每种用途的邮件主题与正文引导语
type mailTemplate struct {
	subject string
	intro   string
}

var mailTemplates = map[Purpose]mailTemplate{
	PurposeRegister:       {subject: "注册验证码", intro: "你的注册验证码是"},
	PurposeUpdatePassword: {subject: "修改密码验证码", intro: "你的修改密码验证码是"},
	PurposeUpdateInfo:     {subject: "更改用户信息验证码", intro: "你的修改用户信息验证码是"},
}

// Valid 是否为已知用途
func (p Purpose) Valid() bool {
	_, ok := mailTemplates[p]
	return ok
}

const codeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const (
	defaultCodeLength = 6
	defaultCodeTTL    = 5 * time.Minute
)

// generateCode 生成 n 位小写字母数字验证码
func generateCode(n int) (string, error) {
	if n <= 0 {
		n = defaultCodeLength
	}
	max := big.NewInt(int64(len(codeAlphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		b[i] = codeAlphabet[idx.Int64()]
	}
	return string(b), nil
}
