package user

import (
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func isValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// bcrypt 只使用前 72 字节
const (
	minPasswordLen = 6
	maxPasswordLen = 72
)

// validator 收集校验错误
type validator struct {
	messages []string
}

func (v *validator) required(value, msg string) bool {
	if strings.TrimSpace(value) == "" {
		v.messages = append(v.messages, msg)
		return false
	}
	return true
}

func (v *validator) email(value string) {
	if v.required(value, "邮箱不能为空") && !isValidEmail(value) {
		v.messages = append(v.messages, "邮箱格式不正确")
	}
}

func (v *validator) password(value, emptyMsg string) {
	if !v.required(value, emptyMsg) {
		return
	}
	switch {
	case len(value) < minPasswordLen:
		v.messages = append(v.messages, "密码不能少于 6 位")
	case len(value) > maxPasswordLen:
		v.messages = append(v.messages, "密码不能超过 72 字节")
	}
}

func (v *validator) err() error {
	if len(v.messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: v.messages}
}

func (r *registerRequest) validate() error {
	v := &validator{}
	v.required(r.Username, "用户名不能为空")
	v.password(r.Password, "密码不能为空")
	v.required(r.NickName, "昵称不能为空")
	v.email(r.Email)
	v.required(r.Captcha, "验证码不能为空")
	return v.err()
}

func (r *loginRequest) validate() error {
	v := &validator{}
	v.required(r.Username, "用户名不能为空")
	v.required(r.Password, "密码不能为空")
	return v.err()
}

func (r *refreshRequest) validate() error {
	v := &validator{}
	v.required(r.RefreshToken, "refreshToken不能为空")
	return v.err()
}

func (r *updatePasswordRequest) validate() error {
	v := &validator{}
	v.password(r.OldPassword, "旧密码不能为空")
	v.password(r.NewPassword, "新密码不能为空")
	v.email(r.Email)
	v.required(r.Captcha, "验证码不能为空")
	return v.err()
}

func (r *updateUserRequest) validate() error {
	v := &validator{}
	v.email(r.Email)
	v.required(r.Captcha, "验证码不能为空")
	return v.err()
}
