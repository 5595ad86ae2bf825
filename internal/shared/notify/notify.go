// Package notify 邮件通知：SMTP 发送、日志回退、异步分发
package notify

import (
	"context"
	"fmt"
	"html"
	"time"
)

// Mail 一封待发送的邮件
type Mail struct {
	To      string
	Subject string
	HTML    string
}

// Notifier 定义通知接口
type Notifier interface {
	Send(ctx context.Context, m Mail) error
}

// NotifierFunc 函数适配器
type NotifierFunc func(ctx context.Context, m Mail) error

func (f NotifierFunc) Send(ctx context.Context, m Mail) error { return f(ctx, m) }

// CodeMail 构造验证码邮件
func CodeMail(to, subject, intro, code string, ttl time.Duration) Mail {
	body := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <p>%s</p>
    <div style="font-size: 28px; font-weight: bold; letter-spacing: 3px;">%s</div>
    <p>验证码有效期 %d 分钟。</p>
  </div>
</body>
</html>`, html.EscapeString(intro), html.EscapeString(code), int(ttl.Minutes()))
	return Mail{To: to, Subject: subject, HTML: body}
}
