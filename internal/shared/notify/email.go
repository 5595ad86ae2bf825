package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"user-admin/internal/config"
	"user-admin/pkg/logging"

	"gopkg.in/gomail.v2"
)

// EmailNotifier 通过 SMTP 发送邮件
type EmailNotifier struct {
	cfg    config.EmailConfig
	logger *logging.Logger
	send   func(*gomail.Message) error
}

// NewEmailNotifier 创建一个新的邮件通知器
func NewEmailNotifier(cfg config.EmailConfig, logger *logging.Logger) *EmailNotifier {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	return &EmailNotifier{cfg: cfg, logger: logger, send: func(m *gomail.Message) error {
		return d.DialAndSend(m)
	}}
}

// Send 发送邮件
func (n *EmailNotifier) Send(ctx context.Context, mail Mail) error {
	if strings.TrimSpace(mail.To) == "" {
		return fmt.Errorf("empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := n.cfg.From
	if from == "" {
		from = n.cfg.User
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", mail.To)
	m.SetHeader("Subject", mail.Subject)
	m.SetBody("text/html", mail.HTML)

	if err := n.send(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("email sent", slog.String("to", mail.To), slog.String("subject", mail.Subject))
	return nil
}

// LogNotifier 未配置 SMTP 时使用，只记录日志
type LogNotifier struct {
	logger *logging.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, mail Mail) error {
	n.logger.Info("email (smtp disabled)",
		slog.String("to", mail.To),
		slog.String("subject", mail.Subject),
		slog.String("html", mail.HTML),
	)
	return nil
}

// New 按配置选择通知器
func New(cfg config.EmailConfig, logger *logging.Logger) Notifier {
	if cfg.Enabled() {
		return NewEmailNotifier(cfg, logger)
	}
	return NewLogNotifier(logger)
}
