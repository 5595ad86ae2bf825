package notify

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"user-admin/internal/config"
	"user-admin/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

// capture 记录收到的邮件
type capture struct {
	mu    sync.Mutex
	mails []Mail
}

func (c *capture) Send(_ context.Context, m Mail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mails = append(c.mails, m)
	return nil
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.mails)
}

func TestCodeMail(t *testing.T) {
	m := CodeMail("a@b.com", "注册验证码", "你的注册验证码是", "<x1>", 5*time.Minute)
	assert.Equal(t, "a@b.com", m.To)
	assert.Equal(t, "注册验证码", m.Subject)
	assert.Contains(t, m.HTML, "&lt;x1&gt;", "code is html-escaped")
	assert.Contains(t, m.HTML, "5 分钟")
}

func TestEmailNotifier_BuildsMessage(t *testing.T) {
	n := NewEmailNotifier(config.EmailConfig{Host: "smtp.local", Port: 25, User: "bot@local"}, logging.Discard())
	var sent *gomail.Message
	n.send = func(m *gomail.Message) error {
		sent = m
		return nil
	}

	require.NoError(t, n.Send(context.Background(), Mail{To: "a@b.com", Subject: "hi", HTML: "<p>x</p>"}))
	require.NotNil(t, sent)
	assert.Equal(t, []string{"bot@local"}, sent.GetHeader("From"), "From falls back to SMTP user")
	assert.Equal(t, []string{"a@b.com"}, sent.GetHeader("To"))
	assert.Equal(t, []string{"hi"}, sent.GetHeader("Subject"))
}

func TestEmailNotifier_Errors(t *testing.T) {
	n := NewEmailNotifier(config.EmailConfig{Host: "smtp.local"}, logging.Discard())
	n.send = func(*gomail.Message) error { return errors.New("connection refused") }

	assert.Error(t, n.Send(context.Background(), Mail{To: " "}))
	err := n.Send(context.Background(), Mail{To: "a@b.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNew_FallsBackToLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Writer: &buf, Format: "json"})

	n := New(config.EmailConfig{}, logger)
	_, ok := n.(*LogNotifier)
	require.True(t, ok)
	require.NoError(t, n.Send(context.Background(), Mail{To: "a@b.com", Subject: "s"}))
	assert.Contains(t, buf.String(), "a@b.com")

	_, ok = New(config.EmailConfig{Host: "smtp"}, logger).(*EmailNotifier)
	assert.True(t, ok)
}

func TestDispatcher_DeliversAsync(t *testing.T) {
	c := &capture{}
	d := NewDispatcher(c, logging.Discard(), 2, 10)

	for i := 0; i < 5; i++ {
		assert.True(t, d.Dispatch(Mail{To: "a@b.com"}))
	}
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 5, c.count(), "Close drains the queue")
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	blocking := NotifierFunc(func(context.Context, Mail) error {
		<-release
		return nil
	})
	d := NewDispatcher(blocking, logging.Discard(), 1, 1)
	var dropped atomic.Int32
	d.OnDrop = func(Mail) { dropped.Add(1) }

	// 第一封被 worker 取走并阻塞，第二封占满队列
	require.True(t, d.Dispatch(Mail{To: "1"}))
	require.Eventually(t, func() bool { return len(d.queue) == 0 }, time.Second, time.Millisecond)
	require.True(t, d.Dispatch(Mail{To: "2"}))

	assert.False(t, d.Dispatch(Mail{To: "3"}), "never blocks the caller")
	assert.EqualValues(t, 1, dropped.Load())

	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_FailuresReported(t *testing.T) {
	failing := NotifierFunc(func(context.Context, Mail) error { return errors.New("smtp down") })
	d := NewDispatcher(failing, logging.Discard(), 1, 1)
	var failures atomic.Int32
	d.OnResult = func(_ Mail, err error) {
		if err != nil {
			failures.Add(1)
		}
	}

	d.Dispatch(Mail{To: "a@b.com"})
	require.NoError(t, d.Close(context.Background()))
	assert.EqualValues(t, 1, failures.Load())
}

func TestDispatcher_DispatchAfterClose(t *testing.T) {
	d := NewDispatcher(&capture{}, logging.Discard(), 1, 1)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()), "Close is idempotent")
	assert.False(t, d.Dispatch(Mail{To: "x"}))
}
