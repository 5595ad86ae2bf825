package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"user-admin/pkg/logging"
)

// sendTimeout 单封邮件发送超时
const sendTimeout = 30 * time.Second

// Dispatcher 异步邮件分发器
//
// Dispatch 不阻塞调用方：队列满或已关闭时丢弃并记录，发送失败只记日志不重试。
type Dispatcher struct {
	notifier Notifier
	logger   *logging.Logger
	queue    chan Mail
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	// OnDrop 丢弃回调（指标计数）
	OnDrop func(Mail)
	// OnResult 发送结果回调（指标计数）
	OnResult func(Mail, error)
}

// NewDispatcher 创建并启动 workers 个发送协程
func NewDispatcher(n Notifier, logger *logging.Logger, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	d := &Dispatcher{
		notifier: n,
		logger:   logger,
		queue:    make(chan Mail, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for m := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := d.notifier.Send(ctx, m)
		cancel()
		if err != nil {
			d.logger.WithError(err).Warn("email delivery failed", slog.String("to", m.To))
		}
		if d.OnResult != nil {
			d.OnResult(m, err)
		}
	}
}

// Dispatch 投递邮件，返回是否入队
func (d *Dispatcher) Dispatch(m Mail) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(m, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- m:
		return true
	default:
		d.drop(m, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(m Mail, reason string) {
	d.logger.Warn("email dropped", slog.String("to", m.To), slog.String("reason", reason))
	if d.OnDrop != nil {
		d.OnDrop(m)
	}
}

// Close 停止接收新邮件，等待队列中的邮件发送完毕或 ctx 结束
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
