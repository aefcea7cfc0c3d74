package auction

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/viney-shih/goroutines"
)

type dispatcherOptions struct {
	logger          *slog.Logger
	workers         int
	queueLength     int
	scheduleTimeout time.Duration
	sendTimeout     time.Duration
}

type DispatcherOption func(*dispatcherOptions)

// WithDispatcherLogger 設置日誌記錄器
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.logger = logger
	}
}

// WithDispatcherWorkers 設置送出通知的 worker 數量
func WithDispatcherWorkers(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.workers = n
	}
}

// WithDispatcherQueueLength 設置等待中的通知佇列長度
func WithDispatcherQueueLength(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.queueLength = n
	}
}

// WithDispatcherScheduleTimeout 設置排入佇列的最長等待時間，逾時的通知會被丟棄
func WithDispatcherScheduleTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.scheduleTimeout = d
	}
}

// WithDispatcherSendTimeout 設置單筆通知送出的逾時
func WithDispatcherSendTimeout(d time.Duration) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.sendTimeout = d
	}
}

// Dispatcher 以 worker pool 非同步送出通知
// 送出失敗只會記錄日誌，不會重試也不會影響呼叫端
type Dispatcher struct {
	sink    INotificationSink
	pool    *goroutines.Pool
	logger  *slog.Logger
	options dispatcherOptions

	// mu 保護 closed，Dispatch 持有讀鎖排入任務，Close 取得寫鎖後不再接受新的通知
	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

func NewDispatcher(sink INotificationSink, opts ...DispatcherOption) (*Dispatcher, error) {
	if sink == nil {
		return nil, errors.New("notification sink cannot be nil")
	}

	// 默認選項
	options := dispatcherOptions{
		logger:          slog.Default(),
		workers:         16,
		queueLength:     1024,
		scheduleTimeout: 50 * time.Millisecond,
		sendTimeout:     5 * time.Second,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &Dispatcher{
		sink:    sink,
		pool:    goroutines.NewPool(options.workers, goroutines.WithTaskQueueLength(options.queueLength)),
		logger:  options.logger.With(slog.String("caller", "Dispatcher")),
		options: options,
	}, nil
}

// Dispatch 將通知排入 worker pool，不會阻塞呼叫端超過 scheduleTimeout
// Close 之後的通知直接丟棄
func (d *Dispatcher) Dispatch(notifications ...Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		for _, n := range notifications {
			d.logger.Warn("drop notification after close", slog.String("notificationId", n.ID))
		}
		return
	}
	for _, n := range notifications {
		notification := n
		d.inflight.Add(1)
		err := d.pool.ScheduleWithTimeout(d.options.scheduleTimeout, func() {
			defer d.inflight.Done()
			d.send(notification)
		})
		if err != nil {
			d.inflight.Done()
			d.logger.Warn("drop notification",
				slog.String("notificationId", notification.ID),
				slog.Any("error", err))
		}
	}
}

func (d *Dispatcher) send(notification Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.options.sendTimeout)
	defer cancel()
	if err := d.sink.Send(ctx, notification); err != nil {
		d.logger.Warn("fail to send notification",
			slog.String("notificationId", notification.ID),
			slog.String("type", string(notification.Type)),
			slog.Any("error", err))
		return
	}
	d.logger.Debug("notification sent", slog.String("notificationId", notification.ID))
}

// Close 停止接受新的通知，等待已排入的通知送出後釋放 worker pool
// 每筆通知最多等待 sendTimeout
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	d.inflight.Wait()
	d.pool.Release()
}
