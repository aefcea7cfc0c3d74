package sse

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrManagerClosed 表示連線管理器已停止
var ErrManagerClosed = errors.New("connection manager is closed")

type connectionManagerOptions[T any] struct {
	logger     *slog.Logger
	bufferSize int
	source     ISource[T]
}

type ConnectionManagerOption[T any] func(*connectionManagerOptions[T])

// WithConnectionManagerLogger 設置日誌記錄器
func WithConnectionManagerLogger[T any](logger *slog.Logger) ConnectionManagerOption[T] {
	return func(o *connectionManagerOptions[T]) {
		o.logger = logger
	}
}

// WithConnectionManagerBufferSize 設置每個訂閱者的緩衝區大小
func WithConnectionManagerBufferSize[T any](size int) ConnectionManagerOption[T] {
	return func(o *connectionManagerOptions[T]) {
		o.bufferSize = size
	}
}

// WithConnectionManagerSource 設置跨節點的訊息來源
// 來源的訊息會依 channelFunc 分派到對應頻道
func WithConnectionManagerSource[T any](source ISource[T]) ConnectionManagerOption[T] {
	return func(o *connectionManagerOptions[T]) {
		o.source = source
	}
}

// ConnectionManager 管理多個 SSE 頻道的訂閱與發布。
// 設置來源時，透過 Redis Stream 實現跨節點的訊息廣播，讓多個服務實例能夠協同運作。
type ConnectionManager[T any] struct {
	logger      *slog.Logger
	options     connectionManagerOptions[T]
	channelFunc func(T) string

	mu     sync.RWMutex   // 保護 active 和 channels 的讀寫
	wg     sync.WaitGroup // 用於等待所有 goroutine 完成
	active bool           // 標記 manager 是否正在運作中

	channels map[string]*Channel[T] // 儲存所有活躍的頻道
}

// NewConnectionManager 建立一個新的連線管理器。
// channelFunc: 決定來源訊息要送往哪個頻道
func NewConnectionManager[T any](channelFunc func(T) string, opts ...ConnectionManagerOption[T]) (*ConnectionManager[T], error) {
	if channelFunc == nil {
		return nil, errors.New("channel func cannot be nil")
	}

	// 默認選項
	options := connectionManagerOptions[T]{
		logger:     slog.Default(),
		bufferSize: 16,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &ConnectionManager[T]{
		logger:      options.logger.With(slog.String("caller", "ConnectionManager")),
		options:     options,
		channelFunc: channelFunc,
		channels:    make(map[string]*Channel[T]),
		active:      true,
	}, nil
}

// Start 啟動連線管理器，開始處理來源訊息的接收與廣播。
// 沒有設置來源時不做任何事。
func (cm *ConnectionManager[T]) Start() {
	source := cm.options.source
	if source == nil {
		return
	}
	source.Start()

	// 啟動訊息處理的 goroutine
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		for msg := range source.Subscribe() {
			cm.broadcast(cm.channelFunc(msg), msg)
		}
	}()
}

// Done 停止連線管理器的運作。
func (cm *ConnectionManager[T]) Done() {
	cm.mu.Lock()
	if !cm.active {
		cm.mu.Unlock()
		return
	}
	cm.active = false
	cm.mu.Unlock()

	// 來源關閉後訊息處理的 goroutine 才會結束，不能持有鎖等待
	if cm.options.source != nil {
		cm.options.source.Close()
	}
	cm.wg.Wait()

	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, channel := range cm.channels {
		channel.UnsubscribeAll()
	}
	clear(cm.channels)
}

// Subscribe 訂閱指定的頻道。
// channelName: 要訂閱的頻道名稱
// 返回: 用於接收訊息的唯讀通道，以及可能的錯誤
func (cm *ConnectionManager[T]) Subscribe(channelName string) (<-chan T, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return nil, ErrManagerClosed
	}

	c, ok := cm.channels[channelName]
	if !ok {
		c = NewChannel[T](cm.options.bufferSize)
		cm.channels[channelName] = c
	}
	return c.Subscribe(), nil
}

// Publish 發布訊息到本節點的指定頻道。
// channelName: 目標頻道名稱
// data: 要發布的訊息內容
func (cm *ConnectionManager[T]) Publish(channelName string, data T) error {
	cm.mu.RLock()
	active := cm.active
	cm.mu.RUnlock()
	if !active {
		return ErrManagerClosed
	}
	cm.broadcast(channelName, data)
	return nil
}

// Unsubscribe 取消訂閱指定的頻道。
func (cm *ConnectionManager[T]) Unsubscribe(channelName string, ch <-chan T) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.channels[channelName]
	if !ok {
		return
	}

	c.Unsubscribe(ch)
	if c.IsIdle() {
		delete(cm.channels, channelName)
	}
}

func (cm *ConnectionManager[T]) broadcast(channelName string, data T) {
	cm.mu.RLock()
	channel, ok := cm.channels[channelName]
	if !ok {
		cm.mu.RUnlock()
		return
	}
	dropped := channel.Broadcast(data)
	cm.mu.RUnlock()

	if dropped > 0 {
		cm.logger.Warn("slow subscribers missed a message",
			slog.String("channel", channelName),
			slog.Int("dropped", dropped))
	}
}

// NotificationSink 把通知推送給本節點上訂閱該使用者的 SSE 連線
type NotificationSink[T any] struct {
	manager *ConnectionManager[T]
}

func NewNotificationSink[T any](manager *ConnectionManager[T]) (*NotificationSink[T], error) {
	if manager == nil {
		return nil, errors.New("connection manager cannot be nil")
	}
	return &NotificationSink[T]{manager: manager}, nil
}

func (s *NotificationSink[T]) Send(ctx context.Context, data T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.manager.Publish(s.manager.channelFunc(data), data)
}
