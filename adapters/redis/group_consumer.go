package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeadLetterStream 回傳 stream 對應的死信 stream
func DeadLetterStream(stream string) string {
	return stream + ":dead-letter"
}

// Handler 處理一筆消息，回傳錯誤時消息會移到死信 stream
type Handler[T any] func(ctx context.Context, data T) error

type groupConsumerOptions[T any] struct {
	logger         *slog.Logger
	parseFunc      func(map[string]any) (T, error)
	blockTimeout   time.Duration
	mutex          IAutoRenewMutex
	strictOrdering bool
	startID        string
}

type GroupConsumerOption[T any] func(*groupConsumerOptions[T])

// WithGroupConsumerLogger 設置日誌記錄器
func WithGroupConsumerLogger[T any](logger *slog.Logger) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.logger = logger
	}
}

// WithGroupConsumerParseFunc 設置消息解析函數
func WithGroupConsumerParseFunc[T any](fn func(map[string]any) (T, error)) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.parseFunc = fn
	}
}

// WithGroupConsumerBlockTimeout 設置阻塞讀取超時時間
func WithGroupConsumerBlockTimeout[T any](d time.Duration) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.blockTimeout = d
	}
}

// WithGroupConsumerMutex 注入mutex (主要用於測試)
func WithGroupConsumerMutex[T any](mutex IAutoRenewMutex) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.mutex = mutex
	}
}

// WithGroupConsumerStartID 設置 group 不存在時建立 group 的起始位置，默認 "0" 會從頭消費
func WithGroupConsumerStartID[T any](id string) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.startID = id
	}
}

// WithGroupConsumerStrictOrdering 設置是否使用嚴格順序模式
// 嚴格順序模式下同一個 group 只有持有鎖的節點在消費，並且會接手其他節點留下的 pending 消息
func WithGroupConsumerStrictOrdering[T any](strict bool) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.strictOrdering = strict
	}
}

// GroupConsumer 以 consumer group 逐筆消費 stream，並把每筆消息交給 Handler 寫入下游 (例如資料庫)
//
// 每筆消息的結果:
//   - 解析失敗或 Handler 回傳錯誤: 附上 error 欄位移到死信 stream，再 ack
//   - Handler 成功: ack
//   - 關閉中被中斷、ack 或移到死信失敗: 留在 pending，下一輪會最先處理
type GroupConsumer[T any] struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	handle   Handler[T]
	mutex    IAutoRenewMutex
	logger   *slog.Logger
	options  groupConsumerOptions[T]

	mu         sync.Mutex
	wg         sync.WaitGroup
	closed     bool
	cancelFunc context.CancelFunc

	// backlog 是本輪開始時仍在 pending 的消息 ID，只在消費 goroutine 中存取
	backlog []string
}

func NewGroupConsumer[T any](
	client *redis.Client,
	stream, group, consumer string,
	handle Handler[T],
	opts ...GroupConsumerOption[T],
) (IGroupConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if stream == "" || group == "" || consumer == "" {
		return nil, errors.New("stream, group and consumer cannot be empty")
	}
	if handle == nil {
		return nil, errors.New("handler cannot be nil")
	}

	// 默認選項
	options := groupConsumerOptions[T]{
		logger:       slog.Default(),
		parseFunc:    DefaultParseFromMessage[T],
		blockTimeout: time.Second,
		startID:      "0",
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	gc := &GroupConsumer[T]{
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		handle:   handle,
		closed:   true,
		logger: options.logger.With(
			slog.String("caller", "GroupConsumer"),
			slog.String("stream", stream),
			slog.String("group", group),
			slog.String("consumer", consumer)),
		options: options,
	}
	if options.strictOrdering {
		gc.mutex = options.mutex
		if gc.mutex == nil {
			gc.mutex = NewAutoRenewMutex(client, fmt.Sprintf("lock:%s:%s", stream, group),
				WithAutoRenewMutexLogger(options.logger),
				WithAutoRenewMutexSkipLockError(true))
		}
	}
	return gc, nil
}

// Start 建立 consumer group 並在背景開始消費
func (s *GroupConsumer[T]) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		return nil
	}
	if err := s.ensureGroup(context.Background()); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel
	s.closed = false
	s.logger.Info("starting group consumer", slog.Bool("strictOrdering", s.options.strictOrdering))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.logger.Info("group consumer goroutine stopped")
		for {
			err := s.round(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case errors.Is(err, context.Canceled):
				s.logger.Warn("lock lost, restarting consumption")
				continue
			}
			s.logger.Error("consumption interrupted, restarting", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.options.blockTimeout):
			}
		}
	}()
	return nil
}

// round 在嚴格順序模式下先取得鎖，然後消費到鎖遺失、ctx 結束或消息卡在 pending 為止
func (s *GroupConsumer[T]) round(ctx context.Context) error {
	if s.mutex == nil {
		return s.consume(ctx)
	}
	lockCtx, err := s.mutex.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if _, err := s.mutex.Unlock(); err != nil {
			s.logger.Warn("failed to release lock", slog.Any("error", err))
		}
	}()
	return s.consume(lockCtx)
}

// Close 停止消費並等待處理中的消息結束
func (s *GroupConsumer[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.logger.Info("closing group consumer")
	s.closed = true
	s.cancelFunc()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("group consumer closed gracefully")
	return nil
}

// ensureGroup 建立 consumer group，已存在時忽略
func (s *GroupConsumer[T]) ensureGroup(ctx context.Context) error {
	const op = "GroupConsumer.ensureGroup"
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, s.options.startID).Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("[%s] failed to create consumer group: %w", op, err)
	}
	return nil
}

// consume 持續讀取並處理消息，直到 ctx 結束或遇到會讓消息卡在 pending 的錯誤
func (s *GroupConsumer[T]) consume(ctx context.Context) error {
	if err := s.loadBacklog(ctx); err != nil {
		return err
	}
	for {
		message, err := s.next(ctx)
		switch {
		case ctx.Err() != nil:
			return context.Canceled
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			// 通常是與 Redis 之間的連線問題，稍候重試
			s.logger.Error("fetch message error", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return context.Canceled
			case <-time.After(s.options.blockTimeout):
			}
			continue
		}
		if err := s.process(ctx, message); err != nil {
			return err
		}
	}
}

// process 處理單筆消息，只有消息仍留在 pending 時才回傳錯誤
func (s *GroupConsumer[T]) process(ctx context.Context, message redis.XMessage) error {
	logger := s.logger.With(slog.String("messageId", message.ID))
	// 結果已確定的消息，即使正在關閉也要完成 ack
	ackCtx := context.WithoutCancel(ctx)

	data, err := s.options.parseFunc(message.Values)
	if err != nil {
		// 原始資料或解析方式有誤，重試也不會成功
		logger.Error("failed to parse message", slog.Any("error", err))
		return s.deadLetter(ackCtx, message, err)
	}
	if err := s.handle(ctx, data); err != nil {
		if ctx.Err() != nil {
			logger.Warn("handler interrupted, message stays pending", slog.Any("error", err))
			return context.Canceled
		}
		logger.Error("failed to handle message", slog.Any("error", err))
		return s.deadLetter(ackCtx, message, err)
	}
	if err := s.client.XAck(ackCtx, s.stream, s.group, message.ID).Err(); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", message.ID, err)
	}
	logger.Debug("message handled")
	return nil
}

// deadLetter 附上錯誤原因移到死信 stream 並 ack 原消息
func (s *GroupConsumer[T]) deadLetter(ctx context.Context, message redis.XMessage, cause error) error {
	values := make(map[string]any, len(message.Values)+1)
	for k, v := range message.Values {
		values[k] = v
	}
	values[fieldError] = cause.Error()
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStream(s.stream),
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("failed to move message %s to dead letter: %w", message.ID, err)
	}
	if err := s.client.XAck(ctx, s.stream, s.group, message.ID).Err(); err != nil {
		return fmt.Errorf("failed to ack dead letter message %s: %w", message.ID, err)
	}
	return nil
}

// loadBacklog 取得 pending 消息的 ID，依 ID 排序
// 嚴格順序模式下接手整個 group 的 pending 消息，否則只處理自己名下的
func (s *GroupConsumer[T]) loadBacklog(ctx context.Context) error {
	const pageSize = 100
	owner := s.consumer
	if s.options.strictOrdering {
		owner = ""
	}
	s.backlog = s.backlog[:0]
	start := "-"
	for {
		pending, err := s.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream:   s.stream,
			Group:    s.group,
			Start:    start,
			End:      "+",
			Count:    pageSize,
			Consumer: owner,
		}).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to list pending messages: %w", err)
		}
		for _, p := range pending {
			s.backlog = append(s.backlog, p.ID)
		}
		if len(pending) < pageSize {
			break
		}
		// 下一頁從最後一筆之後開始
		start = "(" + pending[len(pending)-1].ID
	}
	if len(s.backlog) > 0 {
		s.logger.Info("redelivering pending messages", slog.Int("count", len(s.backlog)))
	}
	return nil
}

// next 先取 backlog 中的消息，取完後才讀取新消息
func (s *GroupConsumer[T]) next(ctx context.Context) (redis.XMessage, error) {
	for len(s.backlog) > 0 {
		id := s.backlog[0]
		messages, err := s.client.XRangeN(ctx, s.stream, id, id, 1).Result()
		if err != nil {
			return redis.XMessage{}, err
		}
		s.backlog = s.backlog[1:]
		if len(messages) > 0 {
			return messages[0], nil
		}
		// 已被修剪的消息只剩 pending 紀錄，直接 ack 掉
		if err := s.client.XAck(ctx, s.stream, s.group, id).Err(); err != nil {
			return redis.XMessage{}, err
		}
	}

	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, ">"},
		Count:    1,
		Block:    s.options.blockTimeout,
	}).Result()
	if err != nil {
		return redis.XMessage{}, err
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return redis.XMessage{}, redis.Nil
	}
	return streams[0].Messages[0], nil
}
