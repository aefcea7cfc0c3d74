package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"vendue/adapters/memory"
	pgAdapter "vendue/adapters/postgres"
	redisAdapter "vendue/adapters/redis"
	"vendue/adapters/sse"
	"vendue/auction"
)

type serverOptions struct {
	logger *slog.Logger
	clock  func() time.Time
	db     *gorm.DB
}

type ServerOption func(*serverOptions)

// WithServerLogger 設置日誌記錄器
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// WithServerClock 設置時間來源 (主要用於測試)
func WithServerClock(clock func() time.Time) ServerOption {
	return func(o *serverOptions) {
		o.clock = clock
	}
}

// WithServerDB 使用已建立的資料庫連線，取代依 DBConfig 建立的連線
func WithServerDB(db *gorm.DB) ServerOption {
	return func(o *serverOptions) {
		o.db = db
	}
}

type Server struct {
	registry   *auction.Registry
	controller *auction.Controller
	scheduler  *auction.Scheduler
	dispatcher *auction.Dispatcher
	ledger     auction.IBidLedger
	inbox      auction.IInbox
	limiter    *RateLimiter
	sseManager sse.IConnectionManager[auction.Notification]

	redisClient    *redis.Client
	producer       redisAdapter.IProducer[auction.Notification]
	archiveWorkers []redisAdapter.IGroupConsumer
	db             *gorm.DB

	logger *slog.Logger
	clock  func() time.Time
	config ServerConfig
}

// NewServer 依設定建立儲存層與各個元件
//
// 驅動:
//   - memory: 單一節點，資料保存在記憶體
//   - redis: 拍賣商品與出價帳本保存在 Redis，通知透過 stream 分送到所有節點
//   - postgres: 拍賣商品與出價帳本保存在資料庫
//
// 設置資料庫時通知會保存到資料庫的收件匣，否則保存在記憶體
func NewServer(config ServerConfig, opts ...ServerOption) (*Server, error) {
	const op = "NewServer"

	// 默認選項
	options := serverOptions{
		logger: slog.Default(),
		clock:  time.Now,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.logger

	server := &Server{
		logger: logger.With(slog.String("caller", "Server")),
		clock:  options.clock,
		config: config,
		db:     options.db,
	}
	ok := false
	defer func() {
		if !ok {
			if server.dispatcher != nil {
				server.dispatcher.Close()
			}
			server.closeConnections()
		}
	}()

	// 初始化資料庫連線
	if server.db == nil && (config.DB.Enabled() || config.Store.Driver == DriverPostgres) {
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable&search_path=%s", config.DB.User, config.DB.Password, config.DB.Host, config.DB.Port, config.DB.Database, config.DB.Schema)
		gormConfig := &gorm.Config{TranslateError: true}
		if config.DB.Schema != "" {
			gormConfig.NamingStrategy = schema.NamingStrategy{
				TablePrefix: config.DB.Schema + ".",
			}
		}
		db, err := gorm.Open(postgres.Open(dsn), gormConfig)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
		}
		server.db = db
	}
	if server.db != nil {
		if err := pgAdapter.Migrate(context.Background(), server.db); err != nil {
			return nil, fmt.Errorf("[%s] Fail to migrate database, err=%w", op, err)
		}
	}

	// 初始化Redis連線
	if config.Redis.Enabled() {
		server.redisClient = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
	} else if config.Store.Driver == DriverRedis {
		return nil, fmt.Errorf("[%s] Redis driver requires redis address", op)
	}
	keys := redisAdapter.Keys{Prefix: config.Redis.KeyPrefix}

	// 初始化儲存層
	var store auction.IListingStore
	switch config.Store.Driver {
	case DriverMemory, "":
		memoryStore := memory.NewStore()
		store, server.ledger = memoryStore, memoryStore
	case DriverRedis:
		redisStore, err := redisAdapter.NewStore(server.redisClient,
			redisAdapter.WithStorePrefix(config.Redis.KeyPrefix),
			redisAdapter.WithStoreLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create redis store, err=%w", op, err)
		}
		store, server.ledger = redisStore, redisStore
	case DriverPostgres:
		pgStore, err := pgAdapter.NewStore(server.db)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create postgres store, err=%w", op, err)
		}
		store, server.ledger = pgStore, pgStore
	default:
		return nil, fmt.Errorf("[%s] Unknown store driver %q", op, config.Store.Driver)
	}

	// 初始化收件匣
	if server.db != nil {
		archive, err := pgAdapter.NewArchive(server.db)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create archive, err=%w", op, err)
		}
		server.inbox = archive
	} else {
		server.inbox = memory.NewInbox()
	}

	// 初始化SSE管理器與通知接收端
	// 有 Redis 時通知先寫入 stream，每個節點再從 stream 推送給自己的 SSE 連線
	sinks := auction.MultiSink{auction.NewLogSink(logger)}
	sseOptions := []sse.ConnectionManagerOption[auction.Notification]{
		sse.WithConnectionManagerLogger[auction.Notification](logger),
	}
	if config.SSE.BufferSize > 0 {
		sseOptions = append(sseOptions, sse.WithConnectionManagerBufferSize[auction.Notification](config.SSE.BufferSize))
	}
	if server.redisClient != nil {
		producerOptions := []redisAdapter.ProducerOption[auction.Notification]{
			redisAdapter.WithProducerLogger[auction.Notification](logger),
		}
		if config.Redis.StreamMaxLen > 0 {
			producerOptions = append(producerOptions, redisAdapter.WithProducerMaxLen[auction.Notification](config.Redis.StreamMaxLen))
		}
		producer, err := redisAdapter.NewProducer[auction.Notification](server.redisClient, keys.Notifications(), producerOptions...)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create notification producer, err=%w", op, err)
		}
		server.producer = producer
		streamSink, err := redisAdapter.NewNotificationSink(producer)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create notification sink, err=%w", op, err)
		}
		sinks = append(sinks, streamSink)

		consumer, err := redisAdapter.NewConsumer[auction.Notification](
			server.redisClient,
			keys.Notifications(),
			redisAdapter.WithConsumerLogger[auction.Notification](logger),
		)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create notification consumer, err=%w", op, err)
		}
		sseOptions = append(sseOptions, sse.WithConnectionManagerSource[auction.Notification](consumer))
	}
	sseManager, err := sse.NewConnectionManager(func(n auction.Notification) string { return n.UserID }, sseOptions...)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create sse connection manager, err=%w", op, err)
	}
	server.sseManager = sseManager
	if server.redisClient == nil {
		sseSink, err := sse.NewNotificationSink(sseManager)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create sse sink, err=%w", op, err)
		}
		sinks = append(sinks, sseSink)
	}

	// 收件匣的寫入方式:
	//   - redis 驅動且設置資料庫: 由 archive worker 從 stream 寫入資料庫
	//   - 其他情況: 直接寫入收件匣 (寫入皆為冪等)
	if config.Store.Driver == DriverRedis && server.db != nil {
		workers, err := server.newArchiveWorkers(keys, logger)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create archive workers, err=%w", op, err)
		}
		server.archiveWorkers = workers
	} else {
		sinks = append(sinks, server.inbox)
	}

	// 初始化通知分派器
	dispatcherOptions := []auction.DispatcherOption{auction.WithDispatcherLogger(logger)}
	if config.Notify.Workers > 0 {
		dispatcherOptions = append(dispatcherOptions, auction.WithDispatcherWorkers(config.Notify.Workers))
	}
	if config.Notify.QueueLength > 0 {
		dispatcherOptions = append(dispatcherOptions, auction.WithDispatcherQueueLength(config.Notify.QueueLength))
	}
	if config.Notify.SendTimeout > 0 {
		dispatcherOptions = append(dispatcherOptions, auction.WithDispatcherSendTimeout(config.Notify.SendTimeout))
	}
	dispatcher, err := auction.NewDispatcher(sinks, dispatcherOptions...)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create dispatcher, err=%w", op, err)
	}
	server.dispatcher = dispatcher

	// 初始化核心元件
	server.registry, err = auction.NewRegistry(store, auction.WithRegistryLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create registry, err=%w", op, err)
	}
	server.controller, err = auction.NewController(store, dispatcher, auction.WithControllerLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create controller, err=%w", op, err)
	}
	schedulerOptions := []auction.SchedulerOption{
		auction.WithSchedulerLogger(logger),
		auction.WithSchedulerClock(options.clock),
	}
	if config.Scheduler.Interval > 0 {
		schedulerOptions = append(schedulerOptions, auction.WithSchedulerInterval(config.Scheduler.Interval))
	}
	if config.Scheduler.BatchSize > 0 {
		schedulerOptions = append(schedulerOptions, auction.WithSchedulerBatchSize(config.Scheduler.BatchSize))
	}
	if config.Scheduler.Lease && server.redisClient != nil {
		lease, err := redisAdapter.NewTickLease(server.redisClient, config.Redis.KeyPrefix+"lease:scheduler",
			redisAdapter.WithAutoRenewMutexLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create scheduler lease, err=%w", op, err)
		}
		schedulerOptions = append(schedulerOptions, auction.WithSchedulerLease(lease))
	}
	server.scheduler, err = auction.NewScheduler(store, dispatcher, schedulerOptions...)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to create scheduler, err=%w", op, err)
	}

	// 初始化出價頻率限制
	if config.RateLimit.Limit > 0 {
		limiterOptions := []RateLimiterOption{
			WithRateLimiterLogger(logger),
			WithRateLimiterClock(options.clock),
		}
		if config.RateLimit.CacheSize > 0 {
			limiterOptions = append(limiterOptions, WithRateLimiterCacheSize(config.RateLimit.CacheSize))
		}
		server.limiter, err = NewRateLimiter(config.RateLimit.Limit, config.RateLimit.Window, limiterOptions...)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create rate limiter, err=%w", op, err)
		}
	}

	ok = true
	return server, nil
}

func (impl *Server) Start() error {
	// 啟動notification producer
	if impl.producer != nil {
		impl.producer.Start()
	}
	// 啟動sse connection manager
	impl.sseManager.Start()
	// 啟動archive worker
	for _, worker := range impl.archiveWorkers {
		if err := worker.Start(); err != nil {
			return fmt.Errorf("[Server.Start] Fail to start archive worker, err=%w", err)
		}
	}
	// 啟動scheduler
	impl.scheduler.Start()
	return nil
}

func (impl *Server) Close() {
	// 關閉scheduler
	impl.scheduler.Close()
	// 等待尚未送出的通知
	impl.dispatcher.Close()
	// 關閉producer
	if impl.producer != nil {
		impl.producer.Close()
	}
	// 關閉archive worker
	for _, worker := range impl.archiveWorkers {
		if err := worker.Close(); err != nil {
			impl.logger.Warn("fail to close archive worker", slog.Any("error", err))
		}
	}
	// 關閉sse connection manager
	impl.sseManager.Done()
	impl.closeConnections()
}

func (impl *Server) closeConnections() {
	if impl.redisClient != nil {
		if err := impl.redisClient.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			impl.logger.Warn("fail to close redis client", slog.Any("error", err))
		}
	}
	if impl.db != nil {
		if sqlDB, err := impl.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

// Handler 建立 gin router
func (impl *Server) Handler() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(impl.requestLogger())
	impl.RegisterHandlers(router)
	return router
}

func (impl *Server) requestLogger() gin.HandlerFunc {
	logger := impl.logger.With(slog.String("caller", "HTTP"))
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP Request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)))
	}
}
