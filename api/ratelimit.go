package api

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/coocood/freecache"
	"github.com/gin-gonic/gin"
)

type rateLimiterOptions struct {
	logger    *slog.Logger
	cacheSize int
	clock     func() time.Time
}

type RateLimiterOption func(*rateLimiterOptions)

// WithRateLimiterLogger 設置日誌記錄器
func WithRateLimiterLogger(logger *slog.Logger) RateLimiterOption {
	return func(o *rateLimiterOptions) {
		o.logger = logger
	}
}

// WithRateLimiterCacheSize 設置計數器快取的大小 (bytes)
func WithRateLimiterCacheSize(size int) RateLimiterOption {
	return func(o *rateLimiterOptions) {
		o.cacheSize = size
	}
}

// WithRateLimiterClock 設置時間來源 (主要用於測試)
func WithRateLimiterClock(clock func() time.Time) RateLimiterOption {
	return func(o *rateLimiterOptions) {
		o.clock = clock
	}
}

// RateLimiter 以固定時間窗限制每個客戶端的請求次數
// 計數器保存在 freecache 中，過期的時間窗會自動淘汰
type RateLimiter struct {
	cache  *freecache.Cache
	limit  int
	window time.Duration
	mu     sync.Mutex
	logger *slog.Logger
	clock  func() time.Time
}

func NewRateLimiter(limit int, window time.Duration, opts ...RateLimiterOption) (*RateLimiter, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	if window <= 0 {
		return nil, errors.New("window must be positive")
	}

	// 默認選項
	options := rateLimiterOptions{
		logger:    slog.Default(),
		cacheSize: 8 * 1024 * 1024,
		clock:     time.Now,
	}

	// 應用自定義選項
	for _, opt := range opts {
		opt(&options)
	}

	return &RateLimiter{
		cache:  freecache.NewCache(options.cacheSize),
		limit:  limit,
		window: window,
		logger: options.logger.With(slog.String("caller", "RateLimiter")),
		clock:  options.clock,
	}, nil
}

// Allow 記錄一次請求並回傳是否在限制內
func (r *RateLimiter) Allow(client string) bool {
	windowIndex := r.clock().UnixNano() / r.window.Nanoseconds()
	key := []byte(fmt.Sprintf("%s:%d", client, windowIndex))
	// 多保留一秒，避免時間窗結束前計數器就被淘汰
	expire := int(math.Ceil(r.window.Seconds())) + 1

	r.mu.Lock()
	defer r.mu.Unlock()

	var count uint32
	value, err := r.cache.Get(key)
	switch {
	case err == nil:
		count = binary.BigEndian.Uint32(value)
	case !errors.Is(err, freecache.ErrNotFound):
		r.logger.Warn("fail to read rate limit counter", slog.String("client", client), slog.Any("error", err))
		return true
	}
	if int(count) >= r.limit {
		return false
	}

	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, count+1)
	if err := r.cache.Set(key, buf, expire); err != nil {
		r.logger.Warn("fail to write rate limit counter", slog.String("client", client), slog.Any("error", err))
	}
	return true
}

// Middleware 以客戶端 IP 作為限制對象
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Message: "Too many bids, please slow down.",
			})
			return
		}
		c.Next()
	}
}
