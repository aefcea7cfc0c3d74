package api

import "time"

// 儲存層驅動
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

type ServerConfig struct {
	// ID 是節點名稱，作為 consumer group 內的 consumer 名稱
	ID string

	Store     StoreConfig
	DB        DBConfig
	Redis     RedisConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	SSE       SSEConfig
}

type StoreConfig struct {
	Driver string
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

// Enabled 回傳是否設置了資料庫
func (c DBConfig) Enabled() bool {
	return c.Host != "" && c.Database != ""
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	KeyPrefix    string
	StreamMaxLen int64
	ArchiveGroup string
}

// Enabled 回傳是否設置了 Redis
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type SchedulerConfig struct {
	Interval  time.Duration
	BatchSize int
	// Lease 啟用時，多個節點同一時間只有一個節點執行掃描
	Lease bool
}

type NotifyConfig struct {
	Workers     int
	QueueLength int
	SendTimeout time.Duration
}

type RateLimitConfig struct {
	Limit     int
	Window    time.Duration
	CacheSize int
}

type SSEConfig struct {
	Heartbeat  time.Duration
	BufferSize int
}
