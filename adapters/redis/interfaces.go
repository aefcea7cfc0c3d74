//go:generate mockgen -package=redis -destination=mock.go -source=interfaces.go

package redis

import (
	"context"
)

// IProducer 非同步地把資料寫入 stream
// Publish 只放入緩衝區，Close 會等待緩衝區寫完
type IProducer[T any] interface {
	Start()
	Publish(data T) error
	Close()
}

// IConsumer 以 XREAD 讀取 stream 的新消息，每個節點各自收到全部消息
// 用於把通知推播到本節點的 SSE 連線
type IConsumer[T any] interface {
	Start()
	Subscribe() <-chan T
	Close()
}

// IGroupConsumer 在背景以 consumer group 消費 stream，消息由建立時傳入的 Handler 處理
// 同一個 group 內每筆消息只會被一個節點處理成功一次
type IGroupConsumer interface {
	Start() error
	Close() error
}

// IAutoRenewMutex 是會自動續期的分散式鎖
// Lock 回傳的 context 在鎖遺失時會被取消
type IAutoRenewMutex interface {
	Lock(ctx context.Context) (context.Context, error)
	Unlock() (bool, error)
	Valid() bool
}
