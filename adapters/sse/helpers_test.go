package sse_test

import (
	"io"
	"log"
	"log/slog"
	"sync"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func init() {
	// 將日誌輸出重定向到io.Discard
	log.SetOutput(io.Discard)
}

// Message 表示一個 SSE 訊息，包含資料字段。
type Message struct {
	Channel string `json:"channel"`
	Data    string `json:"data"`
}

func channelOf(m Message) string {
	return m.Channel
}

// fakeSource 以記憶體通道模擬跨節點的訊息來源
type fakeSource struct {
	ch      chan Message
	once    sync.Once
	started bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{ch: make(chan Message, 8)}
}

func (s *fakeSource) Start()                    { s.started = true }
func (s *fakeSource) Subscribe() <-chan Message { return s.ch }
func (s *fakeSource) Close()                    { s.once.Do(func() { close(s.ch) }) }
