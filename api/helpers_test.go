package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func init() {
	// 將日誌輸出重定向到io.Discard
	log.SetOutput(io.Discard)
	gin.SetMode(gin.TestMode)
}

// testClock 是可手動推進的時間來源
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func testConfig() ServerConfig {
	return ServerConfig{
		ID:        "node-1",
		Store:     StoreConfig{Driver: DriverMemory},
		Scheduler: SchedulerConfig{Interval: time.Hour},
	}
}

func setupServer(t *testing.T, config ServerConfig, opts ...ServerOption) (*Server, *testClock) {
	t.Helper()
	clock := &testClock{now: t0}
	opts = append([]ServerOption{WithServerLogger(discard), WithServerClock(clock.Now)}, opts...)
	server, err := NewServer(config, opts...)
	require.NoError(t, err)
	t.Cleanup(server.Close)
	return server, clock
}

// doJSON 發送請求並回傳 recorder
func doJSON(t *testing.T, handler http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(headerUserID, userID)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// createListing 建立 t0 開始、一小時後結束的拍賣商品
func createListing(t *testing.T, handler http.Handler, sellerID string) ListingResponse {
	t.Helper()
	w := doJSON(t, handler, http.MethodPost, "/listings", sellerID, map[string]any{
		"title":      "Vintage camera",
		"startPrice": "100",
		"startTime":  t0,
		"endTime":    t0.Add(time.Hour),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[ListingResponse](t, w)
}
