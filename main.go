package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"vendue/api"
)

func main() {
	args := ParseArgs()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: args.Level()}))
	slog.SetDefault(logger)
	if err := args.Validate(); err != nil {
		logger.Error("invalid arguments", slog.Any("error", err))
		os.Exit(2)
	}
	if args.Level() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := api.NewServer(args.ServerConfig, api.WithServerLogger(logger))
	if err != nil {
		logger.Error("fail to create server", slog.Any("error", err))
		os.Exit(1)
	}
	defer server.Close()
	if err := server.Start(); err != nil {
		logger.Error("fail to start server", slog.Any("error", err))
		return
	}

	httpServer := &http.Server{
		Addr:    args.ServerURL,
		Handler: server.Handler(),
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		// 監聽失敗時一併結束程式
		defer stop()
		logger.Info("listening", slog.String("addr", args.ServerURL), slog.String("driver", args.ServerConfig.Store.Driver))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", slog.Any("error", err))
		}
	}()
	<-ctx.Done()
	logger.Info("shutting down")

	// SSE 連線不會自行結束，逾時後直接關閉
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("fail to shutdown http server gracefully", slog.Any("error", err))
		httpServer.Close()
	}
}
