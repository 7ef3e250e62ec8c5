package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evse-dashboard/internal/config"
	"evse-dashboard/internal/httpapi"
	"evse-dashboard/internal/logger"
	"evse-dashboard/internal/service"
	"evse-dashboard/internal/store"
	"evse-dashboard/internal/ui"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting evse-dashboard service")

	// 初始化本地设置存储
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		log.Warn("Redis unavailable, settings will not persist", zap.Error(err))
	}
	pingCancel()

	settings := store.NewSettings(store.NewRedisKV(redisClient))

	// 无头表现层：全部视图动作落结构化日志
	presenter := ui.NewLog(log)

	// 组装并启动仪表盘服务
	dash := service.New(cfg, presenter, settings, log)
	dash.Start()

	// HTTP接口
	handler := httpapi.NewHandler(dash, presenter, log)
	server := httpapi.NewServer(cfg.HTTP.Addr, handler.Routes(), log)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("HTTP server error", zap.Error(err))
	}

	// 停止服务
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping http server", zap.Error(err))
	}
	dash.Stop()

	log.Info("Service stopped")
}
