// cmd/auth-server/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"snapgram/internal/modules/auth"
	"snapgram/internal/pkg/config"
	"snapgram/internal/pkg/log"
)

func main() {
	cfg := config.Load()
	log.Init(log.ParseLevel(cfg.LogLevel), cfg.Environment)
	log.GetLogger().Info("启动 Auth Server...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := auth.New(ctx, cfg, log.GetLogger())
	if err != nil {
		log.GetLogger().Error("初始化 Auth Module 失败", err)
		os.Exit(1)
	}
	defer m.Close()

	if err := m.Run(ctx); err != nil {
		log.GetLogger().Error("Auth Server 异常退出", err)
		stop()
		m.Close()
		os.Exit(1)
	}
	log.GetLogger().Info("Auth Server 已停止")
}
