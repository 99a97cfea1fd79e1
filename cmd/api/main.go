package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/sngm3741/form-intake/api/internal/config"
	"github.com/sngm3741/form-intake/api/internal/server"
	"github.com/sngm3741/form-intake/api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("設定が不正です: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel).With(slog.String("service", "form-intake-api"))
	appLogger.Info("loaded config",
		slog.String("addr", cfg.Addr),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("email_config", cfg.EmailConfig),
		slog.Bool("bot_check", cfg.TurnstileSecret != ""),
		slog.String("staging_host", cfg.StagingHost()),
	)

	store, err := server.OpenStore(context.Background(), cfg.Store)
	if err != nil {
		log.Fatalf("KV ストア接続に失敗しました: %v", err)
	}

	app := server.New(cfg, store, appLogger, server.Dependencies{})
	if err := app.Run(); err != nil {
		log.Fatalf("サーバー起動に失敗: %v", err)
	}
}
