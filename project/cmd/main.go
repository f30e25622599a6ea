package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"telegram-notion-bot/project/handler"
	"telegram-notion-bot/project/infrastructure/config"
	"telegram-notion-bot/project/infrastructure/notion"
	"telegram-notion-bot/project/infrastructure/secret"
	"telegram-notion-bot/project/infrastructure/store"
	"telegram-notion-bot/project/infrastructure/telegram"
	"telegram-notion-bot/project/service"
)

func main() {
	ctx := context.Background()

	// 1. 設定を読み込む
	cfg, err := config.NewConfig(ctx)
	if err != nil {
		log.Fatalf("設定読み込み失敗: %v", err)
	}

	// 2. 依存関係を初期化
	// Secret Manager（GCP 上で動かす場合のみ。検証トークンの控えに使う）
	var secretMgr *secret.Manager
	if cfg.GcpProject != "" {
		secretMgr, err = secret.NewManager(ctx, cfg.GcpProject)
		if err != nil {
			log.Fatalf("Secret Manager 初期化失敗: %v", err)
		}
		defer secretMgr.Close()
	}

	// Notion API クライアントと連携レコードリポジトリ
	notionCli := notion.NewClient(notion.Options{Token: cfg.NotionToken})
	repo := store.NewNotionIdentityRepo(notionCli, cfg.BotUsersDBID)

	// Telegram API ポート実装
	tgClient, err := telegram.NewClient(cfg.TelegramBotToken)
	if err != nil {
		log.Fatalf("Telegram クライアント初期化失敗: %v", err)
	}

	// 3. サービス層を初期化
	dedup := service.NewDeduplicator(service.DefaultDedupWindow, nil)
	notifyService := service.NewNotifyService(repo, tgClient, dedup)
	linkService := service.NewLinkService(repo, repo)

	// 4. オンボーディング Bot をバックグラウンドで起動
	bot := telegram.NewBot(tgClient, linkService)
	go func() {
		if err := bot.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Bot 停止: %v", err)
		}
	}()

	// 5. HTTP ハンドラーを設定
	mux := http.NewServeMux()

	// Notion イベント受信
	var secretWriter handler.SecretWriter
	if secretMgr != nil {
		secretWriter = secretMgr
	}
	mux.Handle("/webhook", handler.NewWebhookHandler(cfg.WebhookSecret, notifyService, secretWriter))

	// 死活監視
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// 6. サーバー起動
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("サーバー起動: %s", addr)

	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Fatalf("サーバーエラー: %v", err)
	}
}
