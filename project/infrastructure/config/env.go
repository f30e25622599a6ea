package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"telegram-notion-bot/project/domain"
	"telegram-notion-bot/project/infrastructure/httpsec"
	"telegram-notion-bot/project/infrastructure/secret"
)

// Secret Manager 上のシークレット名（GCP_PROJECT 設定時のみ参照）
const (
	secretTelegramToken = "telegram-bot-token"
	secretNotionToken   = "notion-token"
	secretWebhookSecret = "notion-webhook-secret"
)

// Config は環境変数から読み込まれるアプリケーション設定を表します
type Config struct {
	// 基本設定
	Port       string
	GcpProject string // 空でない場合は Secret Manager からシークレットを解決

	// Telegram API設定
	TelegramBotToken string // Secret Manager または環境変数から読み込み

	// Notion API設定
	NotionToken  string // Secret Manager または環境変数から読み込み
	BotUsersDBID string // 連携レコードを保存するデータベースID

	// Webhook署名設定
	WebhookSecret           string
	AllowUnverifiedWebhooks bool // 明示的に有効化した場合のみ署名なし受信を許可
}

// NewConfig は環境変数（と .env）から設定を読み込み、Config構造体を返します
// センシティブな情報は GCP_PROJECT が設定されている場合 Secret Manager から取得します
// 必須値が欠けている場合は起動を失敗させます
func NewConfig(ctx context.Context) (*Config, error) {
	// .env があれば読み込む（なくてもエラーにしない）
	_ = godotenv.Load()

	cfg := &Config{
		Port:       getEnvDefault("PORT", "3000"),
		GcpProject: os.Getenv("GCP_PROJECT"),
	}

	if cfg.GcpProject != "" {
		mgr, err := secret.NewManager(ctx, cfg.GcpProject)
		if err != nil {
			return nil, fmt.Errorf("設定: Secret Manager 初期化失敗: %w", err)
		}
		defer mgr.Close()

		cfg.TelegramBotToken, err = secretOrEnv(ctx, mgr, secretTelegramToken, "TELEGRAM_BOT_TOKEN")
		if err != nil {
			return nil, err
		}
		cfg.NotionToken, err = secretOrEnv(ctx, mgr, secretNotionToken, "NOTION_TOKEN")
		if err != nil {
			return nil, err
		}
		cfg.WebhookSecret, err = secretOrEnv(ctx, mgr, secretWebhookSecret, "NOTION_WEBHOOK_SECRET")
		if err != nil && !errors.Is(err, errMissing) {
			return nil, err
		}
	} else {
		cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
		cfg.NotionToken = os.Getenv("NOTION_TOKEN")
		cfg.WebhookSecret = os.Getenv("NOTION_WEBHOOK_SECRET")
	}

	cfg.BotUsersDBID = os.Getenv("BOT_USERS_DB_ID")
	cfg.AllowUnverifiedWebhooks = os.Getenv("ALLOW_UNVERIFIED_WEBHOOKS") == "true"

	// 必須値の検証（フェイルファスト）
	if cfg.TelegramBotToken == "" {
		return nil, fmt.Errorf("設定: TELEGRAM_BOT_TOKEN が設定されていません")
	}
	if cfg.NotionToken == "" {
		return nil, fmt.Errorf("設定: NOTION_TOKEN が設定されていません")
	}
	if cfg.BotUsersDBID == "" {
		return nil, fmt.Errorf("設定: BOT_USERS_DB_ID が設定されていません")
	}

	// 署名シークレットは必須。空のまま起動できるのは明示的な許可がある場合のみ
	if cfg.WebhookSecret == "" && !cfg.AllowUnverifiedWebhooks {
		return nil, fmt.Errorf("設定: NOTION_WEBHOOK_SECRET が設定されていません（ALLOW_UNVERIFIED_WEBHOOKS=true で明示的にバイパス可能）")
	}
	if cfg.WebhookSecret == "" {
		log.Printf("警告: Webhook署名検証が無効化されています（ALLOW_UNVERIFIED_WEBHOOKS=true）")
	}
	if cfg.WebhookSecret == httpsec.BootstrapSecret {
		log.Printf("警告: Webhook署名シークレットがブートストラップ値のままです。検証トークン取得後に差し替えてください")
	}

	return cfg, nil
}

// errMissing はシークレットにも環境変数にも値がないことを表します
var errMissing = errors.New("設定: 値が見つかりません")

// secretOrEnv は Secret Manager のシークレットを優先し、未登録の場合は環境変数へ
// フォールバックして値を取得します
func secretOrEnv(ctx context.Context, mgr *secret.Manager, secretName, envKey string) (string, error) {
	value, err := mgr.GetSecret(ctx, secretName)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("設定: %s 取得失敗: %w", envKey, err)
	}
	if v := os.Getenv(envKey); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w (secret=%s, env=%s)", errMissing, secretName, envKey)
}

// getEnvDefault は環境変数を取得し、未設定の場合はデフォルト値を返します
func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
