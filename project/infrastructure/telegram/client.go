package telegram

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sendTimeout は Telegram API 呼び出しの上限時間です
// タイムアウトは配送失敗として扱われます
const sendTimeout = 10 * time.Second

// Client は service.TelegramPort の Telegram Bot API 実装です
type Client struct {
	bot *tgbotapi.BotAPI
}

// NewClient は Telegram クライアントを初期化します
// トークンの有効性は初期化時の getMe 呼び出しで確認されます
func NewClient(token string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{
		Timeout: sendTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: クライアント初期化失敗: %w", err)
	}
	return &Client{bot: bot}, nil
}

// SendMessage は指定チャットへHTML整形済みメッセージを送信します
// リンクプレビューは有効のままにします。送信エラーは呼び出し側へそのまま返します
func (c *Client) SendMessage(ctx context.Context, chatID int64, html string) error {
	// 早期キャンセル確認（tgbotapi は ctx を受けないため、タイムアウトはHTTPクライアント側で保証）
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, html)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = false

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: メッセージ送信失敗 (chat=%d): %w", chatID, err)
	}
	return nil
}

// API は下位の Bot API ハンドルを返します（ポーリングループ用）
func (c *Client) API() *tgbotapi.BotAPI {
	return c.bot
}
