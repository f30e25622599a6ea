package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-notion-bot/project/service"
)

// Bot はオンボーディング会話を担当するロングポーリングループです
// Webhook パイプラインとは独立したサイドチャネルで、連携レコードの書き込み側になります
type Bot struct {
	api  *tgbotapi.BotAPI
	link service.LinkService
}

// NewBot はオンボーディング Bot を作成します
func NewBot(client *Client, link service.LinkService) *Bot {
	return &Bot{
		api:  client.API(),
		link: link,
	}
}

// Run は getUpdates のロングポーリングを開始し、ctx のキャンセルまでブロックします
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)
	log.Printf("Bot 起動: オンボーディング会話の受付を開始します")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate は1件の更新を処理して返信します
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Chat == nil {
		return
	}
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	var reply string
	switch {
	case text == "/start":
		reply = b.link.Start(chatID)
	case text == "/cancel":
		reply = b.link.Cancel(chatID)
	default:
		reply = b.link.OnText(ctx, chatID, text)
	}
	if reply == "" {
		return
	}

	msg := tgbotapi.NewMessage(chatID, reply)
	if _, err := b.api.Send(msg); err != nil {
		fmt.Printf("Bot 返信エラー (chat=%d): %v\n", chatID, err)
	}
}
