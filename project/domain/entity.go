package domain

import (
	"fmt"
	"strings"
)

// Notion の識別子と Telegram チャットの連携レコード。
// Notion 側の Bot Users データベースに保存され、オンボーディング会話からのみ書き込まれます
type LinkedUser struct {
	// NotionUserID は Notion ワークスペース内のユーザーID
	NotionUserID string

	// Name は表示名（取得できない場合はメールアドレスで代用）
	Name string

	// Email はワークスペース内で一意のメールアドレス
	Email string

	// TelegramChatID は通知先の Telegram チャットID。
	// nilの場合はチャット未設定を表します
	TelegramChatID *int64

	// Linked は連携が完了しているかどうか。
	// false のレコードは通知対象になりません
	Linked bool
}

// CanNotify は通知を送れる状態（連携済みかつチャットID設定済み）かどうかを返します
func (u LinkedUser) CanNotify() bool {
	return u.Linked && u.TelegramChatID != nil
}

// Validate はLinkedUserの必須項目を検証します
func (u LinkedUser) Validate() error {
	if strings.TrimSpace(u.NotionUserID) == "" {
		return fmt.Errorf("%w: NotionUserIDは必須項目です", ErrInvalid)
	}
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: Emailは必須項目です", ErrInvalid)
	}
	return nil
}
