package service

import "context"

// TelegramPort は Telegram Bot API 呼び出しのポートです
type TelegramPort interface {
	// SendMessage は指定チャットへHTML整形済みメッセージを送信します
	// リンクプレビューは有効のまま送信されます。再試行は行いません
	SendMessage(ctx context.Context, chatID int64, html string) error
}

// IdentityPort は Notion 上の識別子解決と連携先参照のポートです
type IdentityPort interface {
	// ResolveEmail は Notion ユーザーIDからメールアドレスを解決します
	// ユーザーが存在しない場合も参照に失敗した場合も domain.ErrNotFound を返します
	ResolveEmail(ctx context.Context, notionUserID string) (string, error)

	// FindChatID はメールアドレスから連携済み（Linked=true）の Telegram チャットIDを引きます
	// 該当レコードがない、またはチャットID未設定の場合は domain.ErrNotFound を返します
	FindChatID(ctx context.Context, email string) (int64, error)

	// PageSummary は通知メッセージ用のページ概要（タイトルとURL）を取得します
	PageSummary(ctx context.Context, pageID string) (*PageSummary, error)
}

// DirectoryPort はワークスペースのユーザーディレクトリ検索のポートです（オンボーディング用）
type DirectoryPort interface {
	// FindWorkspaceUser はメールアドレスが一致するワークスペースユーザーを探します
	// 大文字小文字は区別しません。見つからない場合は domain.ErrNotFound を返します
	FindWorkspaceUser(ctx context.Context, email string) (*WorkspaceUser, error)
}
