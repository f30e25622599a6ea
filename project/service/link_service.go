package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"telegram-notion-bot/project/domain"
)

// emailRe はメールアドレスの簡易検証パターンです
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// LinkService は Telegram チャットと Notion 識別子の連携会話を管理するサービスです
// 各メソッドはユーザーへ返信するテキストを返します
type LinkService interface {
	// Start は /start コマンドで会話を開始し、メールアドレスの入力を促します
	Start(chatID int64) string

	// Cancel は /cancel コマンドで進行中の会話を破棄します
	Cancel(chatID int64) string

	// OnText はコマンド以外のテキスト入力を処理します
	// メール入力待ちであれば連携処理を行い、それ以外はテキストをそのまま返します
	OnText(ctx context.Context, chatID int64, text string) string
}

// linkService は LinkService の実装です
// 会話状態（メール入力待ちのチャット集合）はプロセス内メモリにのみ保持します
type linkService struct {
	mu       sync.Mutex
	awaiting map[int64]bool

	dir  DirectoryPort
	repo domain.LinkedUserRepository
}

// NewLinkService は LinkService のインスタンスを作成します
func NewLinkService(dir DirectoryPort, repo domain.LinkedUserRepository) LinkService {
	return &linkService{
		awaiting: make(map[int64]bool),
		dir:      dir,
		repo:     repo,
	}
}

// Start は会話を開始します
func (ls *linkService) Start(chatID int64) string {
	ls.mu.Lock()
	ls.awaiting[chatID] = true
	ls.mu.Unlock()

	return "こんにちは！Notion の仕事用メールアドレスを送ってください。Bot と連携します。"
}

// Cancel は会話を破棄します
func (ls *linkService) Cancel(chatID int64) string {
	ls.mu.Lock()
	delete(ls.awaiting, chatID)
	ls.mu.Unlock()

	return "キャンセルしました。"
}

// OnText はテキスト入力を処理します
func (ls *linkService) OnText(ctx context.Context, chatID int64, text string) string {
	ls.mu.Lock()
	waiting := ls.awaiting[chatID]
	ls.mu.Unlock()

	if !waiting {
		// 会話外の入力はそのまま返す
		return text
	}

	email := strings.TrimSpace(text)
	if !emailRe.MatchString(email) {
		return "メールアドレスの形式ではないようです。もう一度入力するか /cancel してください。"
	}

	// ワークスペースディレクトリで本人確認
	u, err := ls.dir.FindWorkspaceUser(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "Notion でそのユーザーが見つかりませんでした。メールアドレスかワークスペースへのアクセス権を確認してください。"
		}
		fmt.Printf("連携処理エラー: ディレクトリ検索失敗 (chat=%d): %v\n", chatID, err)
		return "Notion への問い合わせに失敗しました。しばらくしてからもう一度お試しください。"
	}

	name := u.Name
	if name == "" {
		name = email
	}
	linked := &domain.LinkedUser{
		NotionUserID:   u.ID,
		Name:           name,
		Email:          email,
		TelegramChatID: &chatID,
		Linked:         true,
	}
	if err := ls.repo.Upsert(ctx, linked); err != nil {
		fmt.Printf("連携処理エラー: レコード保存失敗 (chat=%d): %v\n", chatID, err)
		return "連携レコードの保存に失敗しました。しばらくしてからもう一度お試しください。"
	}

	// 会話終了
	ls.mu.Lock()
	delete(ls.awaiting, chatID)
	ls.mu.Unlock()

	return "連携が完了しました！✅ これから Notion のメンションがここに届きます。"
}
