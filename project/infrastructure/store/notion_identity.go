package store

import (
	"context"
	"fmt"
	"strings"

	"telegram-notion-bot/project/domain"
	"telegram-notion-bot/project/infrastructure/notion"
	"telegram-notion-bot/project/service"
)

// Bot Users データベースのプロパティ名
const (
	propName       = "Name"
	propEmail      = "Email"
	propNotionUser = "Notion user"
	propChatID     = "Telegram Chat ID"
	propLinked     = "Linked"
)

// untitledPlaceholder はタイトルが取得できないページの代替表示です
const untitledPlaceholder = "（無題）"

// NotionIdentityRepo は domain.LinkedUserRepository と service.IdentityPort /
// service.DirectoryPort の Notion 実装です
// 連携レコードは Notion 側の Bot Users データベースに置かれ、ワークスペースの
// ユーザーディレクトリとページ取得も同じ API 経由で行います
type NotionIdentityRepo struct {
	cli       *notion.Client
	usersDBID string
}

// NewNotionIdentityRepo は Notion リポジトリを初期化します
func NewNotionIdentityRepo(cli *notion.Client, usersDBID string) *NotionIdentityRepo {
	return &NotionIdentityRepo{
		cli:       cli,
		usersDBID: usersDBID,
	}
}

// ===== service.IdentityPort 実装 =====

// ResolveEmail は Notion ユーザーIDからメールアドレスを解決します
// 存在しない場合も参照に失敗した場合も domain.ErrNotFound を返します
// （通知パイプラインでは個別メンションのスキップ理由にしかならないため）
func (repo *NotionIdentityRepo) ResolveEmail(ctx context.Context, notionUserID string) (string, error) {
	u, err := repo.cli.RetrieveUser(ctx, notionUserID)
	if err != nil {
		fmt.Printf("identity: ユーザー解決失敗 (user=%s): %v\n", notionUserID, err)
		return "", domain.ErrNotFound
	}
	email := u.Email()
	if email == "" {
		return "", domain.ErrNotFound
	}
	return email, nil
}

// FindChatID はメールアドレスから連携済みの Telegram チャットIDを引きます
func (repo *NotionIdentityRepo) FindChatID(ctx context.Context, email string) (int64, error) {
	// Email 完全一致かつ Linked=true のレコードのみを対象にする
	filter := map[string]any{
		"and": []any{
			map[string]any{
				"property": propEmail,
				"email":    map[string]any{"equals": email},
			},
			map[string]any{
				"property": propLinked,
				"checkbox": map[string]any{"equals": true},
			},
		},
	}

	result, err := repo.cli.QueryDatabase(ctx, repo.usersDBID, filter, 1)
	if err != nil {
		return 0, fmt.Errorf("store: 連携レコード検索失敗 (email=%s): %w", email, err)
	}
	if len(result.Results) == 0 {
		return 0, domain.ErrNotFound
	}

	prop, ok := result.Results[0].Properties[propChatID]
	if !ok || prop.Number == nil {
		return 0, domain.ErrNotFound
	}
	return int64(*prop.Number), nil
}

// PageSummary は通知メッセージ用のページ概要を取得します
// タイトルが空の場合はプレースホルダ、URLが空の場合はページIDから導出します
func (repo *NotionIdentityRepo) PageSummary(ctx context.Context, pageID string) (*service.PageSummary, error) {
	p, err := repo.cli.RetrievePage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("store: ページ取得失敗 (page=%s): %w", pageID, err)
	}

	title := strings.TrimSpace(p.TitleText())
	if title == "" {
		title = untitledPlaceholder
	}
	url := p.URL
	if url == "" {
		url = pageURLFromID(pageID)
	}

	return &service.PageSummary{Title: title, URL: url}, nil
}

// pageURLFromID はページIDから標準のページURLを導出します
func pageURLFromID(pageID string) string {
	return "https://www.notion.so/" + strings.ReplaceAll(pageID, "-", "")
}

// ===== service.DirectoryPort 実装 =====

// FindWorkspaceUser はワークスペースの全ユーザーからメールアドレス一致で検索します
// 比較は大文字小文字を区別しません
func (repo *NotionIdentityRepo) FindWorkspaceUser(ctx context.Context, email string) (*service.WorkspaceUser, error) {
	users, err := repo.cli.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: ユーザー一覧取得失敗: %w", err)
	}

	for _, u := range users {
		if strings.EqualFold(u.Email(), email) {
			return &service.WorkspaceUser{
				ID:    u.ID,
				Name:  u.Name,
				Email: u.Email(),
			}, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ===== domain.LinkedUserRepository 実装 =====

// FindByEmail はメールアドレスが一致する連携レコードを取得します
// Linked の値にかかわらず最初の一致を返します（アクティブなレコードは高々1件の前提）
func (repo *NotionIdentityRepo) FindByEmail(ctx context.Context, email string) (*domain.LinkedUser, error) {
	filter := map[string]any{
		"property": propEmail,
		"email":    map[string]any{"equals": email},
	}

	result, err := repo.cli.QueryDatabase(ctx, repo.usersDBID, filter, 1)
	if err != nil {
		return nil, fmt.Errorf("store: 連携レコード検索失敗 (email=%s): %w", email, err)
	}
	if len(result.Results) == 0 {
		return nil, domain.ErrNotFound
	}

	return linkedUserFromPage(result.Results[0], email), nil
}

// Upsert は連携レコードを保存します
// 同一メールの既存レコードがあれば更新、なければ新規作成します
func (repo *NotionIdentityRepo) Upsert(ctx context.Context, u *domain.LinkedUser) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("store: Upsert検証失敗: %w", err)
	}

	props := linkedUserProperties(u)

	// 既存レコード検索（Email 完全一致）
	filter := map[string]any{
		"property": propEmail,
		"email":    map[string]any{"equals": u.Email},
	}
	result, err := repo.cli.QueryDatabase(ctx, repo.usersDBID, filter, 1)
	if err != nil {
		return fmt.Errorf("store: 既存レコード検索失敗 (email=%s): %w", u.Email, err)
	}

	if len(result.Results) > 0 {
		pageID := result.Results[0].ID
		if err := repo.cli.UpdatePage(ctx, pageID, props); err != nil {
			return fmt.Errorf("store: 連携レコード更新失敗 (page=%s): %w", pageID, err)
		}
		return nil
	}

	if _, err := repo.cli.CreatePage(ctx, repo.usersDBID, props); err != nil {
		return fmt.Errorf("store: 連携レコード作成失敗 (email=%s): %w", u.Email, err)
	}
	return nil
}

// linkedUserProperties は LinkedUser を Notion のプロパティ表現へ変換します
func linkedUserProperties(u *domain.LinkedUser) map[string]any {
	name := u.Name
	if name == "" {
		name = u.Email
	}

	props := map[string]any{
		propName: map[string]any{
			"title": []any{
				map[string]any{"text": map[string]any{"content": name}},
			},
		},
		propEmail: map[string]any{"email": u.Email},
		propNotionUser: map[string]any{
			"people": []any{
				map[string]any{"id": u.NotionUserID},
			},
		},
		propLinked: map[string]any{"checkbox": u.Linked},
	}
	if u.TelegramChatID != nil {
		props[propChatID] = map[string]any{"number": *u.TelegramChatID}
	}
	return props
}

// linkedUserFromPage はデータベースレコードを LinkedUser へ変換します
func linkedUserFromPage(p notion.Page, fallbackEmail string) *domain.LinkedUser {
	u := &domain.LinkedUser{Email: fallbackEmail}

	if prop, ok := p.Properties[propEmail]; ok && prop.Email != nil && *prop.Email != "" {
		u.Email = *prop.Email
	}
	if prop, ok := p.Properties[propLinked]; ok && prop.Checkbox != nil {
		u.Linked = *prop.Checkbox
	}
	if prop, ok := p.Properties[propChatID]; ok && prop.Number != nil {
		chatID := int64(*prop.Number)
		u.TelegramChatID = &chatID
	}
	if prop, ok := p.Properties[propNotionUser]; ok && len(prop.People) > 0 {
		u.NotionUserID = prop.People[0].ID
		u.Name = prop.People[0].Name
	}
	return u
}
