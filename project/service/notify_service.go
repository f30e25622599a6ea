package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"telegram-notion-bot/project/domain"
	"telegram-notion-bot/project/dto"
)

// 重複判定キーに使うイベント種別
const (
	dedupKindComment     = "comment"
	dedupKindPageMention = "page_mention"
)

// snippetLimit はコメント抜粋の最大文字数です
const snippetLimit = 200

// NotifyService は受信イベントの振り分けと通知配送を管理するサービスです
type NotifyService interface {
	// OnEvent は検証済みイベント1件を種別ごとのハンドラーへ振り分けます
	// 処理対象外の種別は黙って無視されます
	OnEvent(ctx context.Context, ev dto.Event) error
}

// notifyService は NotifyService の実装です
type notifyService struct {
	id    IdentityPort
	tg    TelegramPort
	dedup *Deduplicator
}

// NewNotifyService は NotifyService のインスタンスを作成します
func NewNotifyService(id IdentityPort, tg TelegramPort, dedup *Deduplicator) NotifyService {
	return &notifyService{
		id:    id,
		tg:    tg,
		dedup: dedup,
	}
}

// ClassifyEvent はイベント種別文字列を分類します
// 上流のイベント分類は固定契約ではないため、厳密なenum照合ではなく
// 部分文字列マッチで軽微なスキーマ変化を許容します
func ClassifyEvent(kind string) EventKind {
	k := strings.ToLower(kind)
	if strings.Contains(k, "comment") {
		return KindCommentMention
	}
	if strings.Contains(k, "page") && strings.Contains(k, "updated") {
		return KindPageUpdateMention
	}
	return KindUnrecognized
}

// OnEvent は分類結果に応じてハンドラーを呼び出します
func (s *notifyService) OnEvent(ctx context.Context, ev dto.Event) error {
	switch ClassifyEvent(ev.Kind()) {
	case KindCommentMention:
		return s.handleCommentMention(ctx, ev)
	case KindPageUpdateMention:
		return s.handlePageUpdateMention(ctx, ev)
	default:
		// 処理対象外の種別は無視
		return nil
	}
}

// handleCommentMention はコメント内メンションを通知へ変換します
func (s *notifyService) handleCommentMention(ctx context.Context, ev dto.Event) error {
	// ペイロード形状のゆらぎに備え、フォールバック連鎖でページIDを解決
	pageID := resolveResourceID(ev, commentResourceExtractors)
	if pageID == "" {
		return nil // ページを特定できないためスキップ
	}

	runs := richTextRuns(ev)
	mentioned := ExtractMentionedUserIDs(runs)
	if len(mentioned) == 0 {
		return nil // メンション対象がないためスキップ
	}

	summary, err := s.id.PageSummary(ctx, pageID)
	if err != nil {
		return fmt.Errorf("OnEvent: ページ概要取得失敗 (page=%s): %w", pageID, err)
	}

	snippet := BuildSnippet(runs, snippetLimit)
	text := formatCommentMessage(summary, snippet)

	return s.notifyMentioned(ctx, pageID, mentioned, dedupKindComment, text)
}

// handlePageUpdateMention はページ更新メンションを通知へ変換します
// ページ更新ペイロードには可読な抜粋が保証されないため、メッセージに抜粋は含めません
func (s *notifyService) handlePageUpdateMention(ctx context.Context, ev dto.Event) error {
	pageID := pageResourceID(ev)
	if pageID == "" {
		return nil
	}

	runs := richTextRuns(ev)
	mentioned := ExtractMentionedUserIDs(runs)
	if len(mentioned) == 0 {
		return nil
	}

	summary, err := s.id.PageSummary(ctx, pageID)
	if err != nil {
		return fmt.Errorf("OnEvent: ページ概要取得失敗 (page=%s): %w", pageID, err)
	}

	text := formatPageMessage(summary)

	return s.notifyMentioned(ctx, pageID, mentioned, dedupKindPageMention, text)
}

// notifyMentioned はメンション対象者ごとに解決→重複判定→配送を行います
// 連携先が見つからない対象者はその人だけスキップし、残りの処理は続行します
func (s *notifyService) notifyMentioned(ctx context.Context, pageID string, mentioned []string, kind, text string) error {
	for _, userID := range mentioned {
		email, err := s.id.ResolveEmail(ctx, userID)
		if err != nil {
			continue // ディレクトリで解決できないユーザーはスキップ
		}

		chatID, err := s.id.FindChatID(ctx, email)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue // 未連携ユーザーはこのメンションだけスキップ
			}
			return fmt.Errorf("OnEvent: 連携先参照失敗 (email=%s): %w", email, err)
		}

		// 時間窓内の重複通知を抑止
		if !s.dedup.Pass(pageID, userID, kind) {
			continue
		}

		if err := s.tg.SendMessage(ctx, chatID, text); err != nil {
			return fmt.Errorf("OnEvent: 通知送信失敗 (chat=%d): %w", chatID, err)
		}
	}
	return nil
}

// resourceIDExtractor はイベントからページIDを取り出す試行関数です
type resourceIDExtractor func(ev dto.Event) string

// commentResourceExtractors はコメントイベントのページID解決順です
// 直接の親参照 → コンテキスト参照 → ディスカッション親参照 の順に試し、最初の成功を採用します
var commentResourceExtractors = []resourceIDExtractor{
	parentPageID,
	contextPageID,
	discussionParentID,
}

// resolveResourceID は抽出関数を順に試し、最初に得られたページIDを返します
func resolveResourceID(ev dto.Event, extractors []resourceIDExtractor) string {
	for _, extract := range extractors {
		if id := extract(ev); id != "" {
			return id
		}
	}
	return ""
}

// parentPageID は data.parent からページIDを取り出します
func parentPageID(ev dto.Event) string {
	data := ev.Data()
	if data == nil {
		return ""
	}
	parent, ok := data["parent"].(map[string]any)
	if !ok {
		return ""
	}
	if t, ok := parent["type"].(string); ok && t != "" && !strings.HasPrefix(t, "page") {
		return "" // ページ以外（データベース直下コメントなど）は対象外
	}
	if id, ok := parent["page_id"].(string); ok && id != "" {
		return id
	}
	if id, ok := parent["id"].(string); ok {
		return id
	}
	return ""
}

// contextPageID は data.page_id からページIDを取り出します
func contextPageID(ev dto.Event) string {
	data := ev.Data()
	if data == nil {
		return ""
	}
	if id, ok := data["page_id"].(string); ok {
		return id
	}
	return ""
}

// discussionParentID は data.discussion.parent.id からページIDを取り出します
func discussionParentID(ev dto.Event) string {
	data := ev.Data()
	if data == nil {
		return ""
	}
	discussion, ok := data["discussion"].(map[string]any)
	if !ok {
		return ""
	}
	if id, ok := discussion["parent_id"].(string); ok && id != "" {
		return id
	}
	parent, ok := discussion["parent"].(map[string]any)
	if !ok {
		return ""
	}
	if id, ok := parent["id"].(string); ok {
		return id
	}
	return ""
}

// pageResourceID はページ更新イベントからページIDを取り出します
// コメントと違いフォールバック連鎖はなく、直接のフィールドのみを見ます
func pageResourceID(ev dto.Event) string {
	if data := ev.Data(); data != nil {
		if id, ok := data["page_id"].(string); ok && id != "" {
			return id
		}
	}
	if entity, ok := ev["entity"].(map[string]any); ok {
		if id, ok := entity["id"].(string); ok {
			return id
		}
	}
	return ""
}

// richTextRuns はイベントからリッチテキストランを取り出します
// data.rich_text を優先し、トップレベルの rich_text も受け付けます
func richTextRuns(ev dto.Event) []dto.RichText {
	if data := ev.Data(); data != nil {
		if runs := dto.ParseRichText(data["rich_text"]); runs != nil {
			return runs
		}
	}
	return dto.ParseRichText(ev["rich_text"])
}

// formatCommentMessage はコメントメンション通知のHTML本文を組み立てます
func formatCommentMessage(summary *PageSummary, snippet string) string {
	var b strings.Builder
	b.WriteString("💬 <b>コメントであなたがメンションされました</b>\n")
	b.WriteString(fmt.Sprintf("<a href=%q>%s</a>", summary.URL, html.EscapeString(summary.Title)))
	if snippet != "" {
		b.WriteString("\n\n")
		b.WriteString(html.EscapeString(snippet))
	}
	return b.String()
}

// formatPageMessage はページ更新メンション通知のHTML本文を組み立てます
func formatPageMessage(summary *PageSummary) string {
	return fmt.Sprintf("📄 <b>ページ更新であなたがメンションされました</b>\n<a href=%q>%s</a>",
		summary.URL, html.EscapeString(summary.Title))
}
