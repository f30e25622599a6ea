package service

import (
	"strings"

	"telegram-notion-bot/project/dto"
)

// ExtractMentionedUserIDs はリッチテキストランからユーザーメンションを抽出し、
// 初出順を保ったまま重複を除いた Notion ユーザーID一覧を返します
// ユーザー以外のメンション（ページ、日付など）や不正なランはスキップされます
func ExtractMentionedUserIDs(runs []dto.RichText) []string {
	// 重複除去用のmap
	seen := make(map[string]bool)
	var result []string

	for _, run := range runs {
		if run.Mention == nil || run.Mention.Type != "user" {
			continue
		}
		if run.Mention.User == nil || run.Mention.User.ID == "" {
			continue
		}
		userID := run.Mention.User.ID

		// 重複除去（最初に出現した順を保持）
		if !seen[userID] {
			seen[userID] = true
			result = append(result, userID)
		}
	}

	return result
}

// BuildSnippet は全ランの平文を連結し、limit 文字に切り詰めた抜粋を返します
// 文字数単位の切り詰めのため、単語の途中で切れることがあります（仕様上許容）
func BuildSnippet(runs []dto.RichText, limit int) string {
	var b strings.Builder
	for _, run := range runs {
		b.WriteString(run.PlainText)
	}
	text := b.String()

	r := []rune(text)
	if limit > 0 && len(r) > limit {
		return string(r[:limit])
	}
	return text
}
