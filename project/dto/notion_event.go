package dto

import "encoding/json"

// WebhookEnvelope は Notion Webhook リクエスト全体を表します
// ハンドシェイク時は Challenge のみ、通常配送時は単一イベントまたは events 配列が入ります
type WebhookEnvelope struct {
	Challenge         string            `json:"challenge,omitempty"`          // エンドポイント検証時のみ
	VerificationToken string            `json:"verification_token,omitempty"` // 初回検証トークン（ボディに入る場合）
	Type              string            `json:"type,omitempty"`               // "comment.created" など
	Events            []json.RawMessage `json:"events,omitempty"`
}

// Event は Notion から届く個別イベントです
// 上流のイベントスキーマは固定契約ではないため、構造体に縛らず汎用マップとして扱い、
// 必要なフィールドだけを許容的に読み取ります
type Event map[string]any

// Kind はイベント種別文字列（"comment.created" など）を返します
func (e Event) Kind() string {
	if v, ok := e["type"].(string); ok {
		return v
	}
	return ""
}

// Data はイベントペイロードの data フィールドを返します
func (e Event) Data() map[string]any {
	if v, ok := e["data"].(map[string]any); ok {
		return v
	}
	return nil
}

// ParseEvents はリクエストボディをイベント一覧に正規化します
// events 配列・単一イベントの両形式を受け付け、JSONとして解釈できないボディは
// エラーではなく空のイベント集合として扱います
func ParseEvents(body []byte) []Event {
	var env struct {
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal(body, &env); err == nil && len(env.Events) > 0 {
		return env.Events
	}

	var single Event
	if err := json.Unmarshal(body, &single); err == nil && len(single) > 0 {
		return []Event{single}
	}

	return nil
}

// RichText はリッチテキストの1ラン（テキスト断片）を表します
type RichText struct {
	Type      string   `json:"type,omitempty"`
	PlainText string   `json:"plain_text,omitempty"`
	Mention   *Mention `json:"mention,omitempty"`
}

// Mention はラン内に埋め込まれたメンション注釈です
type Mention struct {
	Type string       `json:"type"` // "user", "page", "date" など
	User *MentionUser `json:"user,omitempty"`
}

// MentionUser はユーザーメンションの対象を表します
type MentionUser struct {
	ID string `json:"id"`
}

// ParseRichText は汎用値（イベントマップから取り出した配列）をリッチテキストランに変換します
// 変換できない値や不正なランは黙ってスキップされます
func ParseRichText(v any) []RichText {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var runs []RichText
	if err := json.Unmarshal(raw, &runs); err != nil {
		return nil
	}
	return runs
}
