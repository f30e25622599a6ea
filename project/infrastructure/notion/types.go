package notion

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// User は Notion ワークスペースのユーザーです
type User struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Type   string  `json:"type,omitempty"` // "person" or "bot"
	Person *Person `json:"person,omitempty"`
}

// Email はユーザーのメールアドレスを返します（person 情報がない場合は空文字）
func (u User) Email() string {
	if u.Person == nil {
		return ""
	}
	return u.Person.Email
}

// Person は人間ユーザー固有の情報です
type Person struct {
	Email string `json:"email,omitempty"`
}

// userList は GET /v1/users のレスポンスです
type userList struct {
	Results    []User `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Page はデータベースレコードまたは通常ページです
type Page struct {
	ID         string                   `json:"id"`
	URL        string                   `json:"url,omitempty"`
	Properties map[string]PropertyValue `json:"properties,omitempty"`
}

// TitleText はページの title 型プロパティの平文を連結して返します
func (p Page) TitleText() string {
	for _, prop := range p.Properties {
		if prop.Type != "title" {
			continue
		}
		var b strings.Builder
		for _, rt := range prop.Title {
			b.WriteString(rt.PlainText)
		}
		return b.String()
	}
	return ""
}

// PropertyValue はページプロパティの値です
// 本プロジェクトで使う型（title / email / number / checkbox / people）だけを持ちます
type PropertyValue struct {
	ID       string         `json:"id,omitempty"`
	Type     string         `json:"type,omitempty"`
	Title    []RichTextItem `json:"title,omitempty"`
	Email    *string        `json:"email,omitempty"`
	Number   *float64       `json:"number,omitempty"`
	Checkbox *bool          `json:"checkbox,omitempty"`
	People   []User         `json:"people,omitempty"`
}

// RichTextItem はプロパティ内のリッチテキスト要素です
type RichTextItem struct {
	PlainText string `json:"plain_text,omitempty"`
}

// QueryResult は POST /v1/databases/{id}/query のレスポンスです
type QueryResult struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// APIError は Notion API のエラーレスポンスです
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("notion: APIエラー (status=%d, code=%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("notion: APIエラー (status=%d): %s", e.StatusCode, e.Message)
}

// IsNotFound は対象リソースが存在しないエラーかどうかを判定します
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == "object_not_found"
}

// newAPIError はエラーレスポンスボディから APIError を組み立てます
func newAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{
		StatusCode: statusCode,
		Message:    strings.TrimSpace(string(body)),
	}
	var parsed struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Code != "" {
			apiErr.Code = parsed.Code
		}
		if strings.TrimSpace(parsed.Message) != "" {
			apiErr.Message = strings.TrimSpace(parsed.Message)
		}
	}
	return apiErr
}
