package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-notion-bot/project/domain"
	"telegram-notion-bot/project/infrastructure/notion"
)

const testDBID = "db-users"

// newTestRepo は疑似 Notion API サーバーとそれを向くリポジトリを作ります
func newTestRepo(t *testing.T, handler http.Handler) *NotionIdentityRepo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cli := notion.NewClient(notion.Options{
		Token:      "test-token",
		BaseURL:    srv.URL,
		MaxRetries: 1,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	})
	return NewNotionIdentityRepo(cli, testDBID)
}

func TestNotionIdentityRepo_ResolveEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/users/user-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "user-1",
			"name":   "太郎",
			"type":   "person",
			"person": map[string]any{"email": "taro@example.com"},
		})
	})
	repo := newTestRepo(t, mux)

	email, err := repo.ResolveEmail(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "taro@example.com", email)
}

func TestNotionIdentityRepo_ResolveEmail_LookupFailureIsNotFound(t *testing.T) {
	// 参照エラーも存在しない場合も区別せず ErrNotFound に丸める
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"code": "object_not_found", "message": "not found"})
	})
	repo := newTestRepo(t, mux)

	_, err := repo.ResolveEmail(context.Background(), "user-x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNotionIdentityRepo_ResolveEmail_BotUserIsNotFound(t *testing.T) {
	// person 情報のない Bot ユーザーはメールを持たない
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/users/bot-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "bot-1", "name": "integration", "type": "bot"})
	})
	repo := newTestRepo(t, mux)

	_, err := repo.ResolveEmail(context.Background(), "bot-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNotionIdentityRepo_FindChatID(t *testing.T) {
	var gotFilter map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/databases/"+testDBID+"/query", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		require.NoError(t, json.Unmarshal(body, &req))
		gotFilter, _ = req["filter"].(map[string]any)

		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{
				map[string]any{
					"id": "rec-1",
					"properties": map[string]any{
						"Telegram Chat ID": map[string]any{"type": "number", "number": 123456789},
					},
				},
			},
		})
	})
	repo := newTestRepo(t, mux)

	chatID, err := repo.FindChatID(context.Background(), "taro@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(123456789), chatID)

	// Email 完全一致 AND Linked=true のフィルタで問い合わせている
	require.NotNil(t, gotFilter)
	and, ok := gotFilter["and"].([]any)
	require.True(t, ok)
	require.Len(t, and, 2)
}

func TestNotionIdentityRepo_FindChatID_NoMatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/databases/"+testDBID+"/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	})
	repo := newTestRepo(t, mux)

	_, err := repo.FindChatID(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNotionIdentityRepo_FindChatID_MissingNumber(t *testing.T) {
	// レコードはあるがチャットID未設定 → 通知先なし扱い
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/databases/"+testDBID+"/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{
				map[string]any{
					"id":         "rec-1",
					"properties": map[string]any{"Telegram Chat ID": map[string]any{"type": "number", "number": nil}},
				},
			},
		})
	})
	repo := newTestRepo(t, mux)

	_, err := repo.FindChatID(context.Background(), "taro@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNotionIdentityRepo_PageSummary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/pages/page-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":  "page-1",
			"url": "https://www.notion.so/Weekly-page1",
			"properties": map[string]any{
				"title": map[string]any{
					"type": "title",
					"title": []any{
						map[string]any{"plain_text": "仕様"},
						map[string]any{"plain_text": "書"},
					},
				},
			},
		})
	})
	repo := newTestRepo(t, mux)

	summary, err := repo.PageSummary(context.Background(), "page-1")
	require.NoError(t, err)
	assert.Equal(t, "仕様書", summary.Title)
	assert.Equal(t, "https://www.notion.so/Weekly-page1", summary.URL)
}

func TestNotionIdentityRepo_PageSummary_Defaults(t *testing.T) {
	// タイトルなし → プレースホルダ、URLなし → ページIDから導出
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/pages/abcd-1234-ef", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "abcd-1234-ef"})
	})
	repo := newTestRepo(t, mux)

	summary, err := repo.PageSummary(context.Background(), "abcd-1234-ef")
	require.NoError(t, err)
	assert.Equal(t, "（無題）", summary.Title)
	assert.Equal(t, "https://www.notion.so/abcd1234ef", summary.URL)
}

func TestNotionIdentityRepo_FindWorkspaceUser_Paginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/users", func(w http.ResponseWriter, r *http.Request) {
		// 1ページ目と2ページ目でレスポンスを変える
		if r.URL.Query().Get("start_cursor") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"results": []any{
					map[string]any{"id": "user-1", "name": "太郎", "person": map[string]any{"email": "taro@example.com"}},
				},
				"has_more":    true,
				"next_cursor": "cursor-2",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{
				map[string]any{"id": "user-2", "name": "花子", "person": map[string]any{"email": "Hanako@Example.com"}},
			},
			"has_more": false,
		})
	})
	repo := newTestRepo(t, mux)

	// 2ページ目のユーザーが大文字小文字を無視して見つかる
	u, err := repo.FindWorkspaceUser(context.Background(), "hanako@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-2", u.ID)
	assert.Equal(t, "花子", u.Name)

	_, err = repo.FindWorkspaceUser(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNotionIdentityRepo_Upsert_CreatesWhenMissing(t *testing.T) {
	var created map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/databases/"+testDBID+"/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": []any{}})
	})
	mux.HandleFunc("POST /v1/pages", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &created))
		json.NewEncoder(w).Encode(map[string]any{"id": "rec-new"})
	})
	repo := newTestRepo(t, mux)

	chatID := int64(100)
	err := repo.Upsert(context.Background(), &domain.LinkedUser{
		NotionUserID:   "user-1",
		Name:           "太郎",
		Email:          "taro@example.com",
		TelegramChatID: &chatID,
		Linked:         true,
	})
	require.NoError(t, err)

	require.NotNil(t, created)
	parent, _ := created["parent"].(map[string]any)
	assert.Equal(t, testDBID, parent["database_id"])

	props, _ := created["properties"].(map[string]any)
	require.NotNil(t, props)
	assert.Contains(t, props, "Name")
	assert.Contains(t, props, "Email")
	assert.Contains(t, props, "Notion user")
	assert.Contains(t, props, "Telegram Chat ID")
	assert.Contains(t, props, "Linked")
}

func TestNotionIdentityRepo_Upsert_UpdatesExisting(t *testing.T) {
	var patched bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/databases/"+testDBID+"/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{map[string]any{"id": "rec-1"}},
		})
	})
	mux.HandleFunc("PATCH /v1/pages/rec-1", func(w http.ResponseWriter, r *http.Request) {
		patched = true
		json.NewEncoder(w).Encode(map[string]any{"id": "rec-1"})
	})
	repo := newTestRepo(t, mux)

	chatID := int64(100)
	err := repo.Upsert(context.Background(), &domain.LinkedUser{
		NotionUserID:   "user-1",
		Email:          "taro@example.com",
		TelegramChatID: &chatID,
		Linked:         true,
	})
	require.NoError(t, err)
	assert.True(t, patched)
}

func TestNotionIdentityRepo_Upsert_ValidationError(t *testing.T) {
	repo := newTestRepo(t, http.NewServeMux())

	err := repo.Upsert(context.Background(), &domain.LinkedUser{Email: "taro@example.com"})
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestNotionIdentityRepo_FindByEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/databases/"+testDBID+"/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": []any{
				map[string]any{
					"id": "rec-1",
					"properties": map[string]any{
						"Email":            map[string]any{"type": "email", "email": "taro@example.com"},
						"Linked":           map[string]any{"type": "checkbox", "checkbox": true},
						"Telegram Chat ID": map[string]any{"type": "number", "number": 100},
						"Notion user": map[string]any{
							"type":   "people",
							"people": []any{map[string]any{"id": "user-1", "name": "太郎"}},
						},
					},
				},
			},
		})
	})
	repo := newTestRepo(t, mux)

	u, err := repo.FindByEmail(context.Background(), "taro@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.NotionUserID)
	assert.Equal(t, "taro@example.com", u.Email)
	assert.True(t, u.Linked)
	require.NotNil(t, u.TelegramChatID)
	assert.Equal(t, int64(100), *u.TelegramChatID)
	assert.True(t, u.CanNotify())
}
