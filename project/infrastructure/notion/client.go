package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Options は Notion API クライアントの設定です
type Options struct {
	Token      string
	BaseURL    string // テスト時に差し替え可能。省略時は本番API
	HTTPClient *http.Client
	APIVersion string
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Client は Notion REST API の薄いHTTPクライアントです
// 429 と 5xx に対しては Retry-After を尊重しつつ指数バックオフで再試行します
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	apiVersion string
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewClient は Notion クライアントを初期化します
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.notion.com"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "2022-06-28"
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Client{
		token:      opts.Token,
		baseURL:    baseURL,
		httpClient: httpClient,
		apiVersion: apiVersion,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// RetrieveUser はワークスペースのユーザーディレクトリからユーザーを1件取得します
func (c *Client) RetrieveUser(ctx context.Context, userID string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/v1/users/"+userID, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers はワークスペースの全ユーザーをページングしながら取得します
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var all []User
	cursor := ""
	for {
		path := "/v1/users?page_size=100"
		if cursor != "" {
			path += "&start_cursor=" + cursor
		}
		var page userList
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)
		if !page.HasMore || page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	return all, nil
}

// QueryDatabase はデータベースをフィルタ付きで検索します
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, filter map[string]any, pageSize int) (*QueryResult, error) {
	body := map[string]any{}
	if filter != nil {
		body["filter"] = filter
	}
	if pageSize > 0 {
		body["page_size"] = pageSize
	}
	var result QueryResult
	if err := c.do(ctx, http.MethodPost, "/v1/databases/"+databaseID+"/query", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RetrievePage はページを1件取得します
func (c *Client) RetrievePage(ctx context.Context, pageID string) (*Page, error) {
	var p Page
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+pageID, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePage は指定データベース配下にページを新規作成します
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties map[string]any) (*Page, error) {
	body := map[string]any{
		"parent":     map[string]any{"database_id": databaseID},
		"properties": properties,
	}
	var p Page
	if err := c.do(ctx, http.MethodPost, "/v1/pages", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePage は既存ページのプロパティを更新します
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]any) error {
	body := map[string]any{"properties": properties}
	return c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, body, nil)
}

// do はリクエスト送信と再試行の共通処理です
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	if c == nil {
		return fmt.Errorf("notion: クライアントがnilです")
	}
	token := strings.TrimSpace(c.token)
	if token == "" {
		return fmt.Errorf("notion: トークンが空です")
	}

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("notion: リクエストJSON化失敗: %w", err)
		}
	}
	url := c.baseURL + path

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if bodyBytes != nil {
			reader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("notion: リクエスト作成失敗: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Notion-Version", c.apiVersion)
		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return fmt.Errorf("notion: リクエスト送信失敗 (%s %s): %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return fmt.Errorf("notion: レスポンス読み込み失敗: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("notion: レスポンスJSONパース失敗: %w", err)
			}
			return nil
		}

		// 429 と 5xx は再試行対象
		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		return newAPIError(resp.StatusCode, respBody)
	}
}

// retryDelay は再試行までの待ち時間を計算します
// Retry-After ヘッダがある場合はそちらを優先します
func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
