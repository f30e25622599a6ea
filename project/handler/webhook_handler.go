package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"telegram-notion-bot/project/dto"
	"telegram-notion-bot/project/infrastructure/httpsec"
	"telegram-notion-bot/project/service"
)

// Notion が送るヘッダ名
const (
	headerSignature         = "X-Notion-Signature"
	headerVerificationToken = "X-Notion-Verification-Token"
)

// verificationTokenSecretName はハンドシェイクで受け取った検証トークンの控え先です
const verificationTokenSecretName = "notion-verification-token"

// SecretWriter はハンドシェイク時の検証トークンを控えておく書き込み先です（任意）
type SecretWriter interface {
	PutSecret(ctx context.Context, secretName, secretValue string) error
}

// WebhookHandler は Notion Webhook からのイベントを処理します
type WebhookHandler struct {
	secret        string
	notifyService service.NotifyService
	secrets       SecretWriter // nil 可
}

// NewWebhookHandler は Webhook ハンドラーを作成します
func NewWebhookHandler(secret string, notifyService service.NotifyService, secrets SecretWriter) *WebhookHandler {
	return &WebhookHandler{
		secret:        secret,
		notifyService: notifyService,
		secrets:       secrets,
	}
}

// ServeHTTP は Notion イベント受信エンドポイントです
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// リクエスト本体を読み込む
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "リクエスト本体の読み込み失敗", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// ログ相関用のリクエストID
	reqID := uuid.NewString()

	// まずハンドシェイク（challenge）かどうかを確認（署名検証の前に）
	// 検証リクエストは署名なしで届く設計のため、署名チェックをスキップする
	var pre dto.WebhookEnvelope
	if err := json.Unmarshal(body, &pre); err == nil && pre.Challenge != "" {
		h.logHandshake(r, &pre, reqID)
		writeJSON(w, http.StatusOK, map[string]string{"challenge": pre.Challenge})
		return
	}

	// 署名検証（ハンドシェイク以外のリクエスト）
	signature := r.Header.Get(headerSignature)
	if err := httpsec.VerifyNotionSignature(h.secret, signature, body); err != nil {
		log.Printf("[%s] 署名検証失敗: %v", reqID, err)
		writeJSON(w, http.StatusUnauthorized, map[string]any{"ok": false, "error": "bad signature"})
		return
	}

	// イベント一覧へ正規化
	// 署名検証を通過した後は、解釈できないボディも空のイベント集合として 200 を返す
	events := dto.ParseEvents(body)

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	for _, ev := range events {
		if err := h.notifyService.OnEvent(ctx, ev); err != nil {
			// イベント単位の失敗は飲み込み、イベント源へは成功応答を返す
			fmt.Printf("[%s] イベント処理エラー (type=%s): %v\n", reqID, ev.Kind(), err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// logHandshake は検証トークンを運用者向けにログへ出し、可能なら控えも残します
func (h *WebhookHandler) logHandshake(r *http.Request, env *dto.WebhookEnvelope, reqID string) {
	vtoken := r.Header.Get(headerVerificationToken)
	if vtoken == "" {
		vtoken = env.VerificationToken
	}

	log.Printf("[%s] Notion エンドポイント検証リクエストを受信", reqID)
	log.Printf("[%s] Verification token: %s", reqID, vtoken)
	log.Printf("[%s] Challenge: %s", reqID, env.Challenge)

	if h.secrets != nil && vtoken != "" {
		if err := h.secrets.PutSecret(r.Context(), verificationTokenSecretName, vtoken); err != nil {
			log.Printf("[%s] 検証トークンの保存失敗（ログの値を控えてください）: %v", reqID, err)
		}
	}
}

// writeJSON はJSONレスポンスを書き出します
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
