package secret

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"telegram-notion-bot/project/domain"
)

// Manager は Secret Manager を通じてシークレットを取得・保存するクライアントです
// GCP 上で動かす場合に Bot トークンや署名シークレットの置き場所として使います
type Manager struct {
	client    *secretmanager.Client
	projectID string
}

// NewManager は Secret Manager のマネージャーを初期化します
func NewManager(ctx context.Context, projectID string) (*Manager, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secret manager: クライアント初期化失敗: %w", err)
	}

	return &Manager{
		client:    client,
		projectID: projectID,
	}, nil
}

// isNotFound は Secret Manager の NotFound エラーを判定するヘルパー関数です
func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.NotFound
}

// GetSecret は指定されたシークレット名から最新版のシークレット値を取得します
// シークレットが未登録の場合は domain.ErrNotFound を返します
func (m *Manager) GetSecret(ctx context.Context, secretName string) (string, error) {
	// リソース名形式: projects/{project_id}/secrets/{secret_name}/versions/latest
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", m.projectID, secretName)

	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: name,
	}

	result, err := m.client.AccessSecretVersion(ctx, req)
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("%w: シークレット未登録 (name=%s)", domain.ErrNotFound, secretName)
		}
		return "", fmt.Errorf("secret manager: シークレット取得失敗 (name=%s): %w", secretName, err)
	}

	secret := string(result.Payload.Data)
	if secret == "" {
		return "", fmt.Errorf("secret manager: シークレット値が空です (name=%s)", secretName)
	}

	return secret, nil
}

// PutSecret はシークレット値を保存または更新します
// ハンドシェイクで受け取った検証トークンの控えにも使われます
func (m *Manager) PutSecret(ctx context.Context, secretName, secretValue string) error {
	name := fmt.Sprintf("projects/%s/secrets/%s", m.projectID, secretName)

	// 既存チェック（なければ作成を試みる）
	_, err := m.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{Name: name})
	if err != nil && isNotFound(err) {
		createReq := &secretmanagerpb.CreateSecretRequest{
			Parent:   fmt.Sprintf("projects/%s", m.projectID),
			SecretId: secretName,
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
			},
		}
		if _, err := m.client.CreateSecret(ctx, createReq); err != nil && !alreadyExists(err) {
			return fmt.Errorf("secret manager: シークレット作成失敗 (name=%s): %w", secretName, err)
		}
	} else if err != nil {
		return fmt.Errorf("secret manager: シークレット確認失敗 (name=%s): %w", secretName, err)
	}

	// バージョンを追加
	addReq := &secretmanagerpb.AddSecretVersionRequest{
		Parent: name,
		Payload: &secretmanagerpb.SecretPayload{
			Data: []byte(secretValue),
		},
	}

	if _, err := m.client.AddSecretVersion(ctx, addReq); err != nil {
		return fmt.Errorf("secret manager: シークレット保存失敗 (name=%s): %w", secretName, err)
	}

	return nil
}

// alreadyExists は作成競合（他プロセスが先に作成済み）のエラーを判定します
func alreadyExists(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.AlreadyExists
}

// Close は Secret Manager クライアントを閉じます
func (m *Manager) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}
