package domain

import (
	"context"
)

// LinkedUserRepository は連携レコード（LinkedUser）の永続化を担当します
type LinkedUserRepository interface {
	// FindByEmail はメールアドレスが完全一致するレコードを取得します
	// 同一メールのアクティブなレコードは高々1件の前提で、最初の一致を返します
	// 存在しない場合は domain.ErrNotFound を返します
	FindByEmail(ctx context.Context, email string) (*LinkedUser, error)

	// Upsert は連携レコードを保存します
	// 同一メールの既存レコードがある場合は上書きし、ない場合は新規作成します
	// バリデーションエラー時は domain.ErrInvalid を返します
	Upsert(ctx context.Context, u *LinkedUser) error
}
