package service

import (
	"fmt"
	"sync"
	"time"
)

// DefaultDedupWindow は同一キーの再通知を抑止する時間幅です
const DefaultDedupWindow = 30 * time.Second

// Deduplicator は (リソース, ユーザー, イベント種別) ごとの最終確認時刻を保持し、
// 時間窓内の重複通知を抑止します
//
// マップはプロセス生存中は増え続けます（期限切れキーの回収は明示的な非対応事項）。
// クロックを注入できるため、テストでは疑似時刻で検証できます
type Deduplicator struct {
	mu       sync.Mutex
	window   time.Duration
	now      func() time.Time
	lastSeen map[string]time.Time
}

// NewDeduplicator は Deduplicator を初期化します
// window が0以下の場合は DefaultDedupWindow、now が nil の場合は time.Now を使います
func NewDeduplicator(window time.Duration, now func() time.Time) *Deduplicator {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Deduplicator{
		window:   window,
		now:      now,
		lastSeen: make(map[string]time.Time),
	}
}

// Pass はキーに対する通知可否を判定します
// 時間窓内に同一キーの呼び出しがなければ true（通知してよい）を返します。
// 判定結果にかかわらず最終確認時刻は毎回更新されるため、重複配送のバーストが
// 続く間は抑止窓が途切れずスライドし続けます
func (d *Deduplicator) Pass(resourceID, notionUserID, kind string) bool {
	key := dedupKey(resourceID, notionUserID, kind)

	d.mu.Lock()
	defer d.mu.Unlock()

	t := d.now()
	last, seen := d.lastSeen[key]
	d.lastSeen[key] = t

	return !seen || t.Sub(last) >= d.window
}

// dedupKey は重複判定の一意キーを生成します
// 形式: "resource:user:kind"
func dedupKey(resourceID, notionUserID, kind string) string {
	return fmt.Sprintf("%s:%s:%s", resourceID, notionUserID, kind)
}
