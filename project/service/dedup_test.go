package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock はテスト用の疑似時刻です
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestDeduplicator_PassThenSuppress(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	d := NewDeduplicator(30*time.Second, clock.now)

	// 初回は通知可、時間窓内の2回目は抑止
	assert.True(t, d.Pass("page-1", "user-a", "comment"))
	assert.False(t, d.Pass("page-1", "user-a", "comment"))
}

func TestDeduplicator_WindowReopens(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	d := NewDeduplicator(30*time.Second, clock.now)

	assert.True(t, d.Pass("page-1", "user-a", "comment"))

	// 窓が開き直した後は再び通知可
	clock.advance(30 * time.Second)
	assert.True(t, d.Pass("page-1", "user-a", "comment"))
}

func TestDeduplicator_SlidingWindow(t *testing.T) {
	// 判定結果にかかわらず最終確認時刻が更新されるため、
	// バースト的な重複配送が続く間は抑止窓がスライドし続ける
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	d := NewDeduplicator(30*time.Second, clock.now)

	assert.True(t, d.Pass("page-1", "user-a", "comment"))

	clock.advance(20 * time.Second)
	assert.False(t, d.Pass("page-1", "user-a", "comment"))

	// 初回からは40秒経過しているが、直前の試行から20秒しか経っていないので抑止される
	clock.advance(20 * time.Second)
	assert.False(t, d.Pass("page-1", "user-a", "comment"))

	clock.advance(35 * time.Second)
	assert.True(t, d.Pass("page-1", "user-a", "comment"))
}

func TestDeduplicator_KeysAreIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	d := NewDeduplicator(30*time.Second, clock.now)

	assert.True(t, d.Pass("page-1", "user-a", "comment"))

	// リソース・ユーザー・種別のどれかが違えば別キー
	assert.True(t, d.Pass("page-2", "user-a", "comment"))
	assert.True(t, d.Pass("page-1", "user-b", "comment"))
	assert.True(t, d.Pass("page-1", "user-a", "page_mention"))

	assert.False(t, d.Pass("page-1", "user-a", "comment"))
}

func TestNewDeduplicator_Defaults(t *testing.T) {
	// window とクロックの省略時デフォルト
	d := NewDeduplicator(0, nil)
	assert.Equal(t, DefaultDedupWindow, d.window)
	assert.True(t, d.Pass("page-1", "user-a", "comment"))
	assert.False(t, d.Pass("page-1", "user-a", "comment"))
}
