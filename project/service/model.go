package service

// EventKind は受信イベントの分類結果です
type EventKind int

const (
	// KindUnrecognized は処理対象外のイベント
	KindUnrecognized EventKind = iota

	// KindCommentMention はコメント内メンションのイベント
	KindCommentMention

	// KindPageUpdateMention はページ更新メンションのイベント
	KindPageUpdateMention
)

// PageSummary は通知メッセージ用のページ概要です
// 通知のたびに Notion から取得し直し、キャッシュしません
type PageSummary struct {
	// Title はページタイトル。取得できない場合はプレースホルダが入ります
	Title string

	// URL はページURL。Notion 側が返さない場合はページIDから導出されます
	URL string
}

// WorkspaceUser は Notion ワークスペースディレクトリのユーザーです
type WorkspaceUser struct {
	// ID は Notion が割り当てた不透明なユーザーID
	ID string

	// Name は表示名
	Name string

	// Email はワークスペースのメールアドレス
	Email string
}
