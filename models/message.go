package models

// Message は検索クエリの解決結果となる1通のメールです。
// Rawは取得したRFC822メッセージ全体で、1回のパイプライン実行の間のみ保持されます。
type Message struct {
	ID          string
	ThreadID    string
	Date        string
	From        string
	FromAddress string
	Subject     string
	Raw         []byte
}

// ExtractedBody はメッセージから抽出したプレーンテキスト本文です。
// Charsは切り詰め前の本文全体の文字数で、常に抽出時点の値を保持します。
type ExtractedBody struct {
	Text  string
	Chars int
}
