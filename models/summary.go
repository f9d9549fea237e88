package models

// SummaryResult は要約バックエンドの出力です。
// Bulletsは出力順を保持し、成功時は必ず1件以上含まれます。
type SummaryResult struct {
	Bullets []string `json:"bullets"`
	Model   string   `json:"model"`
}

// DigestResponse は要約パイプラインの最終レスポンスです。
// 構築後に変更されることはありません。
type DigestResponse struct {
	MessageID string   `json:"id"`
	Date      string   `json:"date"`
	From      string   `json:"from"`
	Subject   string   `json:"subject"`
	Summary   []string `json:"summary"`
	BodyChars int      `json:"body_chars"`
}
