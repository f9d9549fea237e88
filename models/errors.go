package models

import "errors"

// パイプラインの各段階で発生するエラー種別を定義します。
// ハンドラーはerrors.Isでこれらを判定し、HTTPステータスへ変換します。
var (
	// ErrUnauthenticated はセッションに有効な認証情報が存在しない場合のエラーです
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrAuthExchange は認可コード交換（stateの不一致を含む）に失敗した場合のエラーです
	ErrAuthExchange = errors.New("authorization exchange failed")
	// ErrNoMatch は検索クエリに一致するメッセージが存在しない場合のエラーです
	ErrNoMatch = errors.New("no messages matched the query")
	// ErrUpstreamQuery はメールプロバイダがクエリまたは認証情報を拒否した場合のエラーです
	ErrUpstreamQuery = errors.New("mailbox provider rejected the request")
	// ErrUpstreamTimeout はメールプロバイダが時間内に応答しなかった場合のエラーです
	ErrUpstreamTimeout = errors.New("mailbox provider timed out")
	// ErrUnsupportedBody はメッセージにテキスト部分が存在しない場合のエラーです
	ErrUnsupportedBody = errors.New("message has no extractable text body")
	// ErrBackendUnavailable は要約バックエンドへの接続に失敗した場合のエラーです
	ErrBackendUnavailable = errors.New("summarization backend unavailable")
	// ErrBackendRejected は要約バックエンドがリクエストを拒否した場合のエラーです
	ErrBackendRejected = errors.New("summarization backend rejected the request")
	// ErrEmptyResult は要約バックエンドが解析可能な箇条書きを返さなかった場合のエラーです
	ErrEmptyResult = errors.New("summarization backend returned no bullet content")
)

// ErrorKind はエラー種別を外部公開用の識別子へ変換します。
// 生のエラーメッセージは漏らさず、種別のみをクライアントへ返します。
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrAuthExchange):
		return "auth_exchange_failed"
	case errors.Is(err, ErrNoMatch):
		return "no_match"
	case errors.Is(err, ErrUpstreamTimeout):
		return "upstream_timeout"
	case errors.Is(err, ErrUpstreamQuery):
		return "upstream_query_failed"
	case errors.Is(err, ErrUnsupportedBody):
		return "unsupported_body"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrBackendRejected):
		return "backend_rejected"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	default:
		return "internal_error"
	}
}
