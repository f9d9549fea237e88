package models

import (
	"time"

	"golang.org/x/oauth2"
)

// Identity はOAuthプロバイダから取得したユーザー情報です
type Identity struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
}

// Session は1ユーザーのセッション状態を保持します。
// 認証情報（Token）はこの構造体にのみ存在し、永続化されません。
type Session struct {
	ID string
	// PendingState は認可フロー中のCSRF防止トークンです。
	// BeginAuthorizationで発行され、コールバック検証で一度だけ使用されます。
	PendingState string
	Token        *oauth2.Token
	Scopes       []string
	Identity     *Identity
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Expired はセッション自体の有効期限が切れているかを判定します
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Authenticated は有効な認証情報が紐づいているかを判定します。
// リフレッシュトークンを持つ場合、アクセストークンの期限切れは
// 呼び出し時にTokenSourceが更新するため有効とみなします。
func (s *Session) Authenticated() bool {
	if s.Token == nil {
		return false
	}
	if s.Token.Valid() {
		return true
	}
	return s.Token.RefreshToken != ""
}
