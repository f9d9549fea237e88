package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"maildigest/config"
	"maildigest/logger"
	"maildigest/models"
	"maildigest/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// Gmailの読み取り専用スコープ。これ以外のメールボックス権限は要求しません。
	gmailReadonlyScope = "https://www.googleapis.com/auth/gmail.readonly"
	userinfoEndpoint   = "https://openidconnect.googleapis.com/v1/userinfo"

	defaultExchangeTimeout = 30 * time.Second
)

// SessionService はOAuth認可フローとセッションの認証情報を管理します。
// 認可コード交換・CSRF防止トークン・トークンの有効期限をここで一元管理します。
type SessionService struct {
	oauth        *oauth2.Config
	sessions     store.SessionStore
	sessionTTL   time.Duration
	cookieSecret []byte
	userinfoURL  string
	logger       *zap.Logger
}

// NewSessionService は新しいSessionServiceインスタンスを作成します
func NewSessionService(cfg *config.ServerConfig, sessions store.SessionStore) *SessionService {
	service := &SessionService{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Scopes: []string{
				"openid",
				"email",
				"profile",
				gmailReadonlyScope,
			},
			Endpoint: google.Endpoint,
		},
		sessions:     sessions,
		sessionTTL:   cfg.SessionTTL,
		cookieSecret: []byte(cfg.SessionSecretKey),
		userinfoURL:  userinfoEndpoint,
		logger:       logger.Logger,
	}

	service.logger.Info("セッションサービスを初期化しました",
		zap.Bool("has_client_id", cfg.GoogleClientID != ""),
		zap.String("redirect_url", cfg.GoogleRedirectURL),
		zap.Duration("session_ttl", cfg.SessionTTL),
	)

	return service
}

// OAuthConfig はGmailクライアントと共有するOAuth設定を返します
func (s *SessionService) OAuthConfig() *oauth2.Config {
	return s.oauth
}

// CreateSession は未認証の新しいセッションを作成します
func (s *SessionService) CreateSession() *models.Session {
	now := time.Now()
	session := &models.Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	s.sessions.Save(session)

	s.logger.Debug("セッションを作成しました",
		zap.String("session_id", session.ID))

	return session
}

// BeginAuthorization は同意画面のURLを生成します。
// セッションに使い捨てのstateトークンを保存し、コールバック検証に使用します。
func (s *SessionService) BeginAuthorization(sessionID string) (string, error) {
	session := s.sessions.Find(sessionID)
	if session == nil {
		return "", fmt.Errorf("session not found: %s", sessionID)
	}

	// stateは毎回発行し直す（前回のフローが中断されていても残らない）
	session.PendingState = uuid.NewString()
	s.sessions.Save(session)

	authURL := s.oauth.AuthCodeURL(
		session.PendingState,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)

	s.logger.Info("認可フローを開始します",
		zap.String("session_id", sessionID))

	return authURL, nil
}

// CompleteAuthorization は認可コードを認証情報へ交換します。
// stateが発行済みトークンと一致しない場合はErrAuthExchangeを返します。
func (s *SessionService) CompleteAuthorization(ctx context.Context, sessionID, code, state string) error {
	logFields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("operation", "CompleteAuthorization"),
	}

	session := s.sessions.Find(sessionID)
	if session == nil {
		s.logger.Warn("コールバックに対応するセッションが存在しません", logFields...)
		return fmt.Errorf("%w: unknown session", models.ErrAuthExchange)
	}

	// stateは一度の検証で消費する（再利用不可）
	expected := session.PendingState
	session.PendingState = ""
	s.sessions.Save(session)

	if expected == "" || state != expected {
		s.logger.Warn("stateトークンが一致しません", logFields...)
		return fmt.Errorf("%w: state mismatch", models.ErrAuthExchange)
	}

	exchangeCtx, cancel := context.WithTimeout(ctx, defaultExchangeTimeout)
	defer cancel()

	token, err := s.oauth.Exchange(exchangeCtx, code)
	if err != nil {
		s.logger.Error("認可コードの交換に失敗しました",
			append(logFields, zap.Error(err))...)
		return fmt.Errorf("%w: code exchange rejected", models.ErrAuthExchange)
	}

	session.Token = token
	session.Scopes = grantedScopes(token)
	session.Identity = s.fetchIdentity(exchangeCtx, token)
	s.sessions.Save(session)

	s.logger.Info("認可フローが完了しました",
		append(logFields,
			zap.Bool("has_refresh_token", token.RefreshToken != ""),
			zap.Strings("scopes", session.Scopes),
		)...)

	return nil
}

// ActiveCredential はセッションに紐づく有効な認証情報を返します。
// 認証情報が存在しない、または期限切れで更新もできない場合はErrUnauthenticatedを返します。
func (s *SessionService) ActiveCredential(sessionID string) (*oauth2.Token, error) {
	session := s.sessions.Find(sessionID)
	if session == nil || !session.Authenticated() {
		return nil, models.ErrUnauthenticated
	}
	return session.Token, nil
}

// Identity はセッションに紐づくユーザー情報を返します
func (s *SessionService) Identity(sessionID string) *models.Identity {
	session := s.sessions.Find(sessionID)
	if session == nil {
		return nil
	}
	return session.Identity
}

// Logout はセッションを破棄し、認証情報をメモリから消去します
func (s *SessionService) Logout(sessionID string) {
	s.sessions.Delete(sessionID)
	s.logger.Info("セッションを破棄しました",
		zap.String("session_id", sessionID))
}

// SignCookie はセッションIDを署名付きクッキー値（JWT）へ変換します
func (s *SessionService) SignCookie(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.cookieSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %v", err)
	}
	return signed, nil
}

// VerifyCookie はクッキー値の署名と有効期限を検証し、セッションIDを返します
func (s *SessionService) VerifyCookie(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.cookieSecret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", models.ErrUnauthenticated
	}
	return claims.Subject, nil
}

// fetchIdentity はuserinfoエンドポイントからユーザー情報を取得します。
// 取得に失敗しても認可フロー自体は成功扱いとします。
func (s *SessionService) fetchIdentity(ctx context.Context, token *oauth2.Token) *models.Identity {
	client := s.oauth.Client(ctx, token)
	resp, err := client.Get(s.userinfoURL)
	if err != nil {
		s.logger.Warn("ユーザー情報の取得に失敗しました", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		s.logger.Warn("userinfoエンドポイントが異常なステータスを返しました",
			zap.Int("status_code", resp.StatusCode))
		return nil
	}

	var identity models.Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		s.logger.Warn("ユーザー情報のデコードに失敗しました", zap.Error(err))
		return nil
	}

	return &identity
}

// grantedScopes はトークンレスポンスのscopeフィールドを分解します
func grantedScopes(token *oauth2.Token) []string {
	raw, _ := token.Extra("scope").(string)
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}
