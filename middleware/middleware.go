// middleware/middleware.go

package middleware

import (
	"net/http"
	"time"

	"maildigest/logger"
	"maildigest/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// SessionCookieName はセッションIDを格納するクッキー名です
	SessionCookieName = "session_id"
	// ContextSessionID はginコンテキストに格納するセッションIDのキーです
	ContextSessionID = "session_id"
)

// CookieVerifier はセッションクッキーの署名検証を行います
type CookieVerifier interface {
	VerifyCookie(value string) (string, error)
}

// Config ミドルウェアの設定
type Config struct {
	EnableLogger bool
}

// SetupMiddleware ミドルウェアの設定
func SetupMiddleware(r *gin.Engine, cfg *Config) {
	r.Use(gin.Recovery())

	if cfg.EnableLogger {
		r.Use(GinLogger())
	}
}

// SessionAuth は署名付きセッションクッキーを検証するミドルウェアです。
// 検証に成功した場合のみセッションIDをコンテキストへ格納します。
func SessionAuth(sessions CookieVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(SessionCookieName)
		if err != nil {
			logUnauthorizedRequest(c, "session cookie missing")
			abortUnauthenticated(c)
			return
		}

		sessionID, err := sessions.VerifyCookie(cookie)
		if err != nil {
			logUnauthorizedRequest(c, "session cookie invalid")
			abortUnauthenticated(c)
			return
		}

		c.Set(ContextSessionID, sessionID)
		c.Next()
	}
}

// SessionID はコンテキストからセッションIDを取り出します
func SessionID(c *gin.Context) string {
	return c.GetString(ContextSessionID)
}

func abortUnauthenticated(c *gin.Context) {
	response := models.NewErrorResponse(
		http.StatusUnauthorized,
		"sign in required",
		models.ErrUnauthenticated,
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized, response)
}

// logUnauthorizedRequest 未認証リクエストのログ出力
func logUnauthorizedRequest(c *gin.Context, reason string) {
	logger.Logger.Warn("未認証リクエスト",
		zap.String("reason", reason),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("client_ip", c.ClientIP()),
	)
}

// GinLogger ロギングミドルウェア
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Logger.Info("リクエストを処理しました",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
