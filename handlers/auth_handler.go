package handlers

import (
	"net/http"

	"maildigest/logger"
	"maildigest/middleware"
	"maildigest/models"
	"maildigest/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const homePage = `<html>
    <head>
        <title>Mail Digest</title>
    </head>
    <body>
        <h1>Mail Digest backend is running.</h1>
        <p>
            <a href="/login">
                <button>Login with Google</button>
            </a>
        </p>
    </body>
</html>`

// authErrorMessages は認証エラー理由と表示メッセージの対応表です
var authErrorMessages = map[string]string{
	"exchange_failed": "The authorization code exchange was rejected.",
	"state_mismatch":  "The state token did not match. Please retry the login.",
	"unknown":         "An unknown error occurred.",
}

// AuthHandler はOAuth認可フローのエンドポイントを処理します
type AuthHandler struct {
	sessions *services.SessionService
}

// NewAuthHandler は新しいAuthHandlerインスタンスを作成します
func NewAuthHandler(sessions *services.SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// HandleHome は暫定のホームページを返します
func (h *AuthHandler) HandleHome(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(homePage))
}

// HandleLogin は認可フローを開始し、同意画面へリダイレクトします。
// セッションクッキーが存在しない場合はここで新規発行します。
func (h *AuthHandler) HandleLogin(c *gin.Context) {
	sessionID := h.sessionFromCookie(c)
	if sessionID == "" {
		session := h.sessions.CreateSession()
		sessionID = session.ID

		cookie, err := h.sessions.SignCookie(sessionID)
		if err != nil {
			logger.Logger.Error("セッションクッキーの署名に失敗しました", zap.Error(err))
			c.JSON(http.StatusInternalServerError,
				models.NewErrorResponse(http.StatusInternalServerError, "failed to create session", nil))
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookieName, cookie, 86400, "/", "", false, true)
	}

	authURL, err := h.sessions.BeginAuthorization(sessionID)
	if err != nil {
		logger.Logger.Error("認可フローの開始に失敗しました", zap.Error(err))
		c.JSON(http.StatusInternalServerError,
			models.NewErrorResponse(http.StatusInternalServerError, "failed to start authorization", nil))
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// HandleCallback はGoogleからのコールバックを処理します
func (h *AuthHandler) HandleCallback(c *gin.Context) {
	sessionID := h.sessionFromCookie(c)
	if sessionID == "" {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	code := c.Query("code")
	state := c.Query("state")

	if err := h.sessions.CompleteAuthorization(c.Request.Context(), sessionID, code, state); err != nil {
		logger.Logger.Warn("認可コールバックの処理に失敗しました",
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.JSON(http.StatusUnauthorized,
			models.NewErrorResponse(http.StatusUnauthorized, "Google authentication failed", err))
		return
	}

	c.Redirect(http.StatusFound, "/success")
}

// HandleSuccess はログイン後のユーザー情報を返します
func (h *AuthHandler) HandleSuccess(c *gin.Context) {
	sessionID := h.sessionFromCookie(c)
	if sessionID == "" {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	identity := h.sessions.Identity(sessionID)
	if identity == nil {
		c.Redirect(http.StatusFound, "/login")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Authentication successful!",
		"identity": gin.H{
			"sub":            identity.Subject,
			"email":          identity.Email,
			"email_verified": identity.EmailVerified,
		},
		"profile": gin.H{
			"name": identity.Name,
		},
	})
}

// HandleLogout はセッションを破棄し、クッキーを削除します
func (h *AuthHandler) HandleLogout(c *gin.Context) {
	if sessionID := h.sessionFromCookie(c); sessionID != "" {
		h.sessions.Logout(sessionID)
	}

	c.SetCookie(middleware.SessionCookieName, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, "/")
}

// HandleAuthError は認証エラーの理由を整形して返します
func (h *AuthHandler) HandleAuthError(c *gin.Context) {
	reason := c.DefaultQuery("reason", "unknown")
	message, ok := authErrorMessages[reason]
	if !ok {
		message = "Unexpected error"
	}

	c.JSON(http.StatusOK, gin.H{
		"error":  "Authentication failed",
		"detail": message,
		"next":   "/login",
	})
}

// sessionFromCookie はクッキーを検証し、セッションIDを返します。
// クッキーが存在しない、または署名が無効な場合は空文字を返します。
func (h *AuthHandler) sessionFromCookie(c *gin.Context) string {
	cookie, err := c.Cookie(middleware.SessionCookieName)
	if err != nil {
		return ""
	}

	sessionID, err := h.sessions.VerifyCookie(cookie)
	if err != nil {
		return ""
	}
	return sessionID
}
