package handlers

import (
	"context"
	"errors"
	"net/http"

	"maildigest/logger"
	"maildigest/middleware"
	"maildigest/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DigestRunner は要約パイプラインを1回実行します
type DigestRunner interface {
	Run(ctx context.Context, sessionID, query, messageID string) (*models.DigestResponse, error)
}

// SummarizeHandler は要約パイプラインのエンドポイントを処理します
type SummarizeHandler struct {
	pipeline DigestRunner
}

// NewSummarizeHandler は新しいSummarizeHandlerインスタンスを作成します
func NewSummarizeHandler(pipeline DigestRunner) *SummarizeHandler {
	return &SummarizeHandler{pipeline: pipeline}
}

// HandleSummarizeEmail は検索クエリを1通のメッセージへ解決し、要約を返します。
// idが指定された場合は検索を省略してそのメッセージを直接要約します。
func (h *SummarizeHandler) HandleSummarizeEmail(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	query := c.Query("q")
	messageID := c.Query("id")

	logFields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("handler", "HandleSummarizeEmail"),
	}

	if query == "" && messageID == "" {
		response := models.NewErrorResponse(http.StatusBadRequest, "query parameter q or id is required", nil)
		response.Error = &models.ErrorInfo{
			Type:    "invalid_request",
			Message: "query parameter q or id is required",
		}
		c.JSON(http.StatusBadRequest, response)
		return
	}

	result, err := h.pipeline.Run(c.Request.Context(), sessionID, query, messageID)
	if err != nil {
		status := statusForError(err)
		logger.Logger.Warn("パイプラインの実行に失敗しました",
			append(logFields,
				zap.String("error_kind", models.ErrorKind(err)),
				zap.Int("status", status),
				zap.Error(err),
			)...)
		c.JSON(status, models.NewErrorResponse(status, messageForError(err), err))
		return
	}

	c.JSON(http.StatusOK, result)
}

// statusForError はエラー種別をHTTPステータスへ変換します
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrAuthExchange):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrNoMatch):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, models.ErrUpstreamQuery):
		return http.StatusBadGateway
	case errors.Is(err, models.ErrUnsupportedBody):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrBackendRejected),
		errors.Is(err, models.ErrEmptyResult):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageForError はクライアント向けの説明文を返します。
// 上流の生のエラー内容はここでは公開しません。
func messageForError(err error) string {
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		return "Sign in required"
	case errors.Is(err, models.ErrAuthExchange):
		return "Authorization failed"
	case errors.Is(err, models.ErrNoMatch):
		return "No messages matched the query"
	case errors.Is(err, models.ErrUpstreamTimeout):
		return "The mailbox provider did not respond in time"
	case errors.Is(err, models.ErrUpstreamQuery):
		return "The mailbox provider rejected the request"
	case errors.Is(err, models.ErrUnsupportedBody):
		return "The message has no extractable text body"
	case errors.Is(err, models.ErrBackendUnavailable):
		return "The summarization backend is unavailable"
	case errors.Is(err, models.ErrBackendRejected):
		return "The summarization backend rejected the request"
	case errors.Is(err, models.ErrEmptyResult):
		return "The summarization backend returned no usable summary"
	default:
		return "Internal error"
	}
}
