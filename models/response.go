package models

import (
	"net/http"
	"time"
)

// APIResponse はエラーレスポンスの構造を定義します
type APIResponse struct {
	Status    string     `json:"status"`            // "success" or "error"
	Code      int        `json:"code"`              // HTTPステータスコード
	Message   string     `json:"message,omitempty"` // 処理結果の説明
	Timestamp string     `json:"timestamp"`         // 処理時のタイムスタンプ
	Error     *ErrorInfo `json:"error,omitempty"`   // エラー情報（エラー時のみ）
}

// ErrorInfo はエラー詳細情報の構造を定義します。
// Typeにはエラー種別の識別子のみを設定し、上流の生のエラー内容は含めません。
type ErrorInfo struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewErrorResponse はエラー種別からAPIResponseを構築します
func NewErrorResponse(code int, message string, err error) APIResponse {
	response := APIResponse{
		Status:    "error",
		Code:      code,
		Message:   http.StatusText(code),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err != nil {
		response.Error = &ErrorInfo{
			Type:    ErrorKind(err),
			Message: message,
		}
	}

	return response
}
