package services

import (
	"time"

	"maildigest/config"
)

// newTestConfig はテスト用の設定を返します（環境変数には依存しない）
func newTestConfig() *config.ServerConfig {
	return &config.ServerConfig{
		Port:               "8080",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		GoogleRedirectURL:  "http://localhost:8080/auth",
		SessionSecretKey:   "test-session-secret",
		SessionTTL:         time.Hour,
		LLMBaseURL:         "http://127.0.0.1:0",
		LLMAPIKey:          "test-api-key",
		LLMModel:           "test-model",
		LLMTimeout:         5 * time.Second,
		SummaryMaxBullets:  5,
		BodyTruncateChars:  8000,
		GmailTimeout:       5 * time.Second,
	}
}
