package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"maildigest/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"
)

// ServerConfig サーバーの基本設定
type ServerConfig struct {
	Port     string
	GinMode  string
	LogLevel zapcore.Level

	// Google OAuth（読み取り専用Gmailスコープのみを要求する）
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// セッション
	SessionSecretKey string
	SessionTTL       time.Duration

	// 要約バックエンド（OpenAI互換API）
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// 要約の入力・出力の上限
	SummaryMaxBullets int
	BodyTruncateChars int

	// Gmail API
	GmailTimeout time.Duration

	Environment     string
	ServiceName     string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// InitConfig は環境設定を初期化します
func InitConfig() (*ServerConfig, error) {
	// .envファイルの読み込み
	if err := godotenv.Load(); err != nil {
		fmt.Println(".envファイルが見つかりません")
	}

	logLevel := initLogLevel()
	ginMode := initGinMode()

	config := &ServerConfig{
		Port:               getEnv("SERVER_PORT", "8080"),
		GinMode:            ginMode,
		LogLevel:           logLevel,
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth"),
		SessionSecretKey:   getEnv("SESSION_SECRET_KEY", ""),
		SessionTTL:         getDuration("SESSION_TTL", 24*time.Hour),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMAPIKey:          getEnv("OPENROUTER_API_KEY", ""),
		LLMModel:           getEnv("LLM_MODEL", "x-ai/grok-4-fast:free"),
		LLMTimeout:         getDuration("LLM_TIMEOUT", 90*time.Second),
		SummaryMaxBullets:  getInt("SUMMARY_MAX_BULLETS", 5),
		BodyTruncateChars:  getInt("BODY_TRUNCATE_CHARS", 8000),
		GmailTimeout:       getDuration("GMAIL_TIMEOUT", 30*time.Second),
		Environment:        getEnv("ENVIRONMENT", "development"),
		ServiceName:        getEnv("K_SERVICE", "maildigest"),
		ShutdownTimeout:    getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		ReadTimeout:        getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getDuration("HTTP_WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:        getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
	}

	return config, config.Validate()
}

// SetupServer はサーバーの設定を行います
func SetupServer(r *gin.Engine, config *ServerConfig) *http.Server {
	displayServerConfig(r, config)

	return &http.Server{
		Addr:              ":" + config.Port,
		Handler:           r,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func initLogLevel() zapcore.Level {
	logLevelStr := getEnv("LOG_LEVEL", "info")
	var logLevel zapcore.Level
	if err := logLevel.UnmarshalText([]byte(logLevelStr)); err != nil {
		fmt.Printf("Invalid LOG_LEVEL '%s', defaulting to 'info'\n", logLevelStr)
		logLevel = zapcore.InfoLevel
	}
	logger.LogLevel.SetLevel(logLevel)
	return logLevel
}

func initGinMode() string {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "" {
		ginMode = "release"
	}
	gin.SetMode(ginMode)
	return ginMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func (c *ServerConfig) Validate() error {
	required := map[string]string{
		"GoogleClientID":     c.GoogleClientID,
		"GoogleClientSecret": c.GoogleClientSecret,
		"SessionSecretKey":   c.SessionSecretKey,
		"LLMAPIKey":          c.LLMAPIKey,
	}

	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if c.SummaryMaxBullets < 1 {
		return fmt.Errorf("SummaryMaxBullets must be positive")
	}
	if c.BodyTruncateChars < 1 {
		return fmt.Errorf("BodyTruncateChars must be positive")
	}

	return nil
}

func displayServerConfig(r *gin.Engine, config *ServerConfig) {
	var routeInfo strings.Builder
	routeInfo.WriteString("Registered Endpoints:\n")
	for _, route := range r.Routes() {
		routeInfo.WriteString(fmt.Sprintf("- %s: %s -> %s\n",
			route.Method,
			route.Path,
			route.Handler))
	}

	fmt.Printf("\n"+
		"=================================\n"+
		"Server Configuration:\n"+
		"- Port: %s\n"+
		"- Mode: %s\n"+
		"- Log Level: %s\n"+
		"- Environment: %s\n"+
		"- Service: %s\n"+
		"- LLM Model: %s\n"+
		"=================================\n"+
		"%s"+
		"=================================\n",
		config.Port,
		config.GinMode,
		logger.LogLevel.String(),
		config.Environment,
		config.ServiceName,
		config.LLMModel,
		routeInfo.String())
}
