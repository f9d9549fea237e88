package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"maildigest/config"
	"maildigest/handlers"
	"maildigest/logger"
	"maildigest/middleware"
	"maildigest/services"
	"maildigest/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 設定の初期化
	cfg, err := config.InitConfig()
	if err != nil {
		logger.Logger.Fatal("設定の初期化に失敗しました", zap.Error(err))
	}

	// サービスの初期化
	sessionStore := store.NewMemorySessionStore()
	sessionService := services.NewSessionService(cfg, sessionStore)
	gmailService := services.NewGmailService(cfg, sessionService.OAuthConfig())
	summarizerService := services.NewSummarizerService(cfg)
	pipelineService := services.NewPipelineService(sessionService, gmailService, summarizerService)

	// ルーターの設定
	r := gin.New()
	middleware.SetupMiddleware(r, &middleware.Config{
		EnableLogger: true,
	})

	// ハンドラーの設定
	authHandler := handlers.NewAuthHandler(sessionService)
	summarizeHandler := handlers.NewSummarizeHandler(pipelineService)

	r.GET("/health", handleHealthCheck)
	r.GET("/", authHandler.HandleHome)
	r.GET("/login", authHandler.HandleLogin)
	r.GET("/auth", authHandler.HandleCallback)
	r.GET("/success", authHandler.HandleSuccess)
	r.GET("/logout", authHandler.HandleLogout)
	r.GET("/auth_error", authHandler.HandleAuthError)

	// 要約APIはセッション認証必須
	ai := r.Group("/ai", middleware.SessionAuth(sessionService))
	ai.GET("/summarize_email", summarizeHandler.HandleSummarizeEmail)

	// サーバーの設定と起動
	srv := config.SetupServer(r, cfg)

	// グレースフルシャットダウンの実装
	handleGracefulShutdown(srv, cfg.ShutdownTimeout)
}

// handleHealthCheck はヘルスチェックエンドポイントを処理します
func handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func handleGracefulShutdown(srv *http.Server, timeout time.Duration) {
	// サーバーを別のゴルーチンで起動
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("サーバーの起動に失敗しました", zap.Error(err))
		}
	}()

	// シグナルの受信設定
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Logger.Info("シャットダウンを開始します...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error("サーバーのシャットダウンでエラーが発生", zap.Error(err))
	}

	logger.Logger.Info("サーバーを正常に終了しました")
}
