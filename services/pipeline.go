package services

import (
	"context"

	"maildigest/logger"
	"maildigest/models"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// CredentialSource はセッションから有効な認証情報を取り出します
type CredentialSource interface {
	ActiveCredential(sessionID string) (*oauth2.Token, error)
}

// MailboxClient は検索クエリを1通のメッセージへ解決し、本文を抽出します
type MailboxClient interface {
	FindFirstMatch(ctx context.Context, token *oauth2.Token, query string) (*models.Message, error)
	FetchMessage(ctx context.Context, token *oauth2.Token, messageID string) (*models.Message, error)
	ExtractPlainTextBody(msg *models.Message) (*models.ExtractedBody, error)
}

// Summarizer は抽出済み本文を箇条書きへ要約します
type Summarizer interface {
	Summarize(ctx context.Context, body *models.ExtractedBody) (*models.SummaryResult, error)
}

// PipelineService は認証確認・メッセージ解決・要約を順に実行するオーケストレーターです。
// 各段階のエラーはそのまま伝播し、部分的なレスポンスを返すことはありません。
type PipelineService struct {
	credentials CredentialSource
	mailbox     MailboxClient
	summarizer  Summarizer
	logger      *zap.Logger
}

// NewPipelineService は新しいPipelineServiceインスタンスを作成します
func NewPipelineService(credentials CredentialSource, mailbox MailboxClient, summarizer Summarizer) *PipelineService {
	return &PipelineService{
		credentials: credentials,
		mailbox:     mailbox,
		summarizer:  summarizer,
		logger:      logger.Logger,
	}
}

// Run はパイプラインを1回実行します。
// messageIDが指定された場合は検索を省略し、そのメッセージを直接取得します。
func (p *PipelineService) Run(ctx context.Context, sessionID, query, messageID string) (*models.DigestResponse, error) {
	logFields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("operation", "Run"),
	}

	token, err := p.credentials.ActiveCredential(sessionID)
	if err != nil {
		p.logger.Warn("有効な認証情報がありません", logFields...)
		return nil, err
	}

	var message *models.Message
	if messageID != "" {
		message, err = p.mailbox.FetchMessage(ctx, token, messageID)
	} else {
		message, err = p.mailbox.FindFirstMatch(ctx, token, query)
	}
	if err != nil {
		return nil, err
	}

	body, err := p.mailbox.ExtractPlainTextBody(message)
	if err != nil {
		return nil, err
	}

	summary, err := p.summarizer.Summarize(ctx, body)
	if err != nil {
		return nil, err
	}

	p.logger.Info("パイプラインが完了しました",
		append(logFields,
			zap.String("message_id", message.ID),
			zap.Int("body_chars", body.Chars),
			zap.Int("bullet_count", len(summary.Bullets)),
		)...)

	return &models.DigestResponse{
		MessageID: message.ID,
		Date:      message.Date,
		From:      message.FromAddress,
		Subject:   message.Subject,
		Summary:   summary.Bullets,
		BodyChars: body.Chars,
	}, nil
}
