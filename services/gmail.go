package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"maildigest/config"
	"maildigest/logger"
	"maildigest/models"

	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GmailService はGmail APIにクエリを送信し、メッセージ本文を抽出します。
type GmailService struct {
	oauth *oauth2.Config
	// endpoint が空の場合はGoogleの既定エンドポイントを使用します
	endpoint string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewGmailService は新しいGmailServiceインスタンスを作成します
func NewGmailService(cfg *config.ServerConfig, oauthCfg *oauth2.Config) *GmailService {
	service := &GmailService{
		oauth:   oauthCfg,
		timeout: cfg.GmailTimeout,
		logger:  logger.Logger,
	}

	service.logger.Info("Gmailサービスを初期化しました",
		zap.Duration("timeout", cfg.GmailTimeout))

	return service
}

// FindFirstMatch は検索クエリをそのままGmailへ送信し、先頭の1件を取得します。
// 並び順はプロバイダの定義に従い、クライアント側での再ソートは行いません。
func (s *GmailService) FindFirstMatch(ctx context.Context, token *oauth2.Token, query string) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client, err := s.newClient(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: client setup failed", models.ErrUpstreamQuery)
	}

	list, err := client.Users.Messages.List("me").
		Q(query).
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		s.logger.Error("メッセージ検索に失敗しました",
			zap.String("query", query),
			zap.Error(err))
		return nil, s.wrapUpstreamError(err, "list messages")
	}

	if len(list.Messages) == 0 {
		s.logger.Info("クエリに一致するメッセージがありません",
			zap.String("query", query))
		return nil, models.ErrNoMatch
	}

	return s.fetch(ctx, client, list.Messages[0].Id)
}

// FetchMessage は指定されたIDのメッセージを取得します
func (s *GmailService) FetchMessage(ctx context.Context, token *oauth2.Token, messageID string) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client, err := s.newClient(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: client setup failed", models.ErrUpstreamQuery)
	}

	return s.fetch(ctx, client, messageID)
}

// ExtractPlainTextBody はメッセージからプレーンテキスト本文を抽出します。
// text/plainパートを優先し、存在しない場合はHTMLパートをテキストへ変換します。
// 転送エンコーディングの復号はenmimeが行うため、同じメッセージからは常に同じ結果が得られます。
func (s *GmailService) ExtractPlainTextBody(msg *models.Message) (*models.ExtractedBody, error) {
	envelope, err := enmime.ReadEnvelope(bytes.NewReader(msg.Raw))
	if err != nil {
		s.logger.Error("MIMEメッセージのパースに失敗しました",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: mime parse failed", models.ErrUnsupportedBody)
	}

	text := envelope.Text
	if strings.TrimSpace(text) == "" {
		s.logger.Warn("テキストパートが存在しないメッセージです",
			zap.String("message_id", msg.ID))
		return nil, models.ErrUnsupportedBody
	}

	body := &models.ExtractedBody{
		Text:  text,
		Chars: utf8.RuneCountInString(text),
	}

	s.logger.Debug("本文を抽出しました",
		zap.String("message_id", msg.ID),
		zap.Int("body_chars", body.Chars))

	return body, nil
}

// fetch はメッセージをRFC822形式で取得し、ヘッダーを展開します
func (s *GmailService) fetch(ctx context.Context, client *gmail.Service, messageID string) (*models.Message, error) {
	resp, err := client.Users.Messages.Get("me", messageID).
		Format("raw").
		Context(ctx).
		Do()
	if err != nil {
		s.logger.Error("メッセージ取得に失敗しました",
			zap.String("message_id", messageID),
			zap.Error(err))
		return nil, s.wrapUpstreamError(err, "get message")
	}

	raw, err := decodeBase64URL(resp.Raw)
	if err != nil {
		return nil, fmt.Errorf("%w: raw decode failed", models.ErrUpstreamQuery)
	}

	envelope, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: mime parse failed", models.ErrUnsupportedBody)
	}

	from := envelope.GetHeader("From")
	message := &models.Message{
		ID:          resp.Id,
		ThreadID:    resp.ThreadId,
		Date:        envelope.GetHeader("Date"),
		From:        from,
		FromAddress: addressOnly(from),
		Subject:     envelope.GetHeader("Subject"),
		Raw:         raw,
	}

	s.logger.Debug("メッセージを取得しました",
		zap.String("message_id", message.ID),
		zap.String("subject", message.Subject),
		zap.Int("raw_size", len(raw)))

	return message, nil
}

func (s *GmailService) newClient(ctx context.Context, token *oauth2.Token) (*gmail.Service, error) {
	opts := []option.ClientOption{
		option.WithHTTPClient(s.oauth.Client(ctx, token)),
	}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	return gmail.NewService(ctx, opts...)
}

// wrapUpstreamError はGmail APIのエラーをパイプラインのエラー種別へ変換します。
// ここでの拒否はセッション検証ではなく、リクエスト時点でのプロバイダ側の拒否です。
func (s *GmailService) wrapUpstreamError(err error, operation string) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%w: %s returned http %d", models.ErrUpstreamQuery, operation, gerr.Code)
	}
	if isTimeout(err) {
		return fmt.Errorf("%w: %s", models.ErrUpstreamTimeout, operation)
	}
	return fmt.Errorf("%w: %s", models.ErrUpstreamQuery, operation)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// decodeBase64URL はパディングの有無にかかわらずbase64url文字列を復号します
func decodeBase64URL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// addressOnly はFromヘッダーから表示名を除いたアドレスのみを取り出します
func addressOnly(header string) string {
	addr, err := mail.ParseAddress(header)
	if err != nil {
		return header
	}
	return addr.Address
}
