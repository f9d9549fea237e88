package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"maildigest/config"
	"maildigest/logger"
	"maildigest/models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const systemInstruction = "You are concise. Summarize main topics as up to %d short bullets. No preamble."

const userInstruction = "Summarize the main topics of the following email body as concise bullet points.\n" +
	"Rules:\n" +
	"- Use short, content-rich bullets (no full sentences unless necessary).\n" +
	"- %d bullets max.\n" +
	"- No preamble or conclusion. Just the bullets.\n\n" +
	"Email body:\n%s"

// SummarizerService は抽出済み本文を要約バックエンドへ送信し、箇条書きを取得します。
// 指示文は固定で、ユーザー入力が混入するのは本文のみです。
type SummarizerService struct {
	client        openai.Client
	model         string
	maxBullets    int
	truncateChars int
	timeout       time.Duration
	logger        *zap.Logger
}

// NewSummarizerService は新しいSummarizerServiceインスタンスを作成します
func NewSummarizerService(cfg *config.ServerConfig) *SummarizerService {
	service := &SummarizerService{
		client: openai.NewClient(
			option.WithAPIKey(cfg.LLMAPIKey),
			option.WithBaseURL(cfg.LLMBaseURL),
			option.WithHTTPClient(&http.Client{Timeout: cfg.LLMTimeout}),
			// リトライは行わない。失敗は呼び出し側へそのまま返す。
			option.WithMaxRetries(0),
		),
		model:         cfg.LLMModel,
		maxBullets:    cfg.SummaryMaxBullets,
		truncateChars: cfg.BodyTruncateChars,
		timeout:       cfg.LLMTimeout,
		logger:        logger.Logger,
	}

	service.logger.Info("要約サービスを初期化しました",
		zap.String("model", cfg.LLMModel),
		zap.Bool("has_api_key", cfg.LLMAPIKey != ""),
		zap.Int("max_bullets", cfg.SummaryMaxBullets),
		zap.Int("truncate_chars", cfg.BodyTruncateChars),
		zap.Duration("timeout", cfg.LLMTimeout),
	)

	return service
}

// Summarize は本文の主なトピックを箇条書きへ要約します。
// 入力は先頭truncateChars文字までに切り詰めてバックエンドへ送信しますが、
// レスポンスで報告する文字数は切り詰め前の値のままです。
func (s *SummarizerService) Summarize(ctx context.Context, body *models.ExtractedBody) (*models.SummaryResult, error) {
	logFields := []zap.Field{
		zap.Int("body_chars", body.Chars),
		zap.String("operation", "Summarize"),
	}

	input, truncated := truncateLeading(body.Text, s.truncateChars)
	if truncated {
		s.logger.Debug("本文をバックエンドの入力上限まで切り詰めました",
			append(logFields, zap.Int("sent_chars", s.truncateChars))...)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(systemInstruction, s.maxBullets)),
			openai.UserMessage(fmt.Sprintf(userInstruction, s.maxBullets, input)),
		},
		Model: openai.ChatModel(s.model),
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) {
			s.logger.Error("要約バックエンドがリクエストを拒否しました",
				append(logFields, zap.Int("status_code", apierr.StatusCode))...)
			return nil, fmt.Errorf("%w: http %d", models.ErrBackendRejected, apierr.StatusCode)
		}
		s.logger.Error("要約バックエンドへの接続に失敗しました",
			append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("%w: %v", models.ErrBackendUnavailable, err)
	}

	if len(completion.Choices) == 0 {
		s.logger.Error("要約バックエンドが選択肢を返しませんでした", logFields...)
		return nil, models.ErrEmptyResult
	}

	bullets := parseBullets(completion.Choices[0].Message.Content, s.maxBullets)
	if len(bullets) == 0 {
		s.logger.Error("要約結果から箇条書きを抽出できませんでした", logFields...)
		return nil, models.ErrEmptyResult
	}

	s.logger.Info("要約が完了しました",
		append(logFields, zap.Int("bullet_count", len(bullets)))...)

	return &models.SummaryResult{
		Bullets: bullets,
		Model:   s.model,
	}, nil
}

// truncateLeading は先頭limit文字のみを残します（文字はruneとして数える）
func truncateLeading(text string, limit int) (string, bool) {
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}
	return string(runes[:limit]), true
}

// parseBullets はバックエンドの出力から箇条書きを取り出します。
// 行頭の記号や番号を取り除き、出力順を保持します。
func parseBullets(content string, limit int) []string {
	var bullets []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{"- ", "* ", "• ", "-", "*", "•"} {
			if strings.HasPrefix(line, prefix) {
				line = strings.TrimSpace(strings.TrimPrefix(line, prefix))
				break
			}
		}
		line = trimNumberPrefix(line)
		if line == "" {
			continue
		}
		bullets = append(bullets, line)
		if len(bullets) == limit {
			break
		}
	}
	return bullets
}

// trimNumberPrefix は「1.」「2)」のような行頭の番号を取り除きます
func trimNumberPrefix(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return line
	}
	if line[i] == '.' || line[i] == ')' {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
