package services

import (
	"context"
	"strings"
	"testing"

	"maildigest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeCredentials struct {
	token *oauth2.Token
	err   error
	calls int
}

func (f *fakeCredentials) ActiveCredential(sessionID string) (*oauth2.Token, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

type fakeMailbox struct {
	message      *models.Message
	body         *models.ExtractedBody
	findErr      error
	extractErr   error
	findCalls    int
	fetchCalls   int
	extractCalls int
	lastQuery    string
}

func (f *fakeMailbox) FindFirstMatch(ctx context.Context, token *oauth2.Token, query string) (*models.Message, error) {
	f.findCalls++
	f.lastQuery = query
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.message, nil
}

func (f *fakeMailbox) FetchMessage(ctx context.Context, token *oauth2.Token, messageID string) (*models.Message, error) {
	f.fetchCalls++
	return f.message, nil
}

func (f *fakeMailbox) ExtractPlainTextBody(msg *models.Message) (*models.ExtractedBody, error) {
	f.extractCalls++
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.body, nil
}

type fakeSummarizer struct {
	result *models.SummaryResult
	err    error
	calls  int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, body *models.ExtractedBody) (*models.SummaryResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func validToken() *oauth2.Token {
	return &oauth2.Token{AccessToken: "test-token"}
}

func TestPipelineRunHappyPath(t *testing.T) {
	bodyText := strings.Repeat("あ", 4000)
	mailbox := &fakeMailbox{
		message: &models.Message{
			ID:          "m1",
			Date:        "2024-05-01",
			From:        "Alice <alice@example.com>",
			FromAddress: "alice@example.com",
			Subject:     "Team Update",
		},
		body: &models.ExtractedBody{Text: bodyText, Chars: 4000},
	}
	summarizer := &fakeSummarizer{
		result: &models.SummaryResult{Bullets: []string{"point one", "point two"}},
	}
	pipeline := NewPipelineService(&fakeCredentials{token: validToken()}, mailbox, summarizer)

	result, err := pipeline.Run(context.Background(), "s1", "in:anywhere newer_than:7d", "")
	require.NoError(t, err)

	assert.Equal(t, "Team Update", result.Subject)
	assert.Equal(t, "alice@example.com", result.From)
	assert.Equal(t, "2024-05-01", result.Date)
	assert.Equal(t, 4000, result.BodyChars)
	assert.NotEmpty(t, result.Summary)
	assert.Equal(t, "in:anywhere newer_than:7d", mailbox.lastQuery)
}

func TestPipelineRunUnauthenticated(t *testing.T) {
	mailbox := &fakeMailbox{}
	summarizer := &fakeSummarizer{}
	credentials := &fakeCredentials{err: models.ErrUnauthenticated}
	pipeline := NewPipelineService(credentials, mailbox, summarizer)

	_, err := pipeline.Run(context.Background(), "s1", "in:anywhere", "")
	require.ErrorIs(t, err, models.ErrUnauthenticated)

	// 未認証の場合、メールボックスにもバックエンドにも一切アクセスしない
	assert.Zero(t, mailbox.findCalls)
	assert.Zero(t, mailbox.fetchCalls)
	assert.Zero(t, summarizer.calls)
}

func TestPipelineRunNoMatch(t *testing.T) {
	mailbox := &fakeMailbox{findErr: models.ErrNoMatch}
	summarizer := &fakeSummarizer{}
	pipeline := NewPipelineService(&fakeCredentials{token: validToken()}, mailbox, summarizer)

	_, err := pipeline.Run(context.Background(), "s1", "in:anywhere", "")
	require.ErrorIs(t, err, models.ErrNoMatch)

	// 検索が0件ならバックエンドは呼ばれない
	assert.Equal(t, 1, mailbox.findCalls)
	assert.Zero(t, summarizer.calls)
}

func TestPipelineRunFetchByID(t *testing.T) {
	mailbox := &fakeMailbox{
		message: &models.Message{ID: "m1", Subject: "direct"},
		body:    &models.ExtractedBody{Text: "body", Chars: 4},
	}
	summarizer := &fakeSummarizer{
		result: &models.SummaryResult{Bullets: []string{"b"}},
	}
	pipeline := NewPipelineService(&fakeCredentials{token: validToken()}, mailbox, summarizer)

	result, err := pipeline.Run(context.Background(), "s1", "", "m1")
	require.NoError(t, err)

	// idが指定された場合は検索せず直接取得する
	assert.Zero(t, mailbox.findCalls)
	assert.Equal(t, 1, mailbox.fetchCalls)
	assert.Equal(t, "m1", result.MessageID)
}

func TestPipelineRunExtractFailure(t *testing.T) {
	mailbox := &fakeMailbox{
		message:    &models.Message{ID: "m1"},
		extractErr: models.ErrUnsupportedBody,
	}
	summarizer := &fakeSummarizer{}
	pipeline := NewPipelineService(&fakeCredentials{token: validToken()}, mailbox, summarizer)

	_, err := pipeline.Run(context.Background(), "s1", "in:anywhere", "")
	require.ErrorIs(t, err, models.ErrUnsupportedBody)
	assert.Zero(t, summarizer.calls)
}

func TestPipelineRunSummarizerFailure(t *testing.T) {
	mailbox := &fakeMailbox{
		message: &models.Message{ID: "m1"},
		body:    &models.ExtractedBody{Text: "body", Chars: 4},
	}
	summarizer := &fakeSummarizer{err: models.ErrBackendRejected}
	pipeline := NewPipelineService(&fakeCredentials{token: validToken()}, mailbox, summarizer)

	result, err := pipeline.Run(context.Background(), "s1", "in:anywhere", "")
	require.ErrorIs(t, err, models.ErrBackendRejected)

	// 部分的なレスポンスは返さない
	assert.Nil(t, result)
}
