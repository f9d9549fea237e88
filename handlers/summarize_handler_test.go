package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"maildigest/middleware"
	"maildigest/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	result     *models.DigestResponse
	err        error
	gotSession string
	gotQuery   string
	gotID      string
	calls      int
}

func (f *fakeRunner) Run(ctx context.Context, sessionID, query, messageID string) (*models.DigestResponse, error) {
	f.calls++
	f.gotSession = sessionID
	f.gotQuery = query
	f.gotID = messageID
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeVerifier struct {
	sessionID string
	err       error
}

func (f *fakeVerifier) VerifyCookie(value string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.sessionID, nil
}

func newSummarizeRouter(runner *fakeRunner, verifier *fakeVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewSummarizeHandler(runner)
	group := r.Group("/ai")
	group.Use(middleware.SessionAuth(verifier))
	group.GET("/summarize_email", handler.HandleSummarizeEmail)
	return r
}

func doSummarizeRequest(r *gin.Engine, target string, withCookie bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if withCookie {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "signed-cookie"})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleSummarizeEmailSuccess(t *testing.T) {
	runner := &fakeRunner{
		result: &models.DigestResponse{
			MessageID: "m1",
			Date:      "Wed, 01 May 2024 10:00:00 +0000",
			From:      "alice@example.com",
			Subject:   "Team Update",
			Summary:   []string{"Weekly report shipped", "Standup moved"},
			BodyChars: 4000,
		},
	}
	r := newSummarizeRouter(runner, &fakeVerifier{sessionID: "session-1"})

	w := doSummarizeRequest(r, "/ai/summarize_email?q=from%3Aalice", true)
	require.Equal(t, http.StatusOK, w.Code)

	var body models.DigestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "m1", body.MessageID)
	assert.Equal(t, []string{"Weekly report shipped", "Standup moved"}, body.Summary)
	assert.Equal(t, 4000, body.BodyChars)

	assert.Equal(t, "session-1", runner.gotSession)
	assert.Equal(t, "from:alice", runner.gotQuery)
	assert.Empty(t, runner.gotID)
}

func TestHandleSummarizeEmailByID(t *testing.T) {
	runner := &fakeRunner{result: &models.DigestResponse{MessageID: "m42"}}
	r := newSummarizeRouter(runner, &fakeVerifier{sessionID: "session-1"})

	w := doSummarizeRequest(r, "/ai/summarize_email?id=m42", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, runner.gotQuery)
	assert.Equal(t, "m42", runner.gotID)
}

func TestHandleSummarizeEmailMissingParams(t *testing.T) {
	runner := &fakeRunner{}
	r := newSummarizeRouter(runner, &fakeVerifier{sessionID: "session-1"})

	w := doSummarizeRequest(r, "/ai/summarize_email", true)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, runner.calls)

	var body models.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "invalid_request", body.Error.Type)
}

func TestHandleSummarizeEmailNoCookie(t *testing.T) {
	runner := &fakeRunner{}
	r := newSummarizeRouter(runner, &fakeVerifier{sessionID: "session-1"})

	w := doSummarizeRequest(r, "/ai/summarize_email?q=test", false)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, runner.calls)
}

func TestHandleSummarizeEmailInvalidCookie(t *testing.T) {
	runner := &fakeRunner{}
	r := newSummarizeRouter(runner, &fakeVerifier{err: models.ErrUnauthenticated})

	w := doSummarizeRequest(r, "/ai/summarize_email?q=test", true)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, runner.calls)

	var body models.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "unauthenticated", body.Error.Type)
}

func TestHandleSummarizeEmailErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"unauthenticated", models.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
		{"no match", models.ErrNoMatch, http.StatusNotFound, "no_match"},
		{"upstream timeout", models.ErrUpstreamTimeout, http.StatusGatewayTimeout, "upstream_timeout"},
		{"upstream query", models.ErrUpstreamQuery, http.StatusBadGateway, "upstream_query_failed"},
		{"unsupported body", models.ErrUnsupportedBody, http.StatusUnprocessableEntity, "unsupported_body"},
		{"backend unavailable", models.ErrBackendUnavailable, http.StatusServiceUnavailable, "backend_unavailable"},
		{"backend rejected", models.ErrBackendRejected, http.StatusBadGateway, "backend_rejected"},
		{"empty result", models.ErrEmptyResult, http.StatusBadGateway, "empty_result"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: fmt.Errorf("wrapped: %w", tt.err)}
			r := newSummarizeRouter(runner, &fakeVerifier{sessionID: "session-1"})

			w := doSummarizeRequest(r, "/ai/summarize_email?q=test", true)
			require.Equal(t, tt.wantStatus, w.Code)

			var body models.APIResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.wantType, body.Error.Type)

			// 上流の生のエラー文字列はレスポンスへ含めない
			assert.NotContains(t, w.Body.String(), "wrapped")
		})
	}
}
