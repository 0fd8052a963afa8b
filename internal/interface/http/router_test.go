package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/ai-helloworld/internal/domain/auth"
	"github.com/yanqian/ai-helloworld/internal/domain/chat"
	"github.com/yanqian/ai-helloworld/internal/domain/externalsync"
	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
	"github.com/yanqian/ai-helloworld/internal/domain/widget"
	"github.com/yanqian/ai-helloworld/internal/infra/config"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

const defaultAuthToken = "valid-token"

func TestRouter_AskSuccess(t *testing.T) {
	chatSvc := &stubChat{
		askFn: func(ctx context.Context, userID int64, req chat.Request) (chat.Response, error) {
			require.Equal(t, int64(1), userID)
			require.Equal(t, "how do I reset my password?", req.Question)
			return chat.Response{Answer: "click forgot password", MessageID: "m1", ConversationID: "c1"}, nil
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/chat", `{"question":"how do I reset my password?"}`, newRouterUnderTest(t, routerDeps{chat: chatSvc}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp chat.Response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Equal(t, "click forgot password", resp.Answer)
}

func TestRouter_AskInvalidQuestion(t *testing.T) {
	chatSvc := &stubChat{
		askFn: func(ctx context.Context, userID int64, req chat.Request) (chat.Response, error) {
			return chat.Response{}, apperrors.Wrap("invalid_input", "question must be between 1 and 1000 characters", nil)
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/chat", `{"question":""}`, newRouterUnderTest(t, routerDeps{chat: chatSvc}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_input", errBody["error"]["code"])
}

func TestRouter_ListConversations(t *testing.T) {
	chatSvc := &stubChat{
		listConversationsFn: func(ctx context.Context, userID int64) ([]chat.Conversation, error) {
			return []chat.Conversation{{ID: "c1", Title: "hi..."}}, nil
		},
	}
	recorder := performRequest(http.MethodGet, "/api/v1/conversations", "", newRouterUnderTest(t, routerDeps{chat: chatSvc}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var body struct {
		Conversations []chat.Conversation `json:"conversations"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Len(t, body.Conversations, 1)
}

func TestRouter_SetFeedback(t *testing.T) {
	chatSvc := &stubChat{
		feedbackFn: func(ctx context.Context, messageID string, feedback chat.Feedback, clientIP string) error {
			require.Equal(t, "m1", messageID)
			require.Equal(t, chat.FeedbackUp, feedback)
			return nil
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/messages/m1/feedback", `{"feedback":"up"}`, newRouterUnderTest(t, routerDeps{chat: chatSvc}))
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouter_SetFeedbackInvalid(t *testing.T) {
	recorder := performRequest(http.MethodPost, "/api/v1/messages/m1/feedback", `{"feedback":"sideways"}`, newRouterUnderTest(t, routerDeps{}))
	require.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRouter_RegisterSuccess(t *testing.T) {
	authSvc := &stubAuth{
		registerFn: func(ctx context.Context, req auth.RegisterRequest) (auth.UserView, error) {
			require.Equal(t, "new_user", req.Username)
			return auth.UserView{ID: 42, Username: req.Username, Email: req.Email}, nil
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/auth/register", `{"username":"new_user","email":"user@example.com","password":"password123"}`, newRouterUnderTest(t, routerDeps{auth: authSvc}))
	require.Equal(t, http.StatusCreated, recorder.Code)

	var body struct {
		User auth.UserView `json:"user"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, "new_user", body.User.Username)
}

func TestRouter_LoginInvalidCredentials(t *testing.T) {
	authSvc := &stubAuth{
		loginFn: func(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error) {
			return auth.LoginResponse{}, apperrors.Wrap("invalid_credentials", "invalid username or password", nil)
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/auth/login", `{"username":"new_user","password":"wrong"}`, newRouterUnderTest(t, routerDeps{auth: authSvc}))
	require.Equal(t, http.StatusUnauthorized, recorder.Code)

	errBody := decodeErrorBody(t, recorder.Body.Bytes())
	require.Equal(t, "invalid_credentials", errBody["error"]["code"])
}

func TestRouter_RefreshSuccess(t *testing.T) {
	authSvc := &stubAuth{
		refreshFn: func(ctx context.Context, token string) (auth.LoginResponse, error) {
			require.Equal(t, "refresh-token", token)
			return auth.LoginResponse{AccessToken: "new-access", RefreshToken: "new-refresh"}, nil
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/auth/refresh", `{"refresh_token":"refresh-token"}`, newRouterUnderTest(t, routerDeps{auth: authSvc}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp auth.LoginResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Equal(t, "new-access", resp.AccessToken)
}

func TestRouter_ProtectedRequiresAuth(t *testing.T) {
	server := newRouterUnderTest(t, routerDeps{})
	recorder := performRequestOpts(http.MethodPost, "/api/v1/chat", `{"question":"hi"}`, server, withoutAuth())
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRouter_Profile(t *testing.T) {
	authSvc := &stubAuth{
		validateFn: func(ctx context.Context, token string) (auth.Claims, error) {
			return auth.Claims{UserID: 99, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
		profileFn: func(ctx context.Context, userID int64) (auth.UserView, error) {
			return auth.UserView{ID: userID, Username: "someone"}, nil
		},
	}
	recorder := performRequest(http.MethodGet, "/api/v1/auth/me", "", newRouterUnderTest(t, routerDeps{auth: authSvc}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var body auth.UserView
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	require.Equal(t, "someone", body.Username)
}

func TestRouter_CleanupTokensRequiresAdmin(t *testing.T) {
	authSvc := defaultStubAuth()
	authSvc.profileFn = func(ctx context.Context, userID int64) (auth.UserView, error) {
		return auth.UserView{ID: userID, IsAdmin: false}, nil
	}
	recorder := performRequest(http.MethodPost, "/api/v1/auth/cleanup-tokens", "", newRouterUnderTest(t, routerDeps{auth: authSvc}))
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRouter_GenerateWidget(t *testing.T) {
	widgetSvc := &stubWidget{
		generateFn: func(ctx context.Context, ownerID int64, username string, req widget.GenerateRequest) (widget.GenerateResponse, error) {
			return widget.GenerateResponse{WidgetToken: "wt", BotID: "bot1", BotName: "Bot"}, nil
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/widget/generate", `{}`, newRouterUnderTest(t, routerDeps{widget: widgetSvc}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp widget.GenerateResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Equal(t, "wt", resp.WidgetToken)
}

func TestRouter_WidgetChat(t *testing.T) {
	widgetSvc := &stubWidget{
		sendMessageFn: func(ctx context.Context, req widget.MessageRequest) (widget.MessageResponse, error) {
			require.Equal(t, "session-1", req.SessionToken)
			return widget.MessageResponse{Answer: "hi there"}, nil
		},
	}
	recorder := performRequest(http.MethodPost, "/api/v1/widget/chat", `{"session_token":"session-1","question":"hello"}`, newRouterUnderTest(t, routerDeps{widget: widgetSvc}))
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRouter_WidgetChat_RequiresWidgetToken(t *testing.T) {
	widgetSvc := &stubWidget{
		sendMessageFn: func(ctx context.Context, req widget.MessageRequest) (widget.MessageResponse, error) {
			return widget.MessageResponse{Answer: "hi there"}, nil
		},
	}
	recorder := performRequestNoAuth(http.MethodPost, "/api/v1/widget/chat", `{"session_token":"session-1","question":"hello"}`, newRouterUnderTest(t, routerDeps{widget: widgetSvc}))
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRouter_SyncDataSource(t *testing.T) {
	ingestSched := ingest.NewScheduler(&stubIngestRepo{
		getFn: func(ctx context.Context, workspaceID, id string) (ingest.DataSource, bool, error) {
			return ingest.DataSource{ID: id, WorkspaceID: workspaceID}, true, nil
		},
	}, &stubIngestor{
		ingestFn: func(ctx context.Context, src ingest.DataSource) (ingest.Result, error) {
			return ingest.Result{ChunksAdded: 3}, nil
		},
	}, newTestLogger())

	recorder := performRequest(http.MethodPost, "/api/v1/datasources/src1/sync", "", newRouterUnderTest(t, routerDeps{ingestSched: ingestSched}))
	require.Equal(t, http.StatusOK, recorder.Code)

	var result ingest.Result
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	require.Equal(t, 3, result.ChunksAdded)
}

func TestRouter_CORSPreflight(t *testing.T) {
	server := newRouterUnderTest(t, routerDeps{})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chat", nil)
	recorder := httptest.NewRecorder()
	server.Handler.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusNoContent, recorder.Code)
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RetryOnTransientFailure(t *testing.T) {
	var calls int
	chatSvc := &stubChat{
		askFn: func(ctx context.Context, userID int64, req chat.Request) (chat.Response, error) {
			calls++
			if calls == 1 {
				return chat.Response{}, errors.New("temporary failure")
			}
			return chat.Response{Answer: "recovered"}, nil
		},
	}
	server := newRouterUnderTest(t, routerDeps{chat: chatSvc}, func(cfg *config.Config) {
		cfg.HTTP.Retry.Enabled = true
		cfg.HTTP.Retry.MaxAttempts = 2
		cfg.HTTP.Retry.BaseBackoff = 0
	})

	recorder := performRequest(http.MethodPost, "/api/v1/chat", `{"question":"hi there"}`, server)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, 2, calls)
}

func TestRouter_RateLimitExceeded(t *testing.T) {
	server := newRouterUnderTest(t, routerDeps{}, func(cfg *config.Config) {
		cfg.HTTP.RateLimit.Enabled = true
		cfg.HTTP.RateLimit.RequestsPerMinute = 1
		cfg.HTTP.RateLimit.Burst = 1
	})

	first := performRequest(http.MethodPost, "/api/v1/chat", `{"question":"hi there"}`, server)
	require.Equal(t, http.StatusOK, first.Code)

	second := performRequest(http.MethodPost, "/api/v1/chat", `{"question":"hi there"}`, server)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
}

// ----------------------------- test plumbing -----------------------------

func performRequest(method, path, body string, server *http.Server) *httptest.ResponseRecorder {
	return performRequestOpts(method, path, body, server)
}

func performRequestNoAuth(method, path, body string, server *http.Server) *httptest.ResponseRecorder {
	return performRequestOpts(method, path, body, server, withoutAuth())
}

func performRequestOpts(method, path, body string, server *http.Server, opts ...requestOption) *httptest.ResponseRecorder {
	var payload io.Reader
	if body != "" {
		payload = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, payload)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.10")
	req.RemoteAddr = "203.0.113.1:1234"
	req.Header.Set("Authorization", "Bearer "+defaultAuthToken)
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

type requestOption func(req *http.Request)

func withoutAuth() requestOption {
	return func(req *http.Request) {
		req.Header.Del("Authorization")
	}
}

type routerDeps struct {
	chat        chat.Service
	auth        *stubAuth
	ingestRepo  ingest.Repository
	ingestSched *ingest.Scheduler
	syncer      externalsync.Syncer
	widget      widget.Service
}

func newRouterUnderTest(t *testing.T, deps routerDeps, overrides ...func(*config.Config)) *http.Server {
	t.Helper()
	if deps.chat == nil {
		deps.chat = &stubChat{}
	}
	if deps.auth == nil {
		deps.auth = defaultStubAuth()
	}
	if deps.ingestRepo == nil {
		deps.ingestRepo = &stubIngestRepo{}
	}
	if deps.ingestSched == nil {
		deps.ingestSched = ingest.NewScheduler(deps.ingestRepo, &stubIngestor{}, newTestLogger())
	}
	if deps.syncer == nil {
		deps.syncer = &stubSyncer{}
	}
	if deps.widget == nil {
		deps.widget = &stubWidget{}
	}

	handler := NewHandler(deps.auth, deps.chat, deps.ingestRepo, deps.ingestSched, &stubWriter{}, deps.syncer, nil, deps.widget, newTestLogger())
	cfg := &config.Config{
		HTTP: config.HTTPConfig{
			Address:        ":0",
			ReadTimeout:    time.Second,
			WriteTimeout:   time.Second,
			AllowedOrigins: []string{"*"},
			RateLimit:      config.RateLimitConfig{Enabled: false},
			Retry:          config.RetryConfig{Enabled: false},
		},
	}
	for _, override := range overrides {
		override(cfg)
	}
	return NewRouter(cfg, handler)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeErrorBody(t *testing.T, raw []byte) map[string]map[string]string {
	t.Helper()
	var body map[string]map[string]string
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func defaultStubAuth() *stubAuth {
	return &stubAuth{
		validateFn: func(ctx context.Context, token string) (auth.Claims, error) {
			if token != defaultAuthToken {
				return auth.Claims{}, apperrors.Wrap("invalid_token", "invalid token", nil)
			}
			return auth.Claims{UserID: 1, ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
		profileFn: func(ctx context.Context, userID int64) (auth.UserView, error) {
			return auth.UserView{ID: userID, Username: "tester", CurrentWorkspaceID: "ws1", IsAdmin: true}, nil
		},
	}
}

// ----------------------------- stubs -----------------------------

type stubChat struct {
	askFn               func(ctx context.Context, userID int64, req chat.Request) (chat.Response, error)
	feedbackFn          func(ctx context.Context, messageID string, feedback chat.Feedback, clientIP string) error
	listConversationsFn func(ctx context.Context, userID int64) ([]chat.Conversation, error)
	listMessagesFn      func(ctx context.Context, workspaceID, conversationID string) ([]chat.Message, error)
}

func (s *stubChat) Ask(ctx context.Context, userID int64, req chat.Request) (chat.Response, error) {
	if s.askFn != nil {
		return s.askFn(ctx, userID, req)
	}
	return chat.Response{}, nil
}

func (s *stubChat) Feedback(ctx context.Context, messageID string, feedback chat.Feedback, clientIP string) error {
	if s.feedbackFn != nil {
		return s.feedbackFn(ctx, messageID, feedback, clientIP)
	}
	return nil
}

func (s *stubChat) ListConversations(ctx context.Context, userID int64) ([]chat.Conversation, error) {
	if s.listConversationsFn != nil {
		return s.listConversationsFn(ctx, userID)
	}
	return nil, nil
}

func (s *stubChat) ListMessages(ctx context.Context, workspaceID, conversationID string) ([]chat.Message, error) {
	if s.listMessagesFn != nil {
		return s.listMessagesFn(ctx, workspaceID, conversationID)
	}
	return nil, nil
}

type stubAuth struct {
	registerFn func(ctx context.Context, req auth.RegisterRequest) (auth.UserView, error)
	loginFn    func(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error)
	refreshFn  func(ctx context.Context, token string) (auth.LoginResponse, error)
	validateFn func(ctx context.Context, token string) (auth.Claims, error)
	profileFn  func(ctx context.Context, userID int64) (auth.UserView, error)
	logoutFn   func(ctx context.Context, token string) error
}

func (s *stubAuth) Register(ctx context.Context, req auth.RegisterRequest) (auth.UserView, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, req)
	}
	return auth.UserView{}, nil
}

func (s *stubAuth) Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResponse, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, req)
	}
	return auth.LoginResponse{}, nil
}

func (s *stubAuth) GoogleAuthURL(ctx context.Context, state, codeChallenge string) (string, error) {
	return "https://accounts.google.com/o/oauth2/v2/auth", nil
}

func (s *stubAuth) GoogleCallback(ctx context.Context, code, codeVerifier string) (auth.LoginResponse, error) {
	return auth.LoginResponse{}, nil
}

func (s *stubAuth) ValidateToken(ctx context.Context, token string) (auth.Claims, error) {
	if s.validateFn != nil {
		return s.validateFn(ctx, token)
	}
	return auth.Claims{}, nil
}

func (s *stubAuth) Refresh(ctx context.Context, refreshToken string) (auth.LoginResponse, error) {
	if s.refreshFn != nil {
		return s.refreshFn(ctx, refreshToken)
	}
	return auth.LoginResponse{}, nil
}

func (s *stubAuth) Profile(ctx context.Context, userID int64) (auth.UserView, error) {
	if s.profileFn != nil {
		return s.profileFn(ctx, userID)
	}
	return auth.UserView{}, nil
}

func (s *stubAuth) Logout(ctx context.Context, refreshToken string) error {
	if s.logoutFn != nil {
		return s.logoutFn(ctx, refreshToken)
	}
	return nil
}

func (s *stubAuth) LogoutAll(ctx context.Context, userID int64) error { return nil }

func (s *stubAuth) CleanupExpiredTokens(ctx context.Context) (auth.CleanupResult, error) {
	return auth.CleanupResult{}, nil
}

func (s *stubAuth) IssueWidgetToken(ctx context.Context, ownerID int64, botID string) (string, time.Time, error) {
	return "widget-token", time.Now().Add(time.Hour), nil
}

func (s *stubAuth) VerifyWidgetToken(ctx context.Context, token string) (auth.Claims, error) {
	return auth.Claims{}, nil
}

type stubIngestRepo struct {
	getFn func(ctx context.Context, workspaceID, id string) (ingest.DataSource, bool, error)
}

func (s *stubIngestRepo) Get(ctx context.Context, workspaceID, id string) (ingest.DataSource, bool, error) {
	if s.getFn != nil {
		return s.getFn(ctx, workspaceID, id)
	}
	return ingest.DataSource{}, false, nil
}

func (s *stubIngestRepo) GetByReference(ctx context.Context, workspaceID, reference string) (ingest.DataSource, bool, error) {
	return ingest.DataSource{}, false, nil
}

func (s *stubIngestRepo) ListRegular(ctx context.Context, workspaceID string, onlyUnsynced bool) ([]ingest.DataSource, error) {
	return nil, nil
}

func (s *stubIngestRepo) Upsert(ctx context.Context, src ingest.DataSource) (ingest.DataSource, error) {
	return src, nil
}

func (s *stubIngestRepo) MarkSynced(ctx context.Context, id string, synced bool, lastSyncedAt *time.Time) error {
	return nil
}

type stubIngestor struct {
	ingestFn func(ctx context.Context, src ingest.DataSource) (ingest.Result, error)
}

func (s *stubIngestor) Ingest(ctx context.Context, src ingest.DataSource) (ingest.Result, error) {
	if s.ingestFn != nil {
		return s.ingestFn(ctx, src)
	}
	return ingest.Result{}, nil
}

func (s *stubIngestor) Unsync(ctx context.Context, src ingest.DataSource) error {
	return nil
}

type stubSyncer struct{}

func (s *stubSyncer) ListTeams(ctx context.Context, workspaceID string) ([]externalsync.Team, error) {
	return nil, nil
}
func (s *stubSyncer) ListSpaces(ctx context.Context, workspaceID, teamID string) ([]externalsync.Space, error) {
	return nil, nil
}
func (s *stubSyncer) ListLists(ctx context.Context, workspaceID, spaceID string) ([]externalsync.List, error) {
	return nil, nil
}
func (s *stubSyncer) ListTasks(ctx context.Context, workspaceID, listID string) ([]externalsync.Task, error) {
	return nil, nil
}
func (s *stubSyncer) SyncTask(ctx context.Context, workspaceID, taskID string, ownerID int64) (externalsync.SyncResult, error) {
	return externalsync.SyncResult{}, nil
}
func (s *stubSyncer) SyncList(ctx context.Context, workspaceID, listID string, ownerID int64) (externalsync.BatchResult, error) {
	return externalsync.BatchResult{}, nil
}
func (s *stubSyncer) UnsyncTask(ctx context.Context, workspaceID, taskID string) error {
	return nil
}

type stubWidget struct {
	generateFn    func(ctx context.Context, ownerID int64, username string, req widget.GenerateRequest) (widget.GenerateResponse, error)
	startFn       func(ctx context.Context, widgetToken, visitorIdentifier string) (widget.ChatSession, error)
	sendMessageFn func(ctx context.Context, req widget.MessageRequest) (widget.MessageResponse, error)
}

func (s *stubWidget) GenerateToken(ctx context.Context, ownerID int64, username string, req widget.GenerateRequest) (widget.GenerateResponse, error) {
	if s.generateFn != nil {
		return s.generateFn(ctx, ownerID, username, req)
	}
	return widget.GenerateResponse{}, nil
}

func (s *stubWidget) StartSession(ctx context.Context, widgetToken, visitorIdentifier string) (widget.ChatSession, error) {
	if s.startFn != nil {
		return s.startFn(ctx, widgetToken, visitorIdentifier)
	}
	return widget.ChatSession{}, nil
}

func (s *stubWidget) SendMessage(ctx context.Context, req widget.MessageRequest) (widget.MessageResponse, error) {
	if s.sendMessageFn != nil {
		return s.sendMessageFn(ctx, req)
	}
	return widget.MessageResponse{}, nil
}

type stubWriter struct{}

func (s *stubWriter) Write(ctx context.Context, workspaceID, filename, content string) (string, float64, error) {
	return "/data/" + workspaceID + "/" + filename, 0.01, nil
}
