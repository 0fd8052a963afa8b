package http

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/ai-helloworld/internal/domain/auth"
	"github.com/yanqian/ai-helloworld/internal/domain/chat"
	"github.com/yanqian/ai-helloworld/internal/domain/externalsync"
	"github.com/yanqian/ai-helloworld/internal/domain/ingest"
	"github.com/yanqian/ai-helloworld/internal/domain/widget"
	apperrors "github.com/yanqian/ai-helloworld/pkg/errors"
)

// textWriter persists raw uploaded content under a workspace's data
// directory and reports the path/size it landed at.
type textWriter interface {
	Write(ctx context.Context, workspaceID, filename, content string) (path string, sizeMB float64, err error)
}

// Handler wires the HTTP transport to domain services.
type Handler struct {
	authSvc    auth.Service
	chatSvc    chat.Service
	ingestRepo ingest.Repository
	ingestSvc  *ingest.Scheduler
	writer     textWriter
	syncer     externalsync.Syncer
	syncSched  *externalsync.Scheduler
	widgetSvc  widget.Service
	logger     *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(
	authSvc auth.Service,
	chatSvc chat.Service,
	ingestRepo ingest.Repository,
	ingestSvc *ingest.Scheduler,
	writer textWriter,
	syncer externalsync.Syncer,
	syncSched *externalsync.Scheduler,
	widgetSvc widget.Service,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		authSvc:    authSvc,
		chatSvc:    chatSvc,
		ingestRepo: ingestRepo,
		ingestSvc:  ingestSvc,
		writer:     writer,
		syncer:     syncer,
		syncSched:  syncSched,
		widgetSvc:  widgetSvc,
		logger:     logger.With("component", "http.handler"),
	}
}

// ----------------------------- Auth -----------------------------

const refreshCookieName = "refresh_token"

func setRefreshCookie(c *gin.Context, token string, ttl time.Duration) {
	secure := c.Request.TLS != nil
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, token, int(ttl.Seconds()), "/", "", secure, true)
}

func clearRefreshCookie(c *gin.Context) {
	secure := c.Request.TLS != nil
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(refreshCookieName, "", -1, "/", "", secure, true)
}

func readRefreshToken(c *gin.Context) string {
	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie != "" {
		return cookie
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}

// Register handles account creation.
func (h *Handler) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	user, err := h.authSvc.Register(c.Request.Context(), req)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

// Login authenticates and issues an access/refresh token pair, setting
// the refresh token as an HttpOnly cookie in addition to the body.
func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	setRefreshCookie(c, resp.RefreshToken, 30*24*time.Hour)
	c.JSON(http.StatusOK, resp)
}

// Refresh rotates a refresh token, reading it from the cookie or the
// request body.
func (h *Handler) Refresh(c *gin.Context) {
	token := readRefreshToken(c)
	resp, err := h.authSvc.Refresh(c.Request.Context(), token)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	setRefreshCookie(c, resp.RefreshToken, 30*24*time.Hour)
	c.JSON(http.StatusOK, resp)
}

// Logout invalidates the presented refresh token.
func (h *Handler) Logout(c *gin.Context) {
	token := readRefreshToken(c)
	if err := h.authSvc.Logout(c.Request.Context(), token); err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// LogoutAll deactivates every refresh token belonging to the caller.
func (h *Handler) LogoutAll(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing auth context", nil))
		return
	}
	if err := h.authSvc.LogoutAll(c.Request.Context(), claims.UserID); err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "logged out everywhere"})
}

// Profile returns the caller's account details.
func (h *Handler) Profile(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing auth context", nil))
		return
	}
	user, err := h.authSvc.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, user)
}

// CleanupTokens is an admin endpoint that deletes expired and
// long-inactive refresh tokens.
func (h *Handler) CleanupTokens(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing auth context", nil))
		return
	}
	user, err := h.authSvc.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	if !user.IsAdmin {
		abortWithError(c, NewHTTPError(http.StatusForbidden, "forbidden", "admin privileges required", nil))
		return
	}
	result, err := h.authSvc.CleanupExpiredTokens(c.Request.Context())
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, result)
}

// GoogleLogin redirects the caller into the Google OAuth consent screen.
func (h *Handler) GoogleLogin(c *gin.Context) {
	state, codeVerifier, codeChallenge, err := auth.NewOAuthState()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "internal", errMessage(err), err))
		return
	}
	url, err := h.authSvc.GoogleAuthURL(c.Request.Context(), state, codeChallenge)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	setOAuthStateCookie(c, state, codeVerifier)
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback completes the OAuth code exchange and issues a token pair.
func (h *Handler) GoogleCallback(c *gin.Context) {
	stored, ok := readOAuthStateCookie(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "missing oauth state", nil))
		return
	}
	if c.Query("state") != stored.State {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "oauth state mismatch", nil))
		return
	}
	resp, err := h.authSvc.GoogleCallback(c.Request.Context(), c.Query("code"), stored.CodeVerifier)
	clearOAuthStateCookie(c)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	setRefreshCookie(c, resp.RefreshToken, 30*24*time.Hour)
	c.JSON(http.StatusOK, resp)
}

// ----------------------------- Chat -----------------------------

// Ask answers a chat question within the caller's current workspace.
func (h *Handler) Ask(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing auth context", nil))
		return
	}
	var req chat.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	resp, err := h.chatSvc.Ask(c.Request.Context(), claims.UserID, req)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListConversations lists the caller's conversations, newest first.
func (h *Handler) ListConversations(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing auth context", nil))
		return
	}
	conversations, err := h.chatSvc.ListConversations(c.Request.Context(), claims.UserID)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// ListMessages lists one conversation's messages in timestamp order.
func (h *Handler) ListMessages(c *gin.Context) {
	workspaceID, err := h.currentWorkspaceID(c)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	messages, err := h.chatSvc.ListMessages(c.Request.Context(), workspaceID, c.Param("id"))
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SetFeedback records a thumbs up/down vote on a message's answer.
func (h *Handler) SetFeedback(c *gin.Context) {
	var req struct {
		Feedback chat.Feedback `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	if req.Feedback != chat.FeedbackUp && req.Feedback != chat.FeedbackDown {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "feedback must be \"up\" or \"down\"", nil))
		return
	}
	if err := h.chatSvc.Feedback(c.Request.Context(), c.Param("id"), req.Feedback, c.ClientIP()); err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "feedback recorded"})
}

// currentWorkspaceID resolves the caller's active workspace via their profile.
func (h *Handler) currentWorkspaceID(c *gin.Context) (string, error) {
	claims, ok := getClaims(c)
	if !ok {
		return "", apperrors.Wrap("unauthorized", "missing auth context", nil)
	}
	user, err := h.authSvc.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		return "", err
	}
	if user.CurrentWorkspaceID == "" {
		return "", apperrors.Wrap("invalid_input", "no active workspace for user", nil)
	}
	return user.CurrentWorkspaceID, nil
}

// ----------------------------- Data sources -----------------------------

type uploadedSource struct {
	ID        string   `json:"id"`
	Reference string   `json:"reference"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	SizeMB    float64  `json:"size_mb"`
}

// Upload accepts one or more multipart files, persists each to the
// workspace's data directory, and records a pending DataSource row.
func (h *Handler) Upload(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing auth context", nil))
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "no files provided", nil))
		return
	}
	workspaceID := c.PostForm("workspace_id")
	if workspaceID == "" {
		resolved, err := h.currentWorkspaceID(c)
		if err != nil {
			status, code := statusForErr(err)
			abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
			return
		}
		workspaceID = resolved
	}
	category := c.PostForm("category")
	var tags []string
	if raw := c.PostForm("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(tag); trimmed != "" {
				tags = append(tags, trimmed)
			}
		}
	}

	results := make([]uploadedSource, 0, len(files))
	for _, fh := range files {
		src, err := h.uploadOne(c.Request.Context(), workspaceID, claims.UserID, category, tags, fh)
		if err != nil {
			h.logger.Warn("upload failed for file", "filename", fh.Filename, "error", err)
			continue
		}
		results = append(results, uploadedSource{
			ID:        src.ID,
			Reference: src.Reference,
			Category:  src.Category,
			Tags:      src.Tags,
			SizeMB:    src.SizeMB,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data_sources": results})
}

func (h *Handler) uploadOne(ctx context.Context, workspaceID string, ownerID int64, category string, tags []string, fh *multipart.FileHeader) (ingest.DataSource, error) {
	file, err := fh.Open()
	if err != nil {
		return ingest.DataSource{}, err
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		return ingest.DataSource{}, err
	}
	path, sizeMB, err := h.writer.Write(ctx, workspaceID, fh.Filename, string(content))
	if err != nil {
		return ingest.DataSource{}, err
	}
	src, err := h.ingestRepo.Upsert(ctx, ingest.DataSource{
		ID:          uuid.NewString(),
		SourceType:  ingest.SourceFile,
		Reference:   fh.Filename,
		Path:        path,
		WorkspaceID: workspaceID,
		OwnerID:     ownerID,
		Category:    category,
		Tags:        tags,
		SizeMB:      sizeMB,
		AddedAt:     time.Now(),
	})
	if err != nil {
		return ingest.DataSource{}, err
	}
	return src, nil
}

// SyncDataSource ingests one regular data source by ID.
func (h *Handler) SyncDataSource(c *gin.Context) {
	workspaceID, err := h.currentWorkspaceID(c)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	result, err := h.ingestSvc.SyncOne(c.Request.Context(), workspaceID, c.Param("id"))
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, result)
}

// UnsyncDataSource removes one regular data source's chunks.
func (h *Handler) UnsyncDataSource(c *gin.Context) {
	workspaceID, err := h.currentWorkspaceID(c)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	if err := h.ingestSvc.UnsyncOne(c.Request.Context(), workspaceID, c.Param("id")); err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "data source unsynced"})
}

// SyncAllDataSources ingests every unsynced regular data source in the
// caller's workspace, returning a structured per-item failure list.
func (h *Handler) SyncAllDataSources(c *gin.Context) {
	workspaceID, err := h.currentWorkspaceID(c)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	result, err := h.ingestSvc.SyncAllRegular(c.Request.Context(), workspaceID)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, result)
}

// UnsyncAllDataSources removes chunks for every synced regular data
// source in the caller's workspace.
func (h *Handler) UnsyncAllDataSources(c *gin.Context) {
	workspaceID, err := h.currentWorkspaceID(c)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	result, err := h.ingestSvc.UnsyncAll(c.Request.Context(), workspaceID)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, result)
}

// SyncExternalTicket pulls one external task, writes its canonical
// text form, and ingests it. The {provider} path segment is reserved
// for future non-ClickUp providers; only "clickup" is served today.
func (h *Handler) SyncExternalTicket(c *gin.Context) {
	if c.Param("provider") != "clickup" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "unsupported external provider", nil))
		return
	}
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing auth context", nil))
		return
	}
	workspaceID := c.Param("source_id")
	result, err := h.syncer.SyncTask(c.Request.Context(), workspaceID, c.Param("ticket_id"), claims.UserID)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, result)
}

// UnsyncExternalTicket removes a previously synced external task's chunks.
func (h *Handler) UnsyncExternalTicket(c *gin.Context) {
	if c.Param("provider") != "clickup" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "unsupported external provider", nil))
		return
	}
	workspaceID := c.Param("source_id")
	if err := h.syncer.UnsyncTask(c.Request.Context(), workspaceID, c.Param("ticket_id")); err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "ticket unsynced"})
}

// ----------------------------- Widget -----------------------------

// GenerateWidget mints a widget token, auto-provisioning a bot when
// none is specified.
func (h *Handler) GenerateWidget(c *gin.Context) {
	claims, ok := getClaims(c)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing auth context", nil))
		return
	}
	var req widget.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	user, err := h.authSvc.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	if req.WorkspaceID == "" {
		req.WorkspaceID = user.CurrentWorkspaceID
	}
	resp, err := h.widgetSvc.GenerateToken(c.Request.Context(), claims.UserID, user.Username, req)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StartWidgetSession starts a visitor's widget conversation. The
// widget token minted by GenerateWidget authenticates the call via
// Authorization: Bearer.
func (h *Handler) StartWidgetSession(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing widget token", nil))
		return
	}
	var req struct {
		VisitorIdentifier string `json:"visitor_identifier"`
	}
	_ = c.ShouldBindJSON(&req)
	session, err := h.widgetSvc.StartSession(c.Request.Context(), token, req.VisitorIdentifier)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, session)
}

// WidgetChat answers one widget chat turn. Like StartWidgetSession, it
// authenticates via the widget token minted by GenerateWidget, carried
// as Authorization: Bearer, in addition to the session_token naming
// which active ChatSession the turn belongs to.
func (h *Handler) WidgetChat(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", "missing widget token", nil))
		return
	}
	var req widget.MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}
	req.WidgetToken = token
	resp, err := h.widgetSvc.SendMessage(c.Request.Context(), req)
	if err != nil {
		status, code := statusForErr(err)
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
