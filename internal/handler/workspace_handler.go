package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pricetag/internal/middleware"
	"github.com/hitoshi/pricetag/internal/workspace"
)

// workspaceCookieName はフロントエンドが最後に使ったワークスペースを覚えておくCookie。
// 認証には使わない。
const workspaceCookieName = "pricetag_workspace"

// WorkspaceServiceInterface はワークスペースハンドラーが必要とするサービスインターフェース。
type WorkspaceServiceInterface interface {
	// Create は既定の設定で新しいワークスペースを作成する。
	Create(ctx context.Context) (*workspace.Workspace, error)
	// Delete はワークスペースを削除する。
	Delete(ctx context.Context, id string) error
}

// WorkspaceHandlerConfig はCookie設定を保持する。
type WorkspaceHandlerConfig struct {
	CookieSecure bool
	CookieMaxAge int // 秒
}

// WorkspaceHandler はワークスペースの作成・参照・削除のHTTPハンドラー。
type WorkspaceHandler struct {
	service WorkspaceServiceInterface
	config  WorkspaceHandlerConfig
}

// NewWorkspaceHandler はWorkspaceHandlerを生成する。
func NewWorkspaceHandler(service WorkspaceServiceInterface, config WorkspaceHandlerConfig) *WorkspaceHandler {
	return &WorkspaceHandler{service: service, config: config}
}

// createWorkspaceResponse はワークスペース作成のAPIレスポンス。
type createWorkspaceResponse struct {
	ID string `json:"id"`
}

// CreateWorkspace は新しいワークスペースを作成する。
// POST /api/workspaces
func (h *WorkspaceHandler) CreateWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, err := h.service.Create(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     workspaceCookieName,
		Value:    ws.ID(),
		Path:     "/",
		MaxAge:   h.config.CookieMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Set("Location", "/api/workspaces/"+ws.ID())
	writeJSON(w, http.StatusCreated, createWorkspaceResponse{ID: ws.ID()})
}

// GetWorkspace は状態の要約を返す。
// GET /api/workspaces/{workspaceID}
func (h *WorkspaceHandler) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Summary())
}

// DeleteWorkspace はワークスペースを削除する。
// DELETE /api/workspaces/{workspaceID}
func (h *WorkspaceHandler) DeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, middleware.WorkspaceIDParam)
	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     workspaceCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// workspaceOrError はコンテキストのワークスペースを返す。
// ワークスペースミドルウェアを通っていない場合は500を書き込んでfalseを返す。
func workspaceOrError(w http.ResponseWriter, r *http.Request) (*workspace.Workspace, bool) {
	ws, ok := middleware.WorkspaceFromContext(r.Context())
	if !ok {
		middleware.WriteInternalServerError(w)
		return nil, false
	}
	return ws, true
}
