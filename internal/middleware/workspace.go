// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/workspace"
)

// WorkspaceIDParam はワークスペースIDを受け取るURLパラメータ名。
const WorkspaceIDParam = "workspaceID"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// workspaceContextKey はリクエストコンテキストにワークスペースを格納するためのキー。
var workspaceContextKey = contextKey("workspace")

// WorkspaceFinder はワークスペースの検索に必要なインターフェース。
// workspace.Managerの部分集合として定義する。
type WorkspaceFinder interface {
	Get(ctx context.Context, id string) (*workspace.Workspace, error)
}

// NewWorkspaceMiddleware はURLパラメータ {workspaceID} からワークスペースを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 存在しないワークスペースには404、読み込み失敗には500を返す。
func NewWorkspaceMiddleware(finder WorkspaceFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, WorkspaceIDParam)
			if id == "" {
				WriteErrorResponse(w, http.StatusNotFound, model.NewWorkspaceNotFoundError(id))
				return
			}

			ws, err := finder.Get(r.Context(), id)
			if errors.Is(err, workspace.ErrNotFound) {
				WriteErrorResponse(w, http.StatusNotFound, model.NewWorkspaceNotFoundError(id))
				return
			}
			if err != nil {
				slog.Error("failed to load workspace",
					slog.String("workspace_id", id),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithWorkspace(r.Context(), ws)))
		})
	}
}

// WorkspaceFromContext はリクエストコンテキストからワークスペースを取得する。
// ワークスペースミドルウェアを通過したリクエストでのみ有効。
func WorkspaceFromContext(ctx context.Context) (*workspace.Workspace, bool) {
	ws, ok := ctx.Value(workspaceContextKey).(*workspace.Workspace)
	return ws, ok && ws != nil
}

// WorkspaceIDFromContext はコンテキストのワークスペースIDを返す。なければ空文字。
func WorkspaceIDFromContext(ctx context.Context) string {
	if ws, ok := WorkspaceFromContext(ctx); ok {
		return ws.ID()
	}
	return ""
}

// ContextWithWorkspace はコンテキストにワークスペースを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithWorkspace(ctx context.Context, ws *workspace.Workspace) context.Context {
	return context.WithValue(ctx, workspaceContextKey, ws)
}
