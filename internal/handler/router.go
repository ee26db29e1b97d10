package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pricetag/internal/metrics"
	"github.com/hitoshi/pricetag/internal/middleware"
	"github.com/hitoshi/pricetag/internal/pdf"
	"github.com/hitoshi/pricetag/internal/security"
)

// WorkspaceManager はルーターが必要とするワークスペース管理のインターフェース。
// workspace.Managerが実装する。
type WorkspaceManager interface {
	middleware.WorkspaceFinder
	WorkspaceServiceInterface
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 監視
	HealthChecker HealthChecker // nilの場合は常に正常
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer

	// ワークスペース
	Workspaces      WorkspaceManager
	WorkspaceConfig WorkspaceHandlerConfig

	// インポート・出力
	Sanitizer    security.TextSanitizer
	Sheets       SheetsFetcher
	ImportConfig ImportHandlerConfig
	PDF          pdf.Renderer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → (Workspace → RateLimit(General))
//
// PDF出力にはさらにRateLimit(Export)を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	themeHandler := NewThemeHandler()
	workspaceHandler := NewWorkspaceHandler(deps.Workspaces, deps.WorkspaceConfig)
	itemHandler := NewItemHandler(deps.Sanitizer)
	settingsHandler := NewSettingsHandler(deps.Sanitizer)
	importHandler := NewImportHandler(deps.Sheets, deps.Sanitizer, deps.Metrics, deps.ImportConfig)
	renderHandler := NewRenderHandler(deps.PDF, deps.Metrics)

	// --- 監視 ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- テーマ（ワークスペース非依存） ---
	r.Route("/api/themes", func(r chi.Router) {
		r.Get("/", themeHandler.ListThemes)
		r.Get("/categories", themeHandler.ListCategories)
		r.Get("/export", themeHandler.ExportThemes)
		r.Post("/validate", themeHandler.ValidateTheme)
	})

	// --- ワークスペース ---
	r.Route("/api/workspaces", func(r chi.Router) {
		r.Post("/", workspaceHandler.CreateWorkspace)

		// ミドルウェアスタック: Workspace → RateLimit(General)
		r.Route("/{"+middleware.WorkspaceIDParam+"}", func(r chi.Router) {
			r.Use(middleware.NewWorkspaceMiddleware(deps.Workspaces))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/", workspaceHandler.GetWorkspace)
			r.Delete("/", workspaceHandler.DeleteWorkspace)

			// 商品
			r.Route("/items", func(r chi.Router) {
				r.Get("/", itemHandler.ListItems)
				r.Put("/", itemHandler.ReplaceItems)
				r.Delete("/", itemHandler.ClearItems)
				r.Post("/", itemHandler.AddItem)
				r.Post("/duplicate", itemHandler.DuplicateItems)
				r.Patch("/{itemID}", itemHandler.UpdateItem)
				r.Delete("/{itemID}", itemHandler.DeleteItem)
			})

			// 履歴
			r.Route("/history", func(r chi.Router) {
				r.Get("/", itemHandler.GetHistory)
				r.Post("/undo", itemHandler.Undo)
				r.Post("/redo", itemHandler.Redo)
			})

			// 設定
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", settingsHandler.GetSettings)
				r.Patch("/", settingsHandler.PatchSettings)
				r.Get("/themes/export", settingsHandler.ExportThemes)
				r.Post("/themes/import", settingsHandler.ImportThemes)
				r.Put("/themes/{key}", settingsHandler.PutTheme)
			})

			// インポート
			r.Route("/imports", func(r chi.Router) {
				r.Post("/csv", importHandler.ImportCSV)
				r.Post("/excel", importHandler.ImportExcel)
				r.Post("/clipboard", importHandler.ImportClipboard)
				r.Post("/sheets", importHandler.ImportSheets)
			})

			// 出力（PDFは出力専用のレート制限を追加）
			r.Route("/render", func(r chi.Router) {
				r.Get("/pages", renderHandler.GetPages)
				r.Get("/html", renderHandler.GetHTML)
				r.With(deps.RateLimiter.ExportMiddleware()).Get("/pdf", renderHandler.GetPDF)
			})
		})
	})

	return r
}
