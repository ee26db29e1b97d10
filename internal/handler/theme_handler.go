package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/theme"
)

// ThemeHandler は組み込みテーマの参照APIのHTTPハンドラー。
// ワークスペースに依存しない。
type ThemeHandler struct {
	now func() time.Time
}

// NewThemeHandler はThemeHandlerを生成する。
func NewThemeHandler() *ThemeHandler {
	return &ThemeHandler{now: time.Now}
}

// themeListResponse はテーマ一覧のAPIレスポンス。
type themeListResponse struct {
	Themes   model.ThemeSet                 `json:"themes"`
	Metadata map[string]model.ThemeMetadata `json:"metadata"`
}

// themeValidationResponse はテーマ検証のAPIレスポンス。
type themeValidationResponse struct {
	Valid bool `json:"valid"`
}

// ListThemes は全テーマと表示用メタデータを返す。
// GET /api/themes
func (h *ThemeHandler) ListThemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, themeListResponse{
		Themes:   theme.GetAllThemes(),
		Metadata: theme.AllMetadata(),
	})
}

// ListCategories はカテゴリごとに並べたテーマを返す。
// GET /api/themes/categories
func (h *ThemeHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, theme.GetThemesByCategories())
}

// ExportThemes は組み込みテーマのエンベロープをダウンロードさせる。
// GET /api/themes/export
func (h *ThemeHandler) ExportThemes(w http.ResponseWriter, r *http.Request) {
	data, err := theme.Export(nil, h.now())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeThemeEnvelope(w, data, h.now())
}

// ValidateTheme は1件のテーマJSONが妥当かを返す。不正な入力もエラーにはしない。
// POST /api/themes/validate
func (h *ThemeHandler) ValidateTheme(w http.ResponseWriter, r *http.Request) {
	raw, apiErr := readRawBody(w, r, maxJSONBody)
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, themeValidationResponse{Valid: theme.ValidateThemeJSON(raw)})
}

// writeThemeEnvelope はエンベロープJSONを添付ファイルとして書き込む。
func writeThemeEnvelope(w http.ResponseWriter, data []byte, now time.Time) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="price-tag-themes-%s.json"`, now.UTC().Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
