package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/security"
	"github.com/hitoshi/pricetag/internal/settings"
	"github.com/hitoshi/pricetag/internal/theme"
)

// maxThemeEnvelope はテーマのエンベロープJSONの上限。
const maxThemeEnvelope = 256 << 10

// SettingsHandler はワークスペース設定とテーマ上書きのHTTPハンドラー。
type SettingsHandler struct {
	sanitizer security.TextSanitizer
	now       func() time.Time
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(sanitizer security.TextSanitizer) *SettingsHandler {
	return &SettingsHandler{sanitizer: sanitizer, now: time.Now}
}

// themeImportResponse はテーマ読み込みのAPIレスポンス。
type themeImportResponse struct {
	Themes model.ThemeSet `json:"themes"`
}

// GetSettings は現在の設定を返す。
// GET /api/workspaces/{workspaceID}/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.Settings())
}

// PatchSettings は設定を部分更新する。いずれかの値が不正な場合は何も変更しない。
// PATCH /api/workspaces/{workspaceID}/settings
func (h *SettingsHandler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}

	var patch settings.Patch
	if apiErr := decodeJSON(w, r, &patch); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}
	if patch.IsEmpty() {
		writeAPIErrorResponse(w, model.NewInvalidRequestError("更新するフィールドがありません"))
		return
	}
	if patch.DiscountText != nil && h.sanitizer != nil {
		text := h.sanitizer.Sanitize(*patch.DiscountText)
		patch.DiscountText = &text
	}

	updated, err := ws.ApplySettings(r.Context(), patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// PutTheme はテーマを1件上書きまたは追加する。
// PUT /api/workspaces/{workspaceID}/settings/themes/{key}
func (h *SettingsHandler) PutTheme(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}

	key := chi.URLParam(r, "key")
	raw, apiErr := readRawBody(w, r, maxJSONBody)
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}
	t, valid := theme.ParseThemeJSON(raw)
	if !valid {
		writeAPIErrorResponse(w, model.NewInvalidThemeError(key))
		return
	}

	updated, err := ws.SetTheme(r.Context(), key, t)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ImportThemes はテーマのエンベロープを読み込んでテーマ表を置き換える。
// 不正なエンベロープは422を返し、現在のテーマ表は変更しない。
// POST /api/workspaces/{workspaceID}/settings/themes/import
func (h *SettingsHandler) ImportThemes(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}

	raw, apiErr := readRawBody(w, r, maxThemeEnvelope)
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	themes, imported, err := ws.ImportThemes(r.Context(), raw)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !imported {
		writeAPIErrorResponse(w, model.NewInvalidThemeError("envelope"))
		return
	}
	writeJSON(w, http.StatusOK, themeImportResponse{Themes: themes})
}

// ExportThemes はワークスペースのテーマ表をエンベロープとしてダウンロードさせる。
// GET /api/workspaces/{workspaceID}/settings/themes/export
func (h *SettingsHandler) ExportThemes(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	data, err := ws.ExportThemes()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeThemeEnvelope(w, data, h.now())
}
