package handler

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pricetag/internal/itemstore"
	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/security"
	"github.com/hitoshi/pricetag/internal/settings"
)

// maxItemsPerRequest はPUT /items で一度に受け付ける商品数の上限。
const maxItemsPerRequest = 5000

// ItemHandler は商品コレクションと履歴のHTTPハンドラー。
type ItemHandler struct {
	sanitizer security.TextSanitizer
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(sanitizer security.TextSanitizer) *ItemHandler {
	return &ItemHandler{sanitizer: sanitizer}
}

// itemInput は商品の入力形式。idと表示価格はサーバー側で決める。
type itemInput struct {
	Data        model.Label `json:"data" validate:"required,max=200"`
	Price       float64     `json:"price" validate:"gt=0"`
	DesignType  string      `json:"designType,omitempty" validate:"omitempty,max=64"`
	HasDiscount *bool       `json:"hasDiscount,omitempty"`
	PriceFor2   *float64    `json:"priceFor2,omitempty" validate:"omitempty,gt=0"`
	PriceFrom3  *float64    `json:"priceFrom3,omitempty" validate:"omitempty,gt=0"`
}

// replaceItemsRequest はPUT /items のボディ。
type replaceItemsRequest struct {
	Items []itemInput `json:"items" validate:"max=5000,dive"`
}

// updateItemRequest はPATCH /items/{itemID} のボディ。
type updateItemRequest struct {
	Field string `json:"field" validate:"required"`
	Value any    `json:"value"`
}

// duplicateItemsRequest はPOST /items/duplicate のボディ。
type duplicateItemsRequest struct {
	IDs []snowflake.ID `json:"ids" validate:"required,min=1,max=5000"`
}

// itemListResponse は商品一覧と履歴カーソルのAPIレスポンス。
type itemListResponse struct {
	Items   []model.Item           `json:"items"`
	History itemstore.HistoryState `json:"history"`
}

// duplicateItemsResponse は複製結果のAPIレスポンス。
type duplicateItemsResponse struct {
	IDs []snowflake.ID `json:"ids"`
}

// historyMoveResponse はundo/redoのAPIレスポンス。
type historyMoveResponse struct {
	Moved   bool                   `json:"moved"`
	History itemstore.HistoryState `json:"history"`
	Items   []model.Item           `json:"items"`
}

// ListItems は商品一覧を返す。
// GET /api/workspaces/{workspaceID}/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, itemListResponse{Items: ws.Items(), History: ws.History()})
}

// ReplaceItems はコレクション全体を置き換える。
// PUT /api/workspaces/{workspaceID}/items
func (h *ItemHandler) ReplaceItems(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}

	var req replaceItemsRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	items := make([]model.Item, 0, len(req.Items))
	for _, in := range req.Items {
		items = append(items, h.toItem(in))
	}
	saved := ws.SetItems(r.Context(), items)
	writeJSON(w, http.StatusOK, itemListResponse{Items: saved, History: ws.History()})
}

// ClearItems はコレクションと履歴を空にする。
// DELETE /api/workspaces/{workspaceID}/items
func (h *ItemHandler) ClearItems(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	ws.ClearItems(r.Context())
	writeJSON(w, http.StatusOK, itemListResponse{Items: []model.Item{}, History: ws.History()})
}

// AddItem は商品を1件追加する。
// POST /api/workspaces/{workspaceID}/items
func (h *ItemHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}

	var req itemInput
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	item, err := ws.AddItem(r.Context(), h.toItem(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem は商品の1フィールドを更新する。
// PATCH /api/workspaces/{workspaceID}/items/{itemID}
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}

	rawID := chi.URLParam(r, "itemID")
	id, err := snowflake.ParseString(rawID)
	if err != nil {
		writeAPIErrorResponse(w, model.NewItemNotFoundError(rawID))
		return
	}

	var req updateItemRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}
	if s, isString := req.Value.(string); isString && req.Field == string(itemstore.FieldData) {
		req.Value = h.sanitize(s)
	}

	item, found, err := ws.UpdateItem(r.Context(), id, req.Field, req.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !found {
		writeAPIErrorResponse(w, model.NewItemNotFoundError(rawID))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteItem は商品を削除する。存在しない商品の削除も成功として扱う。
// DELETE /api/workspaces/{workspaceID}/items/{itemID}
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	if id, err := snowflake.ParseString(chi.URLParam(r, "itemID")); err == nil {
		ws.DeleteItem(r.Context(), id)
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateItems は指定された商品を複製する。存在しないIDは無視する。
// POST /api/workspaces/{workspaceID}/items/duplicate
func (h *ItemHandler) DuplicateItems(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}

	var req duplicateItemsRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	created := ws.DuplicateItems(r.Context(), req.IDs)
	if created == nil {
		created = []snowflake.ID{}
	}
	writeJSON(w, http.StatusOK, duplicateItemsResponse{IDs: created})
}

// GetHistory は履歴カーソルの状態を返す。
// GET /api/workspaces/{workspaceID}/history
func (h *ItemHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ws.History())
}

// Undo は履歴を1つ戻す。戻せない場合もエラーにせずmoved=falseを返す。
// POST /api/workspaces/{workspaceID}/history/undo
func (h *ItemHandler) Undo(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	state, moved := ws.Undo(r.Context())
	writeJSON(w, http.StatusOK, historyMoveResponse{Moved: moved, History: state, Items: ws.Items()})
}

// Redo は履歴を1つ進める。進められない場合もエラーにせずmoved=falseを返す。
// POST /api/workspaces/{workspaceID}/history/redo
func (h *ItemHandler) Redo(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	state, moved := ws.Redo(r.Context())
	writeJSON(w, http.StatusOK, historyMoveResponse{Moved: moved, History: state, Items: ws.Items()})
}

// toItem は入力を商品に変換する。商品名はサニタイズする。
func (h *ItemHandler) toItem(in itemInput) model.Item {
	return model.Item{
		Data:        model.Label(h.sanitize(in.Data.String())),
		Price:       in.Price,
		DesignType:  settings.ThemeKey(in.DesignType),
		HasDiscount: in.HasDiscount,
		PriceFor2:   in.PriceFor2,
		PriceFrom3:  in.PriceFrom3,
	}
}

func (h *ItemHandler) sanitize(s string) string {
	if h.sanitizer == nil {
		return s
	}
	return h.sanitizer.Sanitize(s)
}
