package handler

import (
	"net/http"
	"testing"

	"github.com/hitoshi/pricetag/internal/model"
)

// addItem は商品を1件追加し、作成された商品を返す。
func (ts *testServer) addItem(base string, body map[string]any) model.Item {
	ts.t.Helper()
	w := ts.do(http.MethodPost, base+"/items", body)
	if w.Code != http.StatusCreated {
		ts.t.Fatalf("add item: status = %d, body = %s", w.Code, w.Body.String())
	}
	var item model.Item
	decodeBody(ts.t, w, &item)
	return item
}

func (ts *testServer) listItems(base string) itemListResponse {
	ts.t.Helper()
	w := ts.do(http.MethodGet, base+"/items", nil)
	if w.Code != http.StatusOK {
		ts.t.Fatalf("list items: status = %d", w.Code)
	}
	var resp itemListResponse
	decodeBody(ts.t, w, &resp)
	return resp
}

func TestItemHandler_AddAndList(t *testing.T) {
	ts := newTestServer(t)
	base := ts.createWorkspace()

	item := ts.addItem(base, map[string]any{"data": "  <i>Apple</i> ", "price": 120, "designType": "SALE"})
	if item.ID == 0 {
		t.Error("IDが発行されていない")
	}
	if item.Data != "Apple" {
		t.Errorf("data = %q, want Apple", item.Data)
	}
	if item.DesignType != model.DesignSale {
		t.Errorf("designType = %q, want %q", item.DesignType, model.DesignSale)
	}

	// 数値の商品名も受け付ける
	ts.addItem(base, map[string]any{"data": 42, "price": 1})

	list := ts.listItems(base)
	if len(list.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(list.Items))
	}
	if list.Items[1].Data != "42" {
		t.Errorf("data = %q, want 42", list.Items[1].Data)
	}
	if !list.History.CanUndo || list.History.CanRedo {
		t.Errorf("history = %+v", list.History)
	}
}

func TestItemHandler_AddValidation(t *testing.T) {
	ts := newTestServer(t)
	base := ts.createWorkspace()

	tests := []struct {
		name string
		body any
	}{
		{name: "価格が0", body: map[string]any{"data": "A", "price": 0}},
		{name: "価格が負", body: map[string]any{"data": "A", "price": -5}},
		{name: "商品名なし", body: map[string]any{"price": 10}},
		{name: "JSONでない", body: "{"},
		{name: "空の本文", body: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertAPIError(t, ts.do(http.MethodPost, base+"/items", tt.body), http.StatusBadRequest, model.ErrCodeInvalidRequest)
		})
	}

	if n := len(ts.listItems(base).Items); n != 0 {
		t.Errorf("不正なリクエストで商品が追加された: %d件", n)
	}
}

func TestItemHandler_ReplaceItems(t *testing.T) {
	ts := newTestServer(t)
	base := ts.createWorkspace()
	ts.addItem(base, map[string]any{"data": "old", "price": 10})

	w := ts.do(http.MethodPut, base+"/items", map[string]any{
		"items": []map[string]any{
			{"data": "A", "price": 100},
			{"data": "B", "price": 200, "priceFor2": 180},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp itemListResponse
	decodeBody(t, w, &resp)
	if len(resp.Items) != 2 || resp.Items[0].Data != "A" {
		t.Fatalf("items = %+v", resp.Items)
	}
	if resp.Items[1].PriceFor2 == nil || *resp.Items[1].PriceFor2 != 180 {
		t.Errorf("priceFor2 = %v", resp.Items[1].PriceFor2)
	}

	t.Run("要素の検証エラーは全体を拒否する", func(t *testing.T) {
		w := ts.do(http.MethodPut, base+"/items", map[string]any{
			"items": []map[string]any{{"data": "C", "price": 10}, {"data": "D", "price": 0}},
		})
		assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
		if n := len(ts.listItems(base).Items); n != 2 {
			t.Errorf("items = %d, want 2", n)
		}
	})
}

func TestItemHandler_UpdateItem(t *testing.T) {
	ts := newTestServer(t)
	base := ts.createWorkspace()
	item := ts.addItem(base, map[string]any{"data": "Tea", "price": 1000})
	itemPath := base + "/items/" + item.ID.String()
	if w := ts.do(http.MethodPatch, base+"/settings", map[string]any{"design": true}); w.Code != http.StatusOK {
		t.Fatalf("enable discount: status = %d, body = %s", w.Code, w.Body.String())
	}

	t.Run("価格の更新で割引価格も再計算される", func(t *testing.T) {
		w := ts.do(http.MethodPatch, itemPath, map[string]any{"field": "price", "value": "2000"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		var got model.Item
		decodeBody(t, w, &got)
		if got.Price != 2000 || got.DiscountPrice != 1900 {
			t.Errorf("price/discountPrice = %v/%v, want 2000/1900", got.Price, got.DiscountPrice)
		}
	})

	t.Run("商品名はサニタイズされる", func(t *testing.T) {
		w := ts.do(http.MethodPatch, itemPath, map[string]any{"field": "data", "value": "<b>Green</b> tea"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		var got model.Item
		decodeBody(t, w, &got)
		if got.Data != "Green tea" {
			t.Errorf("data = %q", got.Data)
		}
	})

	errorTests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "未知のフィールド",
			path:       itemPath,
			body:       map[string]any{"field": "color", "value": "red"},
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidField,
		},
		{
			name:       "数値にならない価格",
			path:       itemPath,
			body:       map[string]any{"field": "price", "value": "abc"},
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidValue,
		},
		{
			name:       "0の価格",
			path:       itemPath,
			body:       map[string]any{"field": "price", "value": 0},
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidValue,
		},
		{
			name:       "フィールド名なし",
			path:       itemPath,
			body:       map[string]any{"value": 1},
			wantStatus: http.StatusBadRequest,
			wantCode:   model.ErrCodeInvalidRequest,
		},
		{
			name:       "存在しない商品",
			path:       base + "/items/12345",
			body:       map[string]any{"field": "price", "value": 1},
			wantStatus: http.StatusNotFound,
			wantCode:   model.ErrCodeItemNotFound,
		},
		{
			name:       "IDとして解釈できない",
			path:       base + "/items/abc",
			body:       map[string]any{"field": "price", "value": 1},
			wantStatus: http.StatusNotFound,
			wantCode:   model.ErrCodeItemNotFound,
		},
	}
	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			assertAPIError(t, ts.do(http.MethodPatch, tt.path, tt.body), tt.wantStatus, tt.wantCode)
		})
	}
}

func TestItemHandler_DeleteItem(t *testing.T) {
	ts := newTestServer(t)
	base := ts.createWorkspace()
	a := ts.addItem(base, map[string]any{"data": "A", "price": 1})
	ts.addItem(base, map[string]any{"data": "B", "price": 2})

	if w := ts.do(http.MethodDelete, base+"/items/"+a.ID.String(), nil); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	// 存在しないIDの削除も204
	if w := ts.do(http.MethodDelete, base+"/items/999", nil); w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}

	list := ts.listItems(base)
	if len(list.Items) != 1 || list.Items[0].Data != "B" {
		t.Errorf("items = %+v", list.Items)
	}
}

func TestItemHandler_DuplicateItems(t *testing.T) {
	ts := newTestServer(t)
	base := ts.createWorkspace()
	a := ts.addItem(base, map[string]any{"data": "A", "price": 1})

	w := ts.do(http.MethodPost, base+"/items/duplicate", map[string]any{"ids": []string{a.ID.String(), "777"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp duplicateItemsResponse
	decodeBody(t, w, &resp)
	if len(resp.IDs) != 1 || resp.IDs[0] == a.ID {
		t.Fatalf("ids = %v", resp.IDs)
	}

	list := ts.listItems(base)
	if len(list.Items) != 2 || list.Items[1].Data != "A" {
		t.Errorf("items = %+v", list.Items)
	}

	t.Run("一致なしは空配列", func(t *testing.T) {
		w := ts.do(http.MethodPost, base+"/items/duplicate", map[string]any{"ids": []string{"777"}})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if got := w.Body.String(); got != "{\"ids\":[]}\n" && got != `{"ids":[]}` {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("ID指定なしは400", func(t *testing.T) {
		w := ts.do(http.MethodPost, base+"/items/duplicate", map[string]any{"ids": []string{}})
		assertAPIError(t, w, http.StatusBadRequest, model.ErrCodeInvalidRequest)
	})
}

func TestItemHandler_UndoRedoClear(t *testing.T) {
	ts := newTestServer(t)
	base := ts.createWorkspace()
	ts.addItem(base, map[string]any{"data": "A", "price": 1})
	ts.addItem(base, map[string]any{"data": "B", "price": 2})

	w := ts.do(http.MethodPost, base+"/history/undo", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("undo status = %d", w.Code)
	}
	var undo historyMoveResponse
	decodeBody(t, w, &undo)
	if !undo.Moved || len(undo.Items) != 1 || !undo.History.CanRedo {
		t.Errorf("undo = %+v", undo)
	}

	w = ts.do(http.MethodPost, base+"/history/redo", nil)
	var redo historyMoveResponse
	decodeBody(t, w, &redo)
	if !redo.Moved || len(redo.Items) != 2 || redo.History.CanRedo {
		t.Errorf("redo = %+v", redo)
	}

	// 末尾でのredoは何もしない
	w = ts.do(http.MethodPost, base+"/history/redo", nil)
	decodeBody(t, w, &redo)
	if redo.Moved {
		t.Error("末尾でredoが移動した")
	}

	w = ts.do(http.MethodDelete, base+"/items", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	if n := len(ts.listItems(base).Items); n != 0 {
		t.Errorf("items = %d, want 0", n)
	}

	// クリアは履歴も初期化する
	w = ts.do(http.MethodGet, base+"/history", nil)
	var hist struct {
		Length  int  `json:"length"`
		CanUndo bool `json:"canUndo"`
	}
	decodeBody(t, w, &hist)
	if hist.Length != 1 || hist.CanUndo {
		t.Errorf("history = %+v, want length 1 without undo", hist)
	}
	w = ts.do(http.MethodPost, base+"/history/undo", nil)
	decodeBody(t, w, &undo)
	if undo.Moved {
		t.Error("クリア直後にundoが移動した")
	}
}
