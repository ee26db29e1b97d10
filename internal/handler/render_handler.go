package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/pricetag/internal/layout"
	"github.com/hitoshi/pricetag/internal/metrics"
	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/pdf"
	"github.com/hitoshi/pricetag/internal/workspace"
)

// RenderHandler は値札の印刷出力（ページ要約・HTML・PDF）のHTTPハンドラー。
type RenderHandler struct {
	pdf     pdf.Renderer
	metrics metrics.MetricsCollector
	now     func() time.Time
}

// NewRenderHandler はRenderHandlerを生成する。rendererがnilの場合PDF出力は503になる。
func NewRenderHandler(renderer pdf.Renderer, mc metrics.MetricsCollector) *RenderHandler {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &RenderHandler{pdf: renderer, metrics: mc, now: time.Now}
}

// GetPages はページ分割の要約を返す。フォント調整は行わない。
// GET /api/workspaces/{workspaceID}/render/pages?items_per_page=9
func (h *RenderHandler) GetPages(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	opts, apiErr := parseRenderOptions(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}
	writeJSON(w, http.StatusOK, ws.Pages(opts))
}

// GetHTML は印刷用HTMLを返す。
// GET /api/workspaces/{workspaceID}/render/html?format=A4&margin=5mm&items_per_page=18
func (h *RenderHandler) GetHTML(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	opts, apiErr := parseRenderOptions(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	html, doc, err := ws.RenderHTML(r.Context(), opts)
	if err != nil {
		h.writeRenderError(w, r, ws, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Page-Count", strconv.Itoa(len(doc.Pages)))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

// GetPDF は印刷用HTMLを外部レンダラーでPDFに変換して返す。
// HTML生成はワークスペースのロック内、PDF変換はロックの外で行う。
// GET /api/workspaces/{workspaceID}/render/pdf?format=A4&margin=5mm
func (h *RenderHandler) GetPDF(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}
	if h.pdf == nil {
		writeAPIErrorResponse(w, model.NewPDFNotConfiguredError())
		return
	}
	opts, apiErr := parseRenderOptions(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	html, doc, err := ws.RenderHTML(r.Context(), opts)
	if err != nil {
		h.writeRenderError(w, r, ws, err)
		return
	}

	start := h.now()
	data, err := h.pdf.Render(r.Context(), html, doc.Format, doc.Margin)
	h.metrics.RecordPDF(err == nil, h.now().Sub(start))
	if err != nil {
		if !errors.Is(err, pdf.ErrNotConfigured) {
			slog.Error("pdf render failed",
				slog.String("workspace_id", ws.ID()),
				slog.String("error", err.Error()),
			)
		}
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="price-tags-%s.pdf"`, h.now().UTC().Format("20060102-150405")))
	w.Header().Set("X-Page-Count", strconv.Itoa(len(doc.Pages)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// writeRenderError はHTML生成の失敗を書き込む。クライアントの切断時は何も書かない。
func (h *RenderHandler) writeRenderError(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		return
	}
	slog.Error("render failed",
		slog.String("workspace_id", ws.ID()),
		slog.String("error", err.Error()),
	)
	writeAPIErrorResponse(w, model.NewRenderFailedError())
}

// parseRenderOptions はクエリの用紙サイズ・余白・1ページあたりの枚数を検証する。
// 指定がない項目はサーバー既定値になる。
func parseRenderOptions(r *http.Request) (workspace.RenderOptions, *model.APIError) {
	var opts workspace.RenderOptions
	q := r.URL.Query()
	if v := q.Get("format"); v != "" {
		f, err := layout.ParsePageFormat(v)
		if err != nil {
			return opts, model.NewInvalidPageFormatError(v)
		}
		opts.Format = f
	}
	if v := q.Get("margin"); v != "" {
		m, err := layout.ParseMargin(v)
		if err != nil {
			return opts, model.NewInvalidRequestError(fmt.Sprintf("余白の指定が不正です: %s", v))
		}
		opts.Margin = m
	}
	if v := q.Get("items_per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > layout.MaxItemsPerPage {
			return opts, model.NewInvalidRequestError(
				fmt.Sprintf("items_per_pageは1から%dの整数で指定してください: %s", layout.MaxItemsPerPage, v))
		}
		opts.ItemsPerPage = n
	}
	return opts, nil
}
