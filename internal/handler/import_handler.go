package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/hitoshi/pricetag/internal/importer"
	"github.com/hitoshi/pricetag/internal/metrics"
	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/security"
	"github.com/hitoshi/pricetag/internal/workspace"
)

// uploadField はmultipartアップロードのファイルフィールド名。
const uploadField = "file"

// SheetsFetcher は公開Google Sheetsの取得に必要なインターフェース。
// importer.SheetsClientが実装する。
type SheetsFetcher interface {
	Fetch(ctx context.Context, shareURL string) ([]importer.RawRecord, error)
}

// ImportHandlerConfig はインポートの上限設定。
type ImportHandlerConfig struct {
	MaxUploadSize int64 // バイト
}

// ImportHandler は表形式データのインポートのHTTPハンドラー。
// 各形式をRawRecordに変換し、検証済みの行だけをワークスペースに反映する。
type ImportHandler struct {
	sheets    SheetsFetcher
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	config    ImportHandlerConfig
}

// NewImportHandler はImportHandlerを生成する。
func NewImportHandler(sheets SheetsFetcher, sanitizer security.TextSanitizer, mc metrics.MetricsCollector, config ImportHandlerConfig) *ImportHandler {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &ImportHandler{sheets: sheets, sanitizer: sanitizer, metrics: mc, config: config}
}

// clipboardImportRequest はPOST /imports/clipboard のボディ。
type clipboardImportRequest struct {
	Content string `json:"content" validate:"required"`
	Mode    string `json:"mode" validate:"omitempty,oneof=append replace"`
}

// sheetsImportRequest はPOST /imports/sheets のボディ。
type sheetsImportRequest struct {
	URL  string `json:"url" validate:"required,url"`
	Mode string `json:"mode" validate:"omitempty,oneof=append replace"`
}

// importResponse はインポート結果のAPIレスポンス。
type importResponse struct {
	importer.Result
	Mode      workspace.ImportMode `json:"mode"`
	ItemCount int                  `json:"itemCount"`
}

// ImportCSV はCSVファイルを取り込む。multipartの file フィールドまたは生のボディを受け付ける。
// POST /api/workspaces/{workspaceID}/imports/csv?mode=append|replace
func (h *ImportHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	h.importUpload(w, r, "csv", func(data []byte) ([]importer.RawRecord, error) {
		return importer.ParseCSV(bytes.NewReader(data))
	})
}

// ImportExcel はExcel（.xlsx）ファイルの最初のシートを取り込む。
// POST /api/workspaces/{workspaceID}/imports/excel?mode=append|replace
func (h *ImportHandler) ImportExcel(w http.ResponseWriter, r *http.Request) {
	h.importUpload(w, r, "excel", func(data []byte) ([]importer.RawRecord, error) {
		return importer.ParseExcel(bytes.NewReader(data))
	})
}

// ImportClipboard は表計算ソフトからコピーしたHTMLまたはタブ区切りテキストを取り込む。
// POST /api/workspaces/{workspaceID}/imports/clipboard
func (h *ImportHandler) ImportClipboard(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}

	var req clipboardImportRequest
	if apiErr := decodeJSONLimited(w, r, &req, h.config.MaxUploadSize); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}
	mode, _ := workspace.ParseImportMode(req.Mode)

	records, err := importer.ParseClipboard(req.Content)
	h.apply(w, r, ws, "clipboard", mode, records, err)
}

// ImportSheets は公開されたGoogleスプレッドシートを取得して取り込む。
// POST /api/workspaces/{workspaceID}/imports/sheets
func (h *ImportHandler) ImportSheets(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}

	var req sheetsImportRequest
	if apiErr := decodeJSON(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}
	mode, _ := workspace.ParseImportMode(req.Mode)

	records, err := h.sheets.Fetch(r.Context(), req.URL)
	h.apply(w, r, ws, "sheets", mode, records, err)
}

// importUpload はアップロードされたファイルを読み込んでparseに渡す。
func (h *ImportHandler) importUpload(w http.ResponseWriter, r *http.Request, source string, parse func([]byte) ([]importer.RawRecord, error)) {
	ws, ok := workspaceOrError(w, r)
	if !ok {
		return
	}

	mode, err := workspace.ParseImportMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeAPIErrorResponse(w, model.NewInvalidRequestError(err.Error()))
		return
	}

	data, err := h.readUpload(w, r)
	if err != nil {
		h.metrics.RecordImportFailure(source)
		if apiErr := toAPIError(err); apiErr != nil {
			writeAPIErrorResponse(w, apiErr)
			return
		}
		writeAPIErrorResponse(w, model.NewImportFailedError(err.Error()))
		return
	}

	records, err := parse(data)
	h.apply(w, r, ws, source, mode, records, err)
}

// readUpload はmultipartの file フィールド、または生のボディを上限付きで読み込む。
func (h *ImportHandler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return io.ReadAll(r.Body)
	}

	if err := r.ParseMultipartForm(h.config.MaxUploadSize); err != nil {
		return nil, err
	}
	defer r.MultipartForm.RemoveAll()

	f, _, err := r.FormFile(uploadField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, model.NewInvalidRequestError("file フィールドがありません")
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// apply は解析結果を正規化してワークスペースに反映する。
// 有効な行が1件もない場合はワークスペースを変更せず422を返す。
func (h *ImportHandler) apply(w http.ResponseWriter, r *http.Request, ws *workspace.Workspace, source string, mode workspace.ImportMode, records []importer.RawRecord, parseErr error) {
	if parseErr != nil {
		h.metrics.RecordImportFailure(source)
		slog.Warn("import failed",
			slog.String("workspace_id", ws.ID()),
			slog.String("source", source),
			slog.String("error", parseErr.Error()),
		)
		if apiErr := toAPIError(parseErr); apiErr != nil {
			writeAPIErrorResponse(w, apiErr)
			return
		}
		writeAPIErrorResponse(w, model.NewImportFailedError(parseErr.Error()))
		return
	}

	normalizer := importer.NewNormalizer(h.sanitizer, knownDesigns(ws.Settings()))
	res := normalizer.Normalize(records)
	h.metrics.RecordImport(source, res.Accepted, res.Rejected)

	if res.Accepted == 0 {
		writeAPIErrorResponse(w, model.NewImportEmptyError(res.Rejected))
		return
	}

	count := ws.Import(r.Context(), res.Items, mode)
	writeJSON(w, http.StatusOK, importResponse{Result: res, Mode: mode, ItemCount: count})
}

// knownDesigns はワークスペースのテーマ表にあるキーだけをデザイン種別として受け付ける。
func knownDesigns(s model.Settings) func(string) bool {
	return func(key string) bool {
		_, ok := s.Themes[key]
		return ok
	}
}
