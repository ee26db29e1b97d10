package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/pricetag/internal/fontfit"
	"github.com/hitoshi/pricetag/internal/importer"
	"github.com/hitoshi/pricetag/internal/itemstore"
	"github.com/hitoshi/pricetag/internal/layout"
	"github.com/hitoshi/pricetag/internal/metrics"
	"github.com/hitoshi/pricetag/internal/middleware"
	"github.com/hitoshi/pricetag/internal/repository"
	"github.com/hitoshi/pricetag/internal/security"
	"github.com/hitoshi/pricetag/internal/workspace"
)

// --- モック定義 ---

// mockSheetsFetcher はSheetsFetcherのモック実装。
type mockSheetsFetcher struct {
	fetchFn func(ctx context.Context, shareURL string) ([]importer.RawRecord, error)
}

func (m *mockSheetsFetcher) Fetch(ctx context.Context, shareURL string) ([]importer.RawRecord, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, shareURL)
	}
	return nil, importer.ErrNoRows
}

// mockPDFRenderer はpdf.Rendererのモック実装。
type mockPDFRenderer struct {
	renderFn func(ctx context.Context, html string, format layout.PageFormat, margin layout.Margin) ([]byte, error)
}

func (m *mockPDFRenderer) Render(ctx context.Context, html string, format layout.PageFormat, margin layout.Margin) ([]byte, error) {
	return m.renderFn(ctx, html, format, margin)
}

// recordingMetrics は呼び出されたメトリクスを記録する。
type recordingMetrics struct {
	metrics.NopCollector
	imports  []string
	failures []string
	pdf      []bool
}

func (m *recordingMetrics) RecordImport(source string, accepted, rejected int) {
	m.imports = append(m.imports, source)
}

func (m *recordingMetrics) RecordImportFailure(source string) {
	m.failures = append(m.failures, source)
}

func (m *recordingMetrics) RecordPDF(success bool, _ time.Duration) {
	m.pdf = append(m.pdf, success)
}

// testServer はテスト用のルーターと依存関係。
type testServer struct {
	t       *testing.T
	router  http.Handler
	manager *workspace.Manager
	metrics *recordingMetrics
	sheets  *mockSheetsFetcher
	pdf     *mockPDFRenderer
}

// newTestServer はメモリ保存のワークスペースで完全なルーターを構築する。
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ids, err := itemstore.NewSnowflakeGenerator(1)
	if err != nil {
		t.Fatalf("NewSnowflakeGenerator: %v", err)
	}
	rec := &recordingMetrics{}
	manager := workspace.NewManager(repository.NewMemoryStateRepo(), ids, nil, workspace.Config{
		HistoryLimit: 50,
		Grid:         layout.DefaultGrid(),
		Format:       layout.FormatA4,
		Margin:       "5mm",
		FontFit:      fontfit.DefaultOptions(),
	}, rec, logger)
	t.Cleanup(manager.Close)

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	ts := &testServer{
		t:       t,
		manager: manager,
		metrics: rec,
		sheets:  &mockSheetsFetcher{},
		pdf: &mockPDFRenderer{
			renderFn: func(ctx context.Context, html string, format layout.PageFormat, margin layout.Margin) ([]byte, error) {
				return []byte("%PDF-1.7"), nil
			},
		},
	}
	ts.router = NewRouter(&RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Metrics:           rec,
		Workspaces:        manager,
		WorkspaceConfig:   WorkspaceHandlerConfig{CookieMaxAge: 3600},
		Sanitizer:         security.NewTextSanitizer(),
		Sheets:            ts.sheets,
		ImportConfig:      ImportHandlerConfig{MaxUploadSize: 1 << 16},
		PDF:               ts.pdf,
	})
	return ts
}

// do はリクエストを処理してレスポンスを返す。bodyがstring/[]byte以外ならJSONにする。
func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			ts.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

// createWorkspace はワークスペースを作成してAPIパスの接頭辞を返す。
func (ts *testServer) createWorkspace() string {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/api/workspaces", nil)
	if w.Code != http.StatusCreated {
		ts.t.Fatalf("create workspace: status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp createWorkspaceResponse
	decodeBody(ts.t, w, &resp)
	return "/api/workspaces/" + resp.ID
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v\nbody: %s", err, w.Body.String())
	}
}

// assertAPIError はステータスとエラーコードを検証する。
func assertAPIError(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d (body = %s)", w.Code, wantStatus, w.Body.String())
	}
	var body middleware.ErrorResponseBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v\nbody: %s", err, w.Body.String())
	}
	if body.Code != wantCode {
		t.Errorf("code = %q, want %q", body.Code, wantCode)
	}
}

// requestWithWorkspace はワークスペースを注入済みのリクエストを作る。
func requestWithWorkspace(method, path string, ws *workspace.Workspace) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(middleware.ContextWithWorkspace(req.Context(), ws))
}

func recordHandler(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, req)
	return w
}
