// Package pdf は値札HTMLを外部のヘッドレスブラウザ（Gotenberg互換API）でPDFに変換する。
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/pricetag/internal/layout"
)

// convertPath はHTMLからPDFへの変換エンドポイント。
const convertPath = "/forms/chromium/convert/html"

// maxErrorBody はエラー時に読み込む応答本文の上限。
const maxErrorBody = 512

var (
	// ErrNotConfigured はレンダラーのURLが設定されていないことを表す。
	ErrNotConfigured = errors.New("pdf renderer not configured")
	// ErrRenderFailed はレンダラーがPDFを返さなかったことを表す。
	ErrRenderFailed = errors.New("pdf render failed")
)

// Renderer はHTMLをPDFに変換する。
type Renderer interface {
	Render(ctx context.Context, html string, format layout.PageFormat, margin layout.Margin) ([]byte, error)
}

// Client はGotenberg互換APIのクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient はClientを生成する。baseURLが空の場合、Renderは常にErrNotConfiguredを返す。
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Enabled はレンダラーが設定されているかを返す。
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Render はHTMLをmultipartの index.html として送信し、PDFを受け取る。
func (c *Client) Render(ctx context.Context, html string, format layout.PageFormat, margin layout.Margin) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	body, contentType, err := buildForm(html, format, margin)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+convertPath, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, fmt.Errorf("%w: status %d: %s", ErrRenderFailed, resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}

	c.logger.Info("pdf rendered",
		slog.String("format", string(format)),
		slog.Int("bytes", len(data)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return data, nil
}

// buildForm は変換リクエストのmultipart本文を作る。
// 用紙サイズはインチ、余白は単位付き文字列で渡す。
func buildForm(html string, format layout.PageFormat, margin layout.Margin) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("files", "index.html")
	if err != nil {
		return nil, "", err
	}
	if _, err := io.WriteString(part, html); err != nil {
		return nil, "", err
	}

	size := format.Size()
	fields := map[string]string{
		"paperWidth":        strconv.FormatFloat(size.WidthIn, 'f', -1, 64),
		"paperHeight":       strconv.FormatFloat(size.HeightIn, 'f', -1, 64),
		"printBackground":   "true",
		"preferCssPageSize": "false",
	}
	if margin != "" {
		for _, side := range []string{"marginTop", "marginBottom", "marginLeft", "marginRight"} {
			fields[side] = string(margin)
		}
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
