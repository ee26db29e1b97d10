package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hitoshi/pricetag/internal/security"
)

// SheetsHost はGoogle Sheetsの共有URLとして受け付けるホスト。
const SheetsHost = "docs.google.com"

var (
	// ErrInvalidSheetURL はGoogle Sheetsの共有URLとして解釈できないURLを表す。
	ErrInvalidSheetURL = errors.New("invalid google sheets url")
	// ErrBlockedURL はSSRF防止の検証で拒否されたURLを表す。
	ErrBlockedURL = errors.New("blocked url")
	// ErrFetchFailed はシートの取得失敗を表す。
	ErrFetchFailed = errors.New("sheet fetch failed")
	// ErrTooLarge は取得したシートがサイズ上限を超えたことを表す。
	ErrTooLarge = errors.New("sheet too large")
)

var (
	sheetIDPattern = regexp.MustCompile(`^/spreadsheets/d/([a-zA-Z0-9_-]+)`)
	gidPattern     = regexp.MustCompile(`gid=([0-9]+)`)
)

// ExportURL は共有URLをCSVエクスポートURLに変換する。
// シートID（/spreadsheets/d/{id}）が必須で、gidはクエリまたはフラグメントから読む。
func ExportURL(shareURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(shareURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSheetURL, err)
	}
	if !strings.EqualFold(u.Hostname(), SheetsHost) {
		return "", fmt.Errorf("%w: host must be %s", ErrInvalidSheetURL, SheetsHost)
	}
	m := sheetIDPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", fmt.Errorf("%w: spreadsheet id not found", ErrInvalidSheetURL)
	}

	gid := "0"
	if g := u.Query().Get("gid"); g != "" {
		gid = g
	} else if gm := gidPattern.FindStringSubmatch(u.Fragment); gm != nil {
		gid = gm[1]
	}

	q := url.Values{}
	q.Set("format", "csv")
	q.Set("gid", gid)
	return fmt.Sprintf("https://%s/spreadsheets/d/%s/export?%s", SheetsHost, m[1], q.Encode()), nil
}

// SheetsClient は公開されたGoogle SheetsをCSVとして取得する。
type SheetsClient struct {
	guard   security.SSRFGuardService
	client  *http.Client
	maxSize int64
	logger  *slog.Logger
}

// NewSheetsClient はSheetsClientを生成する。
// HTTPクライアントはSSRF防止機能付きのものを使う。
func NewSheetsClient(guard security.SSRFGuardService, timeout time.Duration, maxSize int64, logger *slog.Logger) *SheetsClient {
	return &SheetsClient{
		guard:   guard,
		client:  guard.NewSafeClient(timeout),
		maxSize: maxSize,
		logger:  logger,
	}
}

// Fetch は共有URLのシートを取得してレコードにする。
func (c *SheetsClient) Fetch(ctx context.Context, shareURL string) ([]RawRecord, error) {
	if err := c.guard.ValidateURL(shareURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBlockedURL, err)
	}
	exportURL, err := ExportURL(shareURL)
	if err != nil {
		return nil, err
	}

	data, err := c.download(ctx, exportURL)
	if err != nil {
		c.logger.Warn("sheet fetch failed",
			slog.String("url", exportURL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return ParseCSV(bytes.NewReader(data))
}

func (c *SheetsClient) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d (is the sheet shared publicly?)", ErrFetchFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > c.maxSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, c.maxSize)
	}
	if ct := resp.Header.Get("Content-Type"); strings.Contains(ct, "text/html") {
		// 非公開シートはログインページ（HTML）が返る
		return nil, fmt.Errorf("%w: sheet is not published as csv", ErrFetchFailed)
	}
	return data, nil
}
