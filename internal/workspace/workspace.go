// Package workspace は1つの値札作業領域（商品コレクション・設定・フォント調整）をまとめ、
// 永続化とメトリクス記録を結び付ける。
//
// itemstore.Store と settings.Model はゴルーチンセーフではないため、
// Workspace のメソッドはすべて1つのミューテックスで直列化する。
// レンダリングも同じロックの中で行い、フォント調整のサイクルが
// 同じワークスペースの別リクエストに取り消されないようにする。
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/hitoshi/pricetag/internal/fontfit"
	"github.com/hitoshi/pricetag/internal/itemstore"
	"github.com/hitoshi/pricetag/internal/layout"
	"github.com/hitoshi/pricetag/internal/metrics"
	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/pricing"
	"github.com/hitoshi/pricetag/internal/render"
	"github.com/hitoshi/pricetag/internal/repository"
	"github.com/hitoshi/pricetag/internal/settings"
	"github.com/hitoshi/pricetag/internal/theme"
)

// ImportMode はインポートした商品の反映方法。
type ImportMode string

const (
	// ImportAppend は既存の商品の後ろに追加する（1回の履歴スナップショット）。
	ImportAppend ImportMode = "append"
	// ImportReplace はコレクション全体を置き換える。
	ImportReplace ImportMode = "replace"
)

// ParseImportMode はインポートモードを解釈する。空文字はImportAppend。
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(s) {
	case "", ImportAppend:
		return ImportAppend, nil
	case ImportReplace:
		return ImportReplace, nil
	default:
		return "", fmt.Errorf("unknown import mode %q", s)
	}
}

// Config はワークスペース共通の設定。
type Config struct {
	HistoryLimit int
	Grid         layout.Grid
	Format       layout.PageFormat
	Margin       layout.Margin
	FontFit      fontfit.Options
}

// RenderOptions はリクエストごとの用紙とページ構成の指定。ゼロ値の項目はConfigの値を使う。
type RenderOptions struct {
	Format       layout.PageFormat
	Margin       layout.Margin
	ItemsPerPage int
}

// Summary はワークスペースの状態の要約。
type Summary struct {
	ID        string                 `json:"id"`
	ItemCount int                    `json:"itemCount"`
	PageCount int                    `json:"pageCount"`
	History   itemstore.HistoryState `json:"history"`
	Settings  model.Settings         `json:"settings"`
	UpdatedAt time.Time              `json:"updatedAt"`
}

// PageSummary はページ分割の結果の要約。フォント調整は行わない。
type PageSummary struct {
	TotalItems   int   `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
	Columns      int   `json:"columns"`
	Pages        []int `json:"pages"` // 各ページの商品数
}

// Workspace は1つの作業領域。
type Workspace struct {
	id  string
	cfg Config

	mu        sync.Mutex
	store     *itemstore.Store
	settings  *settings.Model
	sizer     *fontfit.Controller
	renderer  *render.HTMLRenderer
	changed   bool
	closed    bool
	updatedAt time.Time

	repo    repository.StateRepository
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
}

// deps はManagerからWorkspaceに渡す依存関係。
type deps struct {
	repo     repository.StateRepository
	ids      itemstore.IDGenerator
	measurer fontfit.Measurer
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	now      func() time.Time
}

// newWorkspace は設定モデルと商品ストアを観測で結び付けたWorkspaceを生成する。
// 設定が変わるとPricerを差し替えて既存商品の表示価格を再計算する。
func newWorkspace(id string, cfg Config, d deps, initial model.Settings) (*Workspace, error) {
	sm, err := settings.New(initial)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{
		id:        id,
		cfg:       cfg,
		settings:  sm,
		repo:      d.repo,
		metrics:   d.metrics,
		logger:    d.logger.With(slog.String("workspace_id", id)),
		now:       d.now,
		updatedAt: d.now(),
	}

	ws.store = itemstore.New(d.ids,
		itemstore.WithHistoryLimit(cfg.HistoryLimit),
		itemstore.WithPricer(pricing.ForSettings(sm.Snapshot())),
	)
	ws.store.Subscribe(func(ev itemstore.Event) {
		ws.changed = true
		ws.metrics.RecordItemMutation(string(ev.Op))
	})
	sm.Subscribe(func(s model.Settings) {
		ws.changed = true
		ws.store.SetPricer(pricing.ForSettings(s))
		ws.store.Reprice()
	})

	ws.sizer = fontfit.NewController(d.measurer, cfg.FontFit)
	ws.sizer.OnCycle(func(res fontfit.Result, err error) {
		if err == nil {
			ws.metrics.RecordFontFit(res.Steps, res.Overflow, res.Degraded)
		}
	})
	ws.renderer = render.NewHTMLRenderer(ws.sizer, cfg.FontFit.InitialSize)

	return ws, nil
}

// ID はワークスペースIDを返す。
func (w *Workspace) ID() string {
	return w.id
}

// Summary は状態の要約を返す。
func (w *Workspace) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Summary{
		ID:        w.id,
		ItemCount: w.store.Len(),
		PageCount: layout.PageCount(w.store.Len(), w.cfg.Grid.ItemsPerPage),
		History:   w.store.HistoryState(),
		Settings:  w.settings.Snapshot(),
		UpdatedAt: w.updatedAt,
	}
}

// Items は現在の商品一覧を返す。
func (w *Workspace) Items() []model.Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.Items()
}

// History は履歴カーソルの状態を返す。
func (w *Workspace) History() itemstore.HistoryState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.store.HistoryState()
}

// Settings は現在の設定を返す。
func (w *Workspace) Settings() model.Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.settings.Snapshot()
}

// SetItems はコレクション全体を置き換える。
func (w *Workspace) SetItems(ctx context.Context, items []model.Item) []model.Item {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.store.SetItems(items)
	w.flush(ctx)
	return w.store.Items()
}

// AddItem は商品を追加して発行されたIDを返す。
func (w *Workspace) AddItem(ctx context.Context, item model.Item) (model.Item, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.store.AddItem(item)
	w.flush(ctx)
	added, ok := w.store.Find(id)
	if !ok {
		return model.Item{}, fmt.Errorf("added item %d not found", id)
	}
	return added, nil
}

// UpdateItem は商品の1フィールドを更新する。
// 商品が見つからない場合は (false, nil) を返し、状態は変わらない。
func (w *Workspace) UpdateItem(ctx context.Context, id snowflake.ID, field string, value any) (model.Item, bool, error) {
	f, err := itemstore.ParseField(field)
	if err != nil {
		return model.Item{}, false, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	ok, err := w.store.UpdateItem(id, f, value)
	if err != nil || !ok {
		return model.Item{}, ok, err
	}
	w.flush(ctx)
	updated, _ := w.store.Find(id)
	return updated, true, nil
}

// DeleteItem は商品を削除する。見つからない場合はfalse。
func (w *Workspace) DeleteItem(ctx context.Context, id snowflake.ID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	ok := w.store.DeleteItem(id)
	w.flush(ctx)
	return ok
}

// DuplicateItems は指定された商品を複製し、新しいIDを返す。
func (w *Workspace) DuplicateItems(ctx context.Context, ids []snowflake.ID) []snowflake.ID {
	w.mu.Lock()
	defer w.mu.Unlock()
	created := w.store.DuplicateItems(ids)
	w.flush(ctx)
	return created
}

// ClearItems はコレクションと履歴を空にする。
func (w *Workspace) ClearItems(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.store.ClearItems()
	w.flush(ctx)
}

// Undo は履歴を1つ戻す。戻せない場合はfalse。
func (w *Workspace) Undo(ctx context.Context) (itemstore.HistoryState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ok := w.store.Undo()
	w.flush(ctx)
	return w.store.HistoryState(), ok
}

// Redo は履歴を1つ進める。進められない場合はfalse。
func (w *Workspace) Redo(ctx context.Context) (itemstore.HistoryState, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	ok := w.store.Redo()
	w.flush(ctx)
	return w.store.HistoryState(), ok
}

// Import は正規化済みの商品を反映し、反映後の商品数を返す。
func (w *Workspace) Import(ctx context.Context, items []model.Item, mode ImportMode) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if mode == ImportReplace {
		w.store.SetItems(items)
	} else {
		w.store.AddItems(items)
	}
	w.flush(ctx)
	return w.store.Len()
}

// ApplySettings は設定の部分更新を適用する。不正な値を含む場合は何も変えない。
func (w *Workspace) ApplySettings(ctx context.Context, p settings.Patch) (model.Settings, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.settings.Apply(p); err != nil {
		return model.Settings{}, err
	}
	w.flush(ctx)
	return w.settings.Snapshot(), nil
}

// SetTheme はテーマを1件上書きまたは追加する。
func (w *Workspace) SetTheme(ctx context.Context, key string, t model.Theme) (model.Settings, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.settings.SetTheme(key, t); err != nil {
		return model.Settings{}, err
	}
	w.flush(ctx)
	return w.settings.Snapshot(), nil
}

// ImportThemes はテーマのエンベロープを読み込んで置き換える。
// エンベロープが不正な場合は何も変えずにfalseを返す。
func (w *Workspace) ImportThemes(ctx context.Context, data []byte) (model.ThemeSet, bool, error) {
	set, ok := theme.Import(data)
	if !ok {
		return nil, false, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.settings.SetThemes(set); err != nil {
		return nil, false, err
	}
	w.flush(ctx)
	return w.settings.Snapshot().Themes, true, nil
}

// ExportThemes は現在のテーマ表をエンベロープとして出力する。
func (w *Workspace) ExportThemes() ([]byte, error) {
	w.mu.Lock()
	themes := w.settings.Snapshot().Themes
	w.mu.Unlock()
	return theme.Export(themes, w.now())
}

// Pages はページ分割の要約を返す。
func (w *Workspace) Pages(opts RenderOptions) PageSummary {
	w.mu.Lock()
	defer w.mu.Unlock()
	grid := w.cfg.Grid.WithItemsPerPage(opts.ItemsPerPage)
	pages := layout.Paginate(w.store.Items(), grid.ItemsPerPage)
	counts := make([]int, len(pages))
	for i, p := range pages {
		counts[i] = len(p)
	}
	return PageSummary{
		TotalItems:   w.store.Len(),
		ItemsPerPage: grid.ItemsPerPage,
		Columns:      grid.Columns,
		Pages:        counts,
	}
}

// RenderHTML は印刷用HTMLを生成する。
func (w *Workspace) RenderHTML(ctx context.Context, opts RenderOptions) (string, render.Document, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := w.now()
	in := render.Input{
		Items:    w.store.Items(),
		Settings: w.settings.Snapshot(),
		Grid:     w.cfg.Grid.WithItemsPerPage(opts.ItemsPerPage),
		Format:   w.cfg.Format,
		Margin:   w.cfg.Margin,
	}
	if opts.Format != "" {
		in.Format = opts.Format
	}
	if opts.Margin != "" {
		in.Margin = opts.Margin
	}

	html, doc, err := w.renderer.RenderHTML(ctx, in)
	if err != nil {
		return "", render.Document{}, err
	}
	w.metrics.RecordRender("html", len(doc.Pages), w.now().Sub(start))
	return html, doc, nil
}

// close はフォント調整を停止する。以降のレンダリングは初期サイズで行われる。
func (w *Workspace) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.sizer.Close()
}

func (w *Workspace) lastUpdated() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.updatedAt
}

// flush は変更があれば全キーを保存する。
// 保存に失敗してもメモリ上の状態は戻さず、ログとメトリクスに記録する。
func (w *Workspace) flush(ctx context.Context) {
	if !w.changed || w.closed {
		return
	}
	w.changed = false
	w.updatedAt = w.now()

	state, err := encodeState(w.store, w.settings.Snapshot(), w.updatedAt)
	if err != nil {
		w.metrics.RecordPersistenceFailure("encode")
		w.logger.Error("failed to encode workspace state", slog.String("error", err.Error()))
		return
	}
	// 応答後に接続が切れても保存は完了させる
	if err := w.repo.Save(context.WithoutCancel(ctx), w.id, state); err != nil {
		w.metrics.RecordPersistenceFailure("save")
		w.logger.Error("failed to save workspace state", slog.String("error", err.Error()))
	}
}
