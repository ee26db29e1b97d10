// Package layout は値札を印刷ページのグリッドに割り付ける。
package layout

import (
	"fmt"
	"math"
	"strings"

	"github.com/hitoshi/pricetag/internal/model"
)

const (
	// DefaultColumns は1行あたりの値札数。
	DefaultColumns = 3
	// DefaultItemsPerPage は1ページあたりの値札数（6行×3列）。
	DefaultItemsPerPage = 18
	// CompactItemsPerPage は大きめの値札用の1ページあたりの値札数（3行×3列）。
	CompactItemsPerPage = 9
	// MaxItemsPerPage はリクエストで指定できる1ページあたりの値札数の上限。
	MaxItemsPerPage = 60
)

// Grid は印刷ページのグリッド構成。
type Grid struct {
	Columns      int `json:"columns"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// DefaultGrid は3列×18枚のグリッドを返す。
func DefaultGrid() Grid {
	return Grid{Columns: DefaultColumns, ItemsPerPage: DefaultItemsPerPage}
}

// Rows は1ページあたりの行数を返す。
func (g Grid) Rows() int {
	if g.Columns <= 0 {
		return 0
	}
	return (g.ItemsPerPage + g.Columns - 1) / g.Columns
}

// Validate はグリッドの値が正かを検証する。
func (g Grid) Validate() error {
	if g.Columns <= 0 {
		return fmt.Errorf("columns must be positive, got %d", g.Columns)
	}
	if g.ItemsPerPage <= 0 {
		return fmt.Errorf("items per page must be positive, got %d", g.ItemsPerPage)
	}
	return nil
}

// WithItemsPerPage はページあたりの枚数だけを差し替えたグリッドを返す。
// nが0以下の場合はgをそのまま返す。
func (g Grid) WithItemsPerPage(n int) Grid {
	if n > 0 {
		g.ItemsPerPage = n
	}
	return g
}

// Cell は値札1枚の大きさ（CSS px）。
type Cell struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CellSize は用紙から上下左右の余白を除いた領域をグリッドで等分した大きさを返す。
// 印刷時の丸めではみ出さないよう0.1px単位で切り捨てる。
func CellSize(g Grid, f PageFormat, m Margin) Cell {
	rows := g.Rows()
	if g.Columns <= 0 || rows <= 0 {
		return Cell{}
	}
	size := f.Size()
	margin := 2 * m.Inches()
	floor := func(v float64) float64 {
		return math.Max(0, math.Floor(v*10)/10)
	}
	return Cell{
		Width:  floor((size.WidthIn - margin) * CSSPxPerInch / float64(g.Columns)),
		Height: floor((size.HeightIn - margin) * CSSPxPerInch / float64(rows)),
	}
}

// Paginate は並び順を保ったままitemsをcapacity件ずつのページに分割する。
// 最後のページだけが不足分を含み、空のページは作らない。
// itemsが空の場合は0ページを返す。capacityが0以下の場合は全件を1ページにする。
func Paginate[T any](items []T, capacity int) [][]T {
	if len(items) == 0 {
		return [][]T{}
	}
	if capacity <= 0 {
		capacity = len(items)
	}
	pages := make([][]T, 0, (len(items)+capacity-1)/capacity)
	for start := 0; start < len(items); start += capacity {
		end := min(start+capacity, len(items))
		page := make([]T, end-start)
		copy(page, items[start:end])
		pages = append(pages, page)
	}
	return pages
}

// PageCount はPaginateが返すページ数を計算する。
func PageCount(n, capacity int) int {
	if n <= 0 {
		return 0
	}
	if capacity <= 0 {
		return 1
	}
	return (n + capacity - 1) / capacity
}

// ResolveDesignType は値札に使うテーマキーを決める。
// テーブルモードかつ行ごとのデザインが有効なら行の値を、そうでなければ全体設定を使う。
// テーマ表に存在しないキーは "default" にフォールバックする。
func ResolveDesignType(item model.Item, s model.Settings) string {
	key := s.DesignType
	if s.TableMode() {
		key = model.DesignDefault
		if s.HasTableDesigns && item.DesignType != "" {
			key = item.DesignType
		}
	}
	if _, ok := s.Themes[key]; !ok {
		return model.DesignDefault
	}
	return key
}

// GuideColor はカット線の色を返す。文字色が白なら白、それ以外は黒。
func GuideColor(t model.Theme) string {
	if strings.EqualFold(t.TextColor, "#ffffff") {
		return "#ffffff"
	}
	return "#000000"
}
