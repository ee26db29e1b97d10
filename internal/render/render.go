// Package render は商品一覧と設定から印刷用の値札HTMLを生成する。
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"math"
	"regexp"
	"strings"

	"github.com/bwmarrin/snowflake"

	"github.com/hitoshi/pricetag/internal/fontfit"
	"github.com/hitoshi/pricetag/internal/layout"
	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/pricing"
)

// maxDiscountLines は割引キャプションの最大行数。
const maxDiscountLines = 2

// tagPadding は値札の内側余白（CSS px）。テンプレートの .tag と揃える。
const tagPadding = 12

var (
	hexColorPattern  = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	fontFamilyFilter = regexp.MustCompile(`^[A-Za-z0-9 \-]+$`)
)

// Sizer は商品名のフォントサイズを決める。fontfit.Controllerが実装する。
type Sizer interface {
	Adjust(ctx context.Context, req fontfit.Request) (fontfit.Result, error)
}

// Input は描画対象。Itemsは価格計算済みであること。
type Input struct {
	Items    []model.Item
	Settings model.Settings
	Grid     layout.Grid
	Format   layout.PageFormat
	Margin   layout.Margin
}

// Tag は値札1枚分の表示内容。
type Tag struct {
	ID            snowflake.ID   `json:"id"`
	Name          string         `json:"name"`
	DesignType    string         `json:"designType"`
	Price         string         `json:"price"`
	DiscountPrice string         `json:"discountPrice,omitempty"`
	DiscountLines []string       `json:"discountLines,omitempty"`
	Tiers         []TierLine     `json:"tiers,omitempty"`
	Ribbon        string         `json:"ribbon,omitempty"`
	RibbonColor   string         `json:"ribbonColor,omitempty"`
	Start         string         `json:"start"`
	End           string         `json:"end"`
	Solid         bool           `json:"solid"`
	TextColor     string         `json:"textColor"`
	GuideColor    string         `json:"guideColor"`
	NameBox       fontfit.Box    `json:"nameBox"`
	Font          fontfit.Result `json:"font"`
}

// HasDiscount は割引価格を表示するかを返す。
func (t Tag) HasDiscount() bool {
	return t.DiscountPrice != ""
}

// TierLine はまとめ買い価格の表示行。
type TierLine struct {
	Label string `json:"label"`
	Price string `json:"price"`
}

// Page は1ページ分の値札。
type Page struct {
	Index int   `json:"index"`
	Tags  []Tag `json:"tags"`
	Last  bool  `json:"last"`
}

// Document は描画結果の構造。HTMLにする前の段階でページ情報の確認にも使う。
type Document struct {
	Pages      []Page            `json:"pages"`
	Grid       layout.Grid       `json:"grid"`
	Format     layout.PageFormat `json:"format"`
	Margin     layout.Margin     `json:"margin"`
	Cell       layout.Cell       `json:"cell"`
	Font       string            `json:"font"`
	TotalItems int               `json:"totalItems"`
}

// HTMLRenderer はhtml/templateで値札HTMLを生成する。
type HTMLRenderer struct {
	tpl      *template.Template
	sizer    Sizer
	fallback float64
}

// NewHTMLRenderer はレンダラーを生成する。
// sizerがnilの場合や調整に失敗した場合はfallbackSizeを使う。
func NewHTMLRenderer(sizer Sizer, fallbackSize float64) *HTMLRenderer {
	funcs := template.FuncMap{
		"px": func(v float64) string { return fmt.Sprintf("%.1fpx", v) },
	}
	return &HTMLRenderer{
		tpl:      template.Must(template.New("tags").Funcs(funcs).Parse(tagsHTMLTemplate)),
		sizer:    sizer,
		fallback: fallbackSize,
	}
}

// Build は商品一覧をページ単位の表示内容に変換する。
// 商品が0件の場合は0ページのDocumentを返す。
func (r *HTMLRenderer) Build(ctx context.Context, in Input) (Document, error) {
	grid := in.Grid
	if grid.Validate() != nil {
		grid = layout.DefaultGrid()
	}
	doc := Document{
		Pages:      []Page{},
		Grid:       grid,
		Format:     in.Format,
		Margin:     in.Margin,
		Font:       sanitizeFont(in.Settings.CurrentFont),
		TotalItems: len(in.Items),
	}
	if doc.Format == "" {
		doc.Format = layout.FormatA4
	}
	if doc.Margin == "" {
		doc.Margin = "5mm"
	}
	doc.Cell = layout.CellSize(grid, doc.Format, doc.Margin)

	lines := discountLines(in.Settings.DiscountText)
	pages := layout.Paginate(in.Items, grid.ItemsPerPage)
	for i, items := range pages {
		page := Page{Index: i, Last: i == len(pages)-1, Tags: make([]Tag, 0, len(items))}
		for _, it := range items {
			tag, err := r.buildTag(ctx, it, in.Settings, doc.Cell, lines)
			if err != nil {
				return Document{}, err
			}
			page.Tags = append(page.Tags, tag)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

// RenderHTML は印刷用のHTMLを生成する。最後のページの後には改ページを入れない。
func (r *HTMLRenderer) RenderHTML(ctx context.Context, in Input) (string, Document, error) {
	doc, err := r.Build(ctx, in)
	if err != nil {
		return "", Document{}, err
	}
	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, doc); err != nil {
		return "", Document{}, fmt.Errorf("failed to execute tag template: %w", err)
	}
	return buf.String(), doc, nil
}

func (r *HTMLRenderer) buildTag(ctx context.Context, it model.Item, s model.Settings, cell layout.Cell, lines []string) (Tag, error) {
	key := layout.ResolveDesignType(it, s)
	th := s.Themes[key]

	tag := Tag{
		ID:         it.ID,
		Name:       it.Data.String(),
		DesignType: key,
		Price:      model.FormatPrice(it.Price),
		Start:      sanitizeColor(th.Start, "#ffffff"),
		End:        sanitizeColor(th.End, "#ffffff"),
		TextColor:  sanitizeColor(th.TextColor, "#000000"),
	}
	tag.Solid = tag.Start == tag.End
	tag.GuideColor = layout.GuideColor(model.Theme{TextColor: tag.TextColor})

	if it.DiscountPrice != it.Price {
		tag.DiscountPrice = model.FormatPrice(it.DiscountPrice)
		tag.DiscountLines = lines
	}
	for _, tier := range pricing.TierPrices(it) {
		tag.Tiers = append(tag.Tiers, TierLine{Label: tier.Label, Price: model.FormatPrice(tier.Price)})
	}
	if s.ShowThemeLabels && (key == model.DesignNew || key == model.DesignSale) {
		tag.Ribbon = strings.ToUpper(key)
		tag.RibbonColor = tag.Start
	}

	tag.NameBox = NameBox(cell, tag.HasDiscount())
	font, err := r.fit(ctx, tag.Name, tag.NameBox, tag.HasDiscount())
	if err != nil {
		return Tag{}, err
	}
	tag.Font = font
	return tag, nil
}

// fit はフォントサイズを調整する。取り消し以外の失敗は初期サイズで続行する。
func (r *HTMLRenderer) fit(ctx context.Context, text string, box fontfit.Box, discount bool) (fontfit.Result, error) {
	fallback := fontfit.Result{Size: r.fallback, Degraded: true}
	if r.sizer == nil {
		return fallback, nil
	}
	res, err := r.sizer.Adjust(ctx, fontfit.Request{Text: text, Box: box, Discount: discount})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return fontfit.Result{}, err
		}
		return fallback, nil
	}
	return res, nil
}

// NameBox は値札の中で商品名に使う枠の大きさを返す。HTMLでも同じ大きさで描く。
// 割引行を表示する場合は価格欄が増えるため、名前に使える高さが小さくなる。
func NameBox(cell layout.Cell, discount bool) fontfit.Box {
	if cell.Width <= 2*tagPadding || cell.Height <= 0 {
		return fontfit.Box{}
	}
	heightRatio := 0.45
	if discount {
		heightRatio = 0.3
	}
	return fontfit.Box{
		Width:  cell.Width - 2*tagPadding,
		Height: math.Floor(cell.Height*heightRatio*10) / 10,
	}
}

func discountLines(text string) []string {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
		if len(lines) == maxDiscountLines {
			break
		}
	}
	return lines
}

func sanitizeColor(value, fallback string) string {
	if hexColorPattern.MatchString(value) {
		return strings.ToLower(value)
	}
	return fallback
}

func sanitizeFont(value string) string {
	value = strings.TrimSpace(value)
	if fontFamilyFilter.MatchString(value) {
		return value
	}
	return "Arial"
}
