// Package importer は表形式の入力（CSV・クリップボード・Excel・Google Sheets）を
// 値札の商品行に変換する。
//
// 各入力形式はまず RawRecord の列を作り、Normalize で検証済みの商品と
// 行ごとの却下理由に分ける。不正な行はスキップし、バッチ全体は失敗させない。
package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/security"
	"github.com/hitoshi/pricetag/internal/settings"
)

var (
	// ErrNoRows は入力にデータ行が1つもないことを表す。
	ErrNoRows = errors.New("no rows in input")
	// ErrUnsupportedFormat は解釈できない入力形式を表す。
	ErrUnsupportedFormat = errors.New("unsupported input format")
)

// RawRecord は入力の1行を文字列のまま保持する。
type RawRecord struct {
	Row         int // 入力上の行番号（1始まり）
	Data        string
	Price       string
	DesignType  string
	HasDiscount string
	PriceFor2   string
	PriceFrom3  string
}

func (r RawRecord) isBlank() bool {
	return strings.TrimSpace(r.Data) == "" && strings.TrimSpace(r.Price) == ""
}

// RowError は却下された行とその理由。
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result はインポート結果。
type Result struct {
	Items    []model.Item `json:"-"`
	Accepted int          `json:"accepted"`
	Rejected int          `json:"rejected"`
	Errors   []RowError   `json:"errors,omitempty"`
}

// Normalizer は RawRecord を検証して商品に変換する。
type Normalizer struct {
	sanitizer   security.TextSanitizer
	knownDesign func(string) bool
}

// NewNormalizer はNormalizerを生成する。
// knownDesignが偽を返すデザイン種別は未指定として扱う。
func NewNormalizer(sanitizer security.TextSanitizer, knownDesign func(string) bool) *Normalizer {
	return &Normalizer{sanitizer: sanitizer, knownDesign: knownDesign}
}

// Normalize はレコードを商品に変換する。
// 商品名が空、価格が数値でない・0以下の行は却下してErrorsに記録する。
// 商品名と価格がともに空の行は空行として数えない。
func (n *Normalizer) Normalize(records []RawRecord) Result {
	res := Result{Items: []model.Item{}}
	for _, rec := range records {
		if rec.isBlank() {
			continue
		}
		item, err := n.normalizeOne(rec)
		if err != nil {
			res.Rejected++
			res.Errors = append(res.Errors, RowError{Row: rec.Row, Reason: err.Error()})
			continue
		}
		res.Items = append(res.Items, item)
		res.Accepted++
	}
	return res
}

func (n *Normalizer) normalizeOne(rec RawRecord) (model.Item, error) {
	label := rec.Data
	if n.sanitizer != nil {
		label = n.sanitizer.Sanitize(label)
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return model.Item{}, fmt.Errorf("empty name")
	}

	if strings.TrimSpace(rec.Price) == "" {
		return model.Item{}, fmt.Errorf("missing price")
	}
	price, err := model.ParseNumber(rec.Price)
	if err != nil {
		return model.Item{}, fmt.Errorf("invalid price %q", rec.Price)
	}
	if price <= 0 {
		return model.Item{}, fmt.Errorf("price must be positive, got %s", model.FormatPrice(price))
	}

	item := model.Item{
		Data:          model.Label(label),
		Price:         price,
		DiscountPrice: price,
	}

	if d := settings.ThemeKey(rec.DesignType); d != "" && (n.knownDesign == nil || n.knownDesign(d)) {
		item.DesignType = d
	}
	if strings.TrimSpace(rec.HasDiscount) != "" {
		item.HasDiscount = model.BoolPtr(model.ParseFlag(rec.HasDiscount))
	}
	item.PriceFor2 = optionalPrice(rec.PriceFor2)
	item.PriceFrom3 = optionalPrice(rec.PriceFrom3)
	return item, nil
}

// optionalPrice はまとめ買い価格を解釈する。空・不正・0以下は未設定とする。
func optionalPrice(raw string) *float64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	v, err := model.ParseNumber(raw)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}
