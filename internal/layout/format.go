package layout

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CSSPxPerInch はCSSの1インチあたりのpx。
const CSSPxPerInch = 96

// PageFormat は印刷用紙のサイズ。
type PageFormat string

const (
	FormatA4     PageFormat = "A4"
	FormatA3     PageFormat = "A3"
	FormatLetter PageFormat = "Letter"
)

// PaperSize は用紙の幅と高さ（インチ）。PDFレンダラーに渡す。
type PaperSize struct {
	WidthIn  float64
	HeightIn float64
}

var paperSizes = map[PageFormat]PaperSize{
	FormatA4:     {WidthIn: 8.27, HeightIn: 11.69},
	FormatA3:     {WidthIn: 11.69, HeightIn: 16.54},
	FormatLetter: {WidthIn: 8.5, HeightIn: 11},
}

// ParsePageFormat は用紙名を大文字小文字を区別せずに解釈する。
func ParsePageFormat(s string) (PageFormat, error) {
	for f := range paperSizes {
		if strings.EqualFold(string(f), strings.TrimSpace(s)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported page format %q", s)
}

// Size は用紙サイズを返す。未知の形式はA4として扱う。
func (f PageFormat) Size() PaperSize {
	if s, ok := paperSizes[f]; ok {
		return s
	}
	return paperSizes[FormatA4]
}

// CSSSize は @page の size に使う値を返す。
func (f PageFormat) CSSSize() string {
	switch f {
	case FormatA3:
		return "A3"
	case FormatLetter:
		return "letter"
	default:
		return "A4"
	}
}

var marginPattern = regexp.MustCompile(`^(\d+(\.\d+)?)(mm|cm|in|px)$`)

// Margin は "5mm" や "0.5in" のような余白指定。
type Margin string

// ParseMargin は余白指定を検証する。
func ParseMargin(s string) (Margin, error) {
	s = strings.TrimSpace(s)
	if !marginPattern.MatchString(s) {
		return "", fmt.Errorf("invalid margin %q", s)
	}
	return Margin(s), nil
}

// Inches は余白をインチに換算する。不正な指定は0になる。
func (m Margin) Inches() float64 {
	sub := marginPattern.FindStringSubmatch(strings.TrimSpace(string(m)))
	if sub == nil {
		return 0
	}
	v, err := strconv.ParseFloat(sub[1], 64)
	if err != nil {
		return 0
	}
	switch sub[3] {
	case "mm":
		return v / 25.4
	case "cm":
		return v / 2.54
	case "px":
		return v / CSSPxPerInch
	default:
		return v
	}
}
