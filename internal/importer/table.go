package importer

import (
	"strings"
	"unicode"
)

type column int

const (
	colData column = iota
	colPrice
	colDesignType
	colHasDiscount
	colPriceFor2
	colPriceFrom3
	colCount
)

// headerAliases はヘッダー名（小文字・記号除去後）から列への対応。
var headerAliases = map[string]column{
	"data":         colData,
	"name":         colData,
	"product":      colData,
	"title":        colData,
	"label":        colData,
	"наименование": colData,
	"название":     colData,
	"товар":        colData,
	"price":        colPrice,
	"цена":         colPrice,
	"design":       colDesignType,
	"designtype":   colDesignType,
	"theme":        colDesignType,
	"дизайн":       colDesignType,
	"discount":     colHasDiscount,
	"hasdiscount":  colHasDiscount,
	"скидка":       colHasDiscount,
	"pricefor2":    colPriceFor2,
	"price2":       colPriceFor2,
	"pricefrom3":   colPriceFrom3,
	"price3":       colPriceFrom3,
}

// positional はヘッダーがない場合の列順。
var positional = [colCount]int{0, 1, 2, 3, 4, 5}

// recordsFromRows はセルの行列をレコードにする。
// 1行目に商品名と価格のヘッダーがあればその列を使い、なければ列の位置で解釈する。
// firstRowは rows[0] の入力上の行番号。
func recordsFromRows(rows [][]string, firstRow int) []RawRecord {
	if len(rows) == 0 {
		return nil
	}

	index, ok := detectHeader(rows[0])
	start := 0
	if ok {
		start = 1
	} else {
		index = positional
	}

	records := make([]RawRecord, 0, len(rows)-start)
	for i := start; i < len(rows); i++ {
		row := rows[i]
		cell := func(c column) string {
			j := index[c]
			if j < 0 || j >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[j])
		}
		records = append(records, RawRecord{
			Row:         firstRow + i,
			Data:        cell(colData),
			Price:       cell(colPrice),
			DesignType:  cell(colDesignType),
			HasDiscount: cell(colHasDiscount),
			PriceFor2:   cell(colPriceFor2),
			PriceFrom3:  cell(colPriceFrom3),
		})
	}
	return records
}

// detectHeader はヘッダー行から列の位置を求める。
// 商品名と価格の両方が見つかった場合のみヘッダーとみなす。
func detectHeader(row []string) ([colCount]int, bool) {
	var index [colCount]int
	for i := range index {
		index[i] = -1
	}
	for j, name := range row {
		c, ok := headerAliases[normalizeHeader(name)]
		if ok && index[c] < 0 {
			index[c] = j
		}
	}
	if index[colData] < 0 || index[colPrice] < 0 {
		return index, false
	}
	return index, true
}

func normalizeHeader(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
