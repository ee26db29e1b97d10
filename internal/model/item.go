// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
)

// Label は値札に表示する商品名を表す。
// インポート元によっては数値で届くため、JSONでは文字列と数値の両方を受け付ける。
type Label string

// UnmarshalJSON は文字列または数値のJSON値をLabelとして読み込む。
func (l *Label) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = Label(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("label must be a string or a number: %w", err)
	}
	*l = Label(n.String())
	return nil
}

// String はLabelを文字列として返す。
func (l Label) String() string {
	return string(l)
}

// Item は値札1枚分の商品行を表す。
type Item struct {
	ID            snowflake.ID `json:"id"`
	Data          Label        `json:"data"`
	Price         float64      `json:"price"`
	DiscountPrice float64      `json:"discountPrice"` // 現在の設定から再計算される表示価格
	DesignType    string       `json:"designType,omitempty"`
	HasDiscount   *bool        `json:"hasDiscount,omitempty"` // テーブルモードでのみ参照される
	PriceFor2     *float64     `json:"priceFor2,omitempty"`
	PriceFrom3    *float64     `json:"priceFrom3,omitempty"`
}

// Clone はポインタフィールドも含めて独立したコピーを返す。
func (it Item) Clone() Item {
	c := it
	if it.HasDiscount != nil {
		v := *it.HasDiscount
		c.HasDiscount = &v
	}
	if it.PriceFor2 != nil {
		v := *it.PriceFor2
		c.PriceFor2 = &v
	}
	if it.PriceFrom3 != nil {
		v := *it.PriceFrom3
		c.PriceFrom3 = &v
	}
	return c
}

// CloneItems はスライス全体を独立したコピーとして返す。
// nilの場合も空スライスを返す。
func CloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// FormatPrice は価格を値札表示用の文字列にする。
// 整数値は小数点なし、それ以外は小数2桁で表示する。
func FormatPrice(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// BoolPtr はboolのポインタを返す。
func BoolPtr(v bool) *bool {
	return &v
}

// Float64Ptr はfloat64のポインタを返す。
func Float64Ptr(v float64) *float64 {
	return &v
}
