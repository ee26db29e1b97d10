// Package pricing は値札に表示する割引価格の計算を提供する。
//
// 割引は「固定額の値引き」を基本とし、その値引きが上限割引率を超える場合は
// 上限割引率による値引きに置き換える。金額計算はshopspring/decimalで行い、
// 2進浮動小数点の誤差で丸め結果が変わらないようにする。
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/hitoshi/pricetag/internal/model"
)

var hundred = decimal.NewFromInt(100)

// CalculateDiscountPrice は基準価格と割引設定から表示用の割引価格を計算する。
//
//  1. discounted = price - discountAmount
//  2. percentOff = discountAmount / price * 100
//  3. percentOff > maxDiscountPercent の場合は round(price - price*maxDiscountPercent/100)
//  4. それ以外は round(max(discounted, 0))
//
// 結果は常に 0 以上 price 以下の整数になる。
// price <= 0 は呼び出し側で除外する前提のため、そのまま返す。
func CalculateDiscountPrice(price float64, settings model.DiscountSettings) float64 {
	if price <= 0 {
		return price
	}

	p := decimal.NewFromFloat(price)
	amount := decimal.NewFromFloat(settings.DiscountAmount)
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	maxPercent := clampPercent(decimal.NewFromFloat(settings.MaxDiscountPercent))

	discounted := p.Sub(amount)
	percentOff := p.Sub(discounted).Div(p).Mul(hundred)

	var result decimal.Decimal
	if percentOff.GreaterThan(maxPercent) {
		result = p.Sub(p.Mul(maxPercent).Div(hundred)).Round(0)
	} else {
		result = decimal.Max(discounted, decimal.Zero).Round(0)
	}

	// 小数の基準価格（例: 0.4）では四捨五入で price を超えうるため上限を揃える
	if result.GreaterThan(p) {
		result = p
	}
	return result.InexactFloat64()
}

// DiscountPercent は price に対して discountPrice が何パーセント引きかを返す。
func DiscountPercent(price, discountPrice float64) float64 {
	if price <= 0 {
		return 0
	}
	p := decimal.NewFromFloat(price)
	d := decimal.NewFromFloat(discountPrice)
	return p.Sub(d).Div(p).Mul(hundred).InexactFloat64()
}

func clampPercent(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(hundred) {
		return hundred
	}
	return v
}
