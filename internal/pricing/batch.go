package pricing

import "github.com/hitoshi/pricetag/internal/model"

// ShouldApplyDiscount は1つの商品に割引を適用するかを決定する。
//
// 割引方針は3か所から来るため、次の優先順位で1つに決める:
//   - テーブルモード（hasTableDiscounts && designType == "table"）で
//     商品が hasDiscount を持つ場合は商品の値を使う
//   - テーブルモードでも hasDiscount がない場合はグローバルの design を使う
//   - テーブルモード以外では商品の hasDiscount は無視し、design を使う
func ShouldApplyDiscount(item model.Item, design bool, designType string, hasTableDiscounts bool) bool {
	if hasTableDiscounts && designType == model.DesignTable && item.HasDiscount != nil {
		return *item.HasDiscount
	}
	return design
}

// UpdateItemPrices は全商品の discountPrice を再計算した新しいスライスを返す。
// 入力のスライスと商品は変更しない。
func UpdateItemPrices(items []model.Item, discount model.DiscountSettings, design bool, designType string, hasTableDiscounts bool) []model.Item {
	out := make([]model.Item, len(items))
	for i, it := range items {
		c := it.Clone()
		if ShouldApplyDiscount(it, design, designType, hasTableDiscounts) {
			c.DiscountPrice = CalculateDiscountPrice(it.Price, discount)
		} else {
			c.DiscountPrice = it.Price
		}
		out[i] = c
	}
	return out
}

// ForSettings は設定スナップショットから UpdateItemPrices を呼ぶ関数を返す。
// itemstore.Pricer として渡すことを想定している。
func ForSettings(s model.Settings) func([]model.Item) []model.Item {
	discount := s.Discount()
	return func(items []model.Item) []model.Item {
		return UpdateItemPrices(items, discount, s.Design, s.DesignType, s.HasTableDiscounts)
	}
}

// Tier はまとめ買い価格の1行を表す。
type Tier struct {
	Label string
	Price float64
}

// TierPrices は商品のまとめ買い価格を表示順に返す。
// 割引計算とは独立しており、設定されていない段は含めない。
func TierPrices(item model.Item) []Tier {
	var tiers []Tier
	if item.PriceFor2 != nil && *item.PriceFor2 > 0 {
		tiers = append(tiers, Tier{Label: "2 pcs", Price: *item.PriceFor2})
	}
	if item.PriceFrom3 != nil && *item.PriceFrom3 > 0 {
		tiers = append(tiers, Tier{Label: "3+ pcs", Price: *item.PriceFrom3})
	}
	return tiers
}
