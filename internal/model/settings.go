package model

// DiscountSettings は固定額割引とその上限割引率。
type DiscountSettings struct {
	DiscountAmount     float64 `json:"discountAmount"`
	MaxDiscountPercent float64 `json:"maxDiscountPercent"`
}

// Settings はワークスペースの表示・割引設定のスナップショット。
type Settings struct {
	Design             bool     `json:"design"` // グローバルの割引表示フラグ
	DesignType         string   `json:"designType"`
	Themes             ThemeSet `json:"themes"`
	CurrentFont        string   `json:"currentFont"`
	DiscountAmount     float64  `json:"discountAmount"`
	MaxDiscountPercent float64  `json:"maxDiscountPercent"`
	DiscountText       string   `json:"discountText"`
	HasTableDesigns    bool     `json:"hasTableDesigns"`
	HasTableDiscounts  bool     `json:"hasTableDiscounts"`
	ShowThemeLabels    bool     `json:"showThemeLabels"`
}

// Discount は割引計算に必要な部分だけを取り出す。
func (s Settings) Discount() DiscountSettings {
	return DiscountSettings{
		DiscountAmount:     s.DiscountAmount,
		MaxDiscountPercent: s.MaxDiscountPercent,
	}
}

// TableMode はテーブルモード（行ごとの設定が優先される状態）かを返す。
func (s Settings) TableMode() bool {
	return s.DesignType == DesignTable
}

// Clone はテーマ表も含めたコピーを返す。
func (s Settings) Clone() Settings {
	c := s
	c.Themes = s.Themes.Clone()
	return c
}
