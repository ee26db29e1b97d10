package model

// Theme は値札の背景グラデーションと文字色を表す。
// 3色とも "#" + 16進数6桁の形式。
type Theme struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	TextColor string `json:"textColor"`
}

// IsSolid は開始色と終了色が同じ（単色背景）かを返す。
func (t Theme) IsSolid() bool {
	return t.Start == t.End
}

// ThemeSet はテーマキーからテーマへの対応表。
type ThemeSet map[string]Theme

// Clone はThemeSetのコピーを返す。
func (s ThemeSet) Clone() ThemeSet {
	out := make(ThemeSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// ThemeCategory はテーマの表示上の分類。
type ThemeCategory string

const (
	ThemeCategoryLight           ThemeCategory = "light"
	ThemeCategoryDark            ThemeCategory = "dark"
	ThemeCategoryLightMonochrome ThemeCategory = "light-monochrome"
	ThemeCategoryDarkMonochrome  ThemeCategory = "dark-monochrome"
)

// ThemeCategories はUIでの表示順に並べたカテゴリ一覧。
var ThemeCategories = []ThemeCategory{
	ThemeCategoryLight,
	ThemeCategoryDark,
	ThemeCategoryLightMonochrome,
	ThemeCategoryDarkMonochrome,
}

// ThemeMetadata はテーマの表示用メタデータ。計算には使われない。
type ThemeMetadata struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Emoji    string        `json:"emoji"`
	Category ThemeCategory `json:"category"`
	Order    int           `json:"order"`
}

// 必ず存在するテーマキー。
const (
	DesignDefault = "default"
	DesignNew     = "new"
	DesignSale    = "sale"
	// DesignTable は行ごとの designType / hasDiscount を使う疑似デザイン種別。
	DesignTable = "table"
)
