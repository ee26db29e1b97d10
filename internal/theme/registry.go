// Package theme は値札テーマの組み込みカタログと、その検証・シリアライズを提供する。
package theme

import (
	"sort"

	"github.com/hitoshi/pricetag/internal/model"
)

// builtin は組み込みテーマの定義。キーは designType として使われる。
var builtin = model.ThemeSet{
	"default":  {Start: "#222222", End: "#444444", TextColor: "#ffffff"},
	"new":      {Start: "#ff6b6b", End: "#ffa500", TextColor: "#ffffff"},
	"sale":     {Start: "#ff4757", End: "#ff6348", TextColor: "#ffffff"},
	"sunset":   {Start: "#ffb347", End: "#ffcc33", TextColor: "#2d2d2d"},
	"mint":     {Start: "#a8e6cf", End: "#dcedc1", TextColor: "#1e3d2f"},
	"sky":      {Start: "#a1c4fd", End: "#c2e9fb", TextColor: "#1b2a41"},
	"peach":    {Start: "#ffdde1", End: "#ee9ca7", TextColor: "#3b1f2b"},
	"lemon":    {Start: "#fff9c4", End: "#fff176", TextColor: "#3e3a00"},
	"ocean":    {Start: "#1e3c72", End: "#2a5298", TextColor: "#ffffff"},
	"forest":   {Start: "#134e5e", End: "#71b280", TextColor: "#ffffff"},
	"wine":     {Start: "#5f0a87", End: "#a4508b", TextColor: "#ffffff"},
	"night":    {Start: "#0f2027", End: "#2c5364", TextColor: "#ffffff"},
	"coffee":   {Start: "#3e2723", End: "#6d4c41", TextColor: "#fbe9e7"},
	"white":    {Start: "#ffffff", End: "#ffffff", TextColor: "#000000"},
	"silver":   {Start: "#f5f5f5", End: "#d6d6d6", TextColor: "#111111"},
	"black":    {Start: "#000000", End: "#000000", TextColor: "#ffffff"},
	"graphite": {Start: "#2b2b2b", End: "#5a5a5a", TextColor: "#f0f0f0"},
}

var metadata = map[string]model.ThemeMetadata{
	"default":  {ID: "default", Name: "Default", Emoji: "🏷️", Category: model.ThemeCategoryDark, Order: 1},
	"new":      {ID: "new", Name: "New", Emoji: "🆕", Category: model.ThemeCategoryLight, Order: 1},
	"sale":     {ID: "sale", Name: "Sale", Emoji: "🔥", Category: model.ThemeCategoryLight, Order: 2},
	"sunset":   {ID: "sunset", Name: "Sunset", Emoji: "🌅", Category: model.ThemeCategoryLight, Order: 3},
	"mint":     {ID: "mint", Name: "Mint", Emoji: "🌿", Category: model.ThemeCategoryLight, Order: 4},
	"sky":      {ID: "sky", Name: "Sky", Emoji: "☁️", Category: model.ThemeCategoryLight, Order: 5},
	"peach":    {ID: "peach", Name: "Peach", Emoji: "🍑", Category: model.ThemeCategoryLight, Order: 6},
	"lemon":    {ID: "lemon", Name: "Lemon", Emoji: "🍋", Category: model.ThemeCategoryLight, Order: 7},
	"ocean":    {ID: "ocean", Name: "Ocean", Emoji: "🌊", Category: model.ThemeCategoryDark, Order: 2},
	"forest":   {ID: "forest", Name: "Forest", Emoji: "🌲", Category: model.ThemeCategoryDark, Order: 3},
	"wine":     {ID: "wine", Name: "Wine", Emoji: "🍷", Category: model.ThemeCategoryDark, Order: 4},
	"night":    {ID: "night", Name: "Night", Emoji: "🌙", Category: model.ThemeCategoryDark, Order: 5},
	"coffee":   {ID: "coffee", Name: "Coffee", Emoji: "☕", Category: model.ThemeCategoryDark, Order: 6},
	"white":    {ID: "white", Name: "White", Emoji: "⬜", Category: model.ThemeCategoryLightMonochrome, Order: 1},
	"silver":   {ID: "silver", Name: "Silver", Emoji: "🥈", Category: model.ThemeCategoryLightMonochrome, Order: 2},
	"black":    {ID: "black", Name: "Black", Emoji: "⬛", Category: model.ThemeCategoryDarkMonochrome, Order: 1},
	"graphite": {ID: "graphite", Name: "Graphite", Emoji: "✏️", Category: model.ThemeCategoryDarkMonochrome, Order: 2},
}

// GetTheme は組み込みテーマを返す。存在しない場合はfalse。
func GetTheme(id string) (model.Theme, bool) {
	t, ok := builtin[id]
	return t, ok
}

// GetAllThemes は組み込みテーマ一式のコピーを返す。
func GetAllThemes() model.ThemeSet {
	return builtin.Clone()
}

// IsKnown は組み込みテーマのキーかを返す。
func IsKnown(id string) bool {
	_, ok := builtin[id]
	return ok
}

// Keys は組み込みテーマのキーを辞書順で返す。
func Keys() []string {
	keys := make([]string, 0, len(builtin))
	for k := range builtin {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetMetadata はテーマの表示用メタデータを返す。
func GetMetadata(id string) (model.ThemeMetadata, bool) {
	m, ok := metadata[id]
	return m, ok
}

// AllMetadata はメタデータ一式のコピーを返す。
func AllMetadata() map[string]model.ThemeMetadata {
	out := make(map[string]model.ThemeMetadata, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}

// GetThemesByCategory は指定カテゴリのメタデータをOrder順に返す。
// Orderが同じ場合はIDで並べるため、登録順に依存しない。
func GetThemesByCategory(category model.ThemeCategory) []model.ThemeMetadata {
	var out []model.ThemeMetadata
	for _, m := range metadata {
		if m.Category == category {
			out = append(out, m)
		}
	}
	sortByOrder(out)
	return out
}

// CategoryGroup はカテゴリとそのテーマ一覧。
type CategoryGroup struct {
	Category model.ThemeCategory   `json:"category"`
	Themes   []model.ThemeMetadata `json:"themes"`
}

// GetThemesByCategories は全カテゴリをmodel.ThemeCategoriesの順にグループ化して返す。
func GetThemesByCategories() []CategoryGroup {
	groups := make([]CategoryGroup, 0, len(model.ThemeCategories))
	for _, c := range model.ThemeCategories {
		groups = append(groups, CategoryGroup{Category: c, Themes: GetThemesByCategory(c)})
	}
	return groups
}

func sortByOrder(list []model.ThemeMetadata) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Order != list[j].Order {
			return list[i].Order < list[j].Order
		}
		return list[i].ID < list[j].ID
	})
}
