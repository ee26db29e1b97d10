package theme

import (
	"bytes"
	"encoding/json"
	"regexp"

	"github.com/hitoshi/pricetag/internal/model"
)

// hexColorPattern は "#" + 16進数6桁のみを許可する。
// 3桁表記・色名・rgb() は受け付けない。
var hexColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// IsHexColor は色文字列が "#rrggbb" 形式かを返す。
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// ValidateTheme はテーマの3色がすべて "#rrggbb" 形式かを返す。
func ValidateTheme(t model.Theme) bool {
	return IsHexColor(t.Start) && IsHexColor(t.End) && IsHexColor(t.TextColor)
}

// ValidateThemeJSON は外部から受け取ったテーマJSONを検証する。
// start・end・textColor の3つの文字列フィールドをちょうど持ち、
// 各値が "#rrggbb" 形式の場合のみtrueを返す。
func ValidateThemeJSON(raw []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) != 3 {
		return false
	}
	var t model.Theme
	for name, dst := range map[string]*string{
		"start":     &t.Start,
		"end":       &t.End,
		"textColor": &t.TextColor,
	} {
		v, ok := fields[name]
		if !ok {
			return false
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 || v[0] != '"' {
			return false
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return false
		}
	}
	return ValidateTheme(t)
}

// ParseThemeJSON はValidateThemeJSONで検証したうえでテーマを返す。
func ParseThemeJSON(raw []byte) (model.Theme, bool) {
	if !ValidateThemeJSON(raw) {
		return model.Theme{}, false
	}
	var t model.Theme
	if err := json.Unmarshal(raw, &t); err != nil {
		return model.Theme{}, false
	}
	return t, true
}

// ValidateSet はテーマ表が必須キーを含み、全テーマが妥当かを返す。
func ValidateSet(set model.ThemeSet) bool {
	for _, key := range []string{model.DesignDefault, model.DesignNew, model.DesignSale} {
		if _, ok := set[key]; !ok {
			return false
		}
	}
	for _, t := range set {
		if !ValidateTheme(t) {
			return false
		}
	}
	return true
}
