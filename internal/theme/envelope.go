package theme

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/pricetag/internal/model"
)

// EnvelopeVersion はテーマのエクスポート形式のバージョン。
const EnvelopeVersion = "1.0"

// Envelope はテーマ表のエクスポート/インポート形式。
type Envelope struct {
	Themes      model.ThemeSet                 `json:"themes"`
	Metadata    map[string]model.ThemeMetadata `json:"metadata"`
	Version     string                         `json:"version"`
	LastUpdated time.Time                      `json:"lastUpdated"`
}

// customOrderBase は追加テーマの並び順の開始値。組み込みテーマの後ろに並べる。
const customOrderBase = 100

// Export はテーマ表を現在時刻付きのエンベロープとしてJSONにする。
// setがnilの場合は組み込みテーマを出力する。
// metadataはsetのキーごとに作る。組み込みのキーは組み込みの情報、
// 追加されたキーは文字色からカテゴリを決めた情報になる。
func Export(set model.ThemeSet, now time.Time) ([]byte, error) {
	if set == nil {
		set = builtin
	}
	data, err := json.Marshal(Envelope{
		Themes:      set,
		Metadata:    MetadataFor(set),
		Version:     EnvelopeVersion,
		LastUpdated: now.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal theme envelope: %w", err)
	}
	return data, nil
}

// MetadataFor はテーマ表の各キーのメタデータを返す。
func MetadataFor(set model.ThemeSet) map[string]model.ThemeMetadata {
	out := make(map[string]model.ThemeMetadata, len(set))
	var custom []string
	for k := range set {
		if m, ok := metadata[k]; ok {
			out[k] = m
			continue
		}
		custom = append(custom, k)
	}
	sort.Strings(custom)
	for i, k := range custom {
		category := model.ThemeCategoryLight
		if strings.EqualFold(set[k].TextColor, "#ffffff") {
			category = model.ThemeCategoryDark
		}
		out[k] = model.ThemeMetadata{
			ID:       k,
			Name:     k,
			Emoji:    "🎨",
			Category: category,
			Order:    customOrderBase + i,
		}
	}
	return out
}

// Import はエンベロープを読み込んでテーマ表を返す。
// JSONが壊れている、必須キーが欠けている、不正な色を含む場合は
// エラーにせず組み込みテーマを返し、okをfalseにする。
// エンベロープのmetadataは読まない。表示用の情報なので、次のExportで
// テーマ表からMetadataForで作り直し、往復しても同じ内容になる。
func Import(data []byte) (set model.ThemeSet, ok bool) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return GetAllThemes(), false
	}
	if len(env.Themes) == 0 || !ValidateSet(env.Themes) {
		return GetAllThemes(), false
	}
	return env.Themes.Clone(), true
}

// Merge は上書き分を組み込みテーマに重ねた完全なテーマ表を返す。
// 不正なテーマは無視する。
func Merge(overrides model.ThemeSet) model.ThemeSet {
	out := GetAllThemes()
	for k, t := range overrides {
		if ValidateTheme(t) {
			out[k] = t
		}
	}
	return out
}
