// Package settings はワークスペースの表示・割引設定を保持する。
//
// 変更は明示的なセッターかApplyを通して行い、変更のたびに購読者へ通知する。
// 購読者（価格の再計算や再描画）は通知を受けて処理をやり直す。
// Modelはゴルーチンセーフではなく、排他制御は呼び出し側で行う。
package settings

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/theme"
)

// ErrInvalidSetting は範囲外や未知の値による設定変更を表す。
var ErrInvalidSetting = errors.New("invalid setting")

// DefaultFont は値札の既定フォント。
const DefaultFont = "Montserrat"

// MaxDiscountTextLength は割引キャプションの最大文字数。
const MaxDiscountTextLength = 120

// fontPattern はCSSに埋め込めるフォント名だけを許可する。
var fontPattern = regexp.MustCompile(`^[A-Za-z0-9 \-]+$`)

// Defaults は新しいワークスペースの初期設定を返す。
func Defaults() model.Settings {
	return model.Settings{
		Design:             false,
		DesignType:         model.DesignDefault,
		Themes:             theme.GetAllThemes(),
		CurrentFont:        DefaultFont,
		DiscountAmount:     500,
		MaxDiscountPercent: 5,
		DiscountText:       "price with\nloyalty card",
		ShowThemeLabels:    true,
	}
}

// Model は設定の状態コンテナ。
type Model struct {
	s           model.Settings
	subscribers map[int]func(model.Settings)
	nextSubID   int
}

// New は初期値を検証してModelを生成する。
func New(initial model.Settings) (*Model, error) {
	s := normalize(initial.Clone())
	if err := Validate(s); err != nil {
		return nil, err
	}
	return &Model{
		s:           s,
		subscribers: make(map[int]func(model.Settings)),
	}, nil
}

// NewDefault は初期設定のModelを生成する。
func NewDefault() *Model {
	m, err := New(Defaults())
	if err != nil {
		panic(fmt.Sprintf("default settings are invalid: %v", err))
	}
	return m
}

// Snapshot は現在の設定のコピーを返す。
func (m *Model) Snapshot() model.Settings {
	return m.s.Clone()
}

// Subscribe は設定変更の通知を受け取る関数を登録し、解除関数を返す。
func (m *Model) Subscribe(fn func(model.Settings)) func() {
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = fn
	return func() {
		delete(m.subscribers, id)
	}
}

// SetDesign はグローバルの割引表示フラグを設定する。
func (m *Model) SetDesign(v bool) {
	m.update(func(s *model.Settings) error {
		s.Design = v
		return nil
	})
}

// SetDesignType はデザイン種別を設定する。
// テーブル割引が有効な状態で "table" に切り替えるとグローバルの割引表示は無効になる。
func (m *Model) SetDesignType(v string) error {
	return m.update(func(s *model.Settings) error {
		s.DesignType = v
		return nil
	})
}

// SetHasTableDiscounts は行ごとの割引フラグを使うかを設定する。
// "table" モード中に有効にした場合もグローバルの割引表示は無効になる。
func (m *Model) SetHasTableDiscounts(v bool) {
	m.update(func(s *model.Settings) error {
		s.HasTableDiscounts = v
		return nil
	})
}

// SetHasTableDesigns は行ごとのデザイン種別を使うかを設定する。
func (m *Model) SetHasTableDesigns(v bool) {
	m.update(func(s *model.Settings) error {
		s.HasTableDesigns = v
		return nil
	})
}

// SetShowThemeLabels はNEW/SALEリボンを表示するかを設定する。
func (m *Model) SetShowThemeLabels(v bool) {
	m.update(func(s *model.Settings) error {
		s.ShowThemeLabels = v
		return nil
	})
}

// SetCurrentFont はフォント名を設定する。
func (m *Model) SetCurrentFont(v string) error {
	return m.update(func(s *model.Settings) error {
		s.CurrentFont = v
		return nil
	})
}

// SetDiscountAmount は固定割引額を設定する。
func (m *Model) SetDiscountAmount(v float64) error {
	return m.update(func(s *model.Settings) error {
		s.DiscountAmount = v
		return nil
	})
}

// SetMaxDiscountPercent は上限割引率を設定する。
func (m *Model) SetMaxDiscountPercent(v float64) error {
	return m.update(func(s *model.Settings) error {
		s.MaxDiscountPercent = v
		return nil
	})
}

// SetDiscountText は割引キャプションを設定する。
func (m *Model) SetDiscountText(v string) error {
	return m.update(func(s *model.Settings) error {
		s.DiscountText = v
		return nil
	})
}

// SetThemes はテーマ表全体を置き換える。
func (m *Model) SetThemes(set model.ThemeSet) error {
	return m.update(func(s *model.Settings) error {
		s.Themes = set.Clone()
		return nil
	})
}

// SetTheme は1つのテーマを上書きまたは追加する。キーは小文字にそろえる。
func (m *Model) SetTheme(key string, t model.Theme) error {
	key = ThemeKey(key)
	return m.update(func(s *model.Settings) error {
		if key == "" || key == model.DesignTable {
			return fmt.Errorf("%w: theme key %q", ErrInvalidSetting, key)
		}
		s.Themes[key] = t
		return nil
	})
}

// Patch は部分更新。nilのフィールドは変更しない。
type Patch struct {
	Design             *bool    `json:"design,omitempty"`
	DesignType         *string  `json:"designType,omitempty"`
	CurrentFont        *string  `json:"currentFont,omitempty"`
	DiscountAmount     *float64 `json:"discountAmount,omitempty" validate:"omitempty,gte=0"`
	MaxDiscountPercent *float64 `json:"maxDiscountPercent,omitempty" validate:"omitempty,gte=0,lte=100"`
	DiscountText       *string  `json:"discountText,omitempty" validate:"omitempty,max=120"`
	HasTableDesigns    *bool    `json:"hasTableDesigns,omitempty"`
	HasTableDiscounts  *bool    `json:"hasTableDiscounts,omitempty"`
	ShowThemeLabels    *bool    `json:"showThemeLabels,omitempty"`
}

// IsEmpty は変更対象のフィールドがないかを返す。
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

// Apply は部分更新をまとめて適用する。
// いずれかの値が不正な場合は何も変更せずエラーを返す。通知は1回だけ行う。
func (m *Model) Apply(p Patch) error {
	return m.update(func(s *model.Settings) error {
		// テーブル関連のフラグを先に反映し、相互ルールを最終状態で評価する
		if p.HasTableDesigns != nil {
			s.HasTableDesigns = *p.HasTableDesigns
		}
		if p.HasTableDiscounts != nil {
			s.HasTableDiscounts = *p.HasTableDiscounts
		}
		if p.Design != nil {
			s.Design = *p.Design
		}
		if p.DesignType != nil {
			s.DesignType = *p.DesignType
		}
		if p.CurrentFont != nil {
			s.CurrentFont = *p.CurrentFont
		}
		if p.DiscountAmount != nil {
			s.DiscountAmount = *p.DiscountAmount
		}
		if p.MaxDiscountPercent != nil {
			s.MaxDiscountPercent = *p.MaxDiscountPercent
		}
		if p.DiscountText != nil {
			s.DiscountText = *p.DiscountText
		}
		if p.ShowThemeLabels != nil {
			s.ShowThemeLabels = *p.ShowThemeLabels
		}
		return nil
	})
}

// Replace は設定全体を置き換える。永続化からの復元で使う。
func (m *Model) Replace(s model.Settings) error {
	return m.update(func(dst *model.Settings) error {
		*dst = s.Clone()
		return nil
	})
}

// update は候補の設定に変更を加え、検証に通った場合のみ確定して通知する。
func (m *Model) update(fn func(*model.Settings) error) error {
	next := m.s.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	next = normalize(next)
	if err := Validate(next); err != nil {
		return err
	}
	m.s = next
	snapshot := m.s.Clone()
	for _, sub := range m.subscribers {
		sub(snapshot)
	}
	return nil
}

// ThemeKey はテーマキーとデザイン種別の正規形を返す。
// 商品の取り込みや入力も同じ形に変換してから照合する。
func ThemeKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// canonicalThemes はテーマ表のキーを正規形にそろえる。
// 大文字小文字だけが異なるキーが重なった場合は、もともと正規形だったキーを優先する。
func canonicalThemes(set model.ThemeSet) model.ThemeSet {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(model.ThemeSet, len(set))
	for _, k := range keys {
		ck := ThemeKey(k)
		if _, dup := out[ck]; dup && k != ck {
			continue
		}
		out[ck] = set[k]
	}
	return out
}

// normalize は設定間の相互ルールを適用する。
// テーブルモードで行ごとの割引を使う場合、グローバルの割引表示は常に無効にする。
func normalize(s model.Settings) model.Settings {
	s.DesignType = ThemeKey(s.DesignType)
	s.Themes = canonicalThemes(s.Themes)
	if s.DesignType == model.DesignTable && s.HasTableDiscounts {
		s.Design = false
	}
	s.DiscountText = strings.TrimSpace(s.DiscountText)
	if len(s.Themes) == 0 {
		s.Themes = theme.GetAllThemes()
	}
	return s
}

// Validate は設定値が範囲内かを検証する。
func Validate(s model.Settings) error {
	if math.IsNaN(s.DiscountAmount) || math.IsInf(s.DiscountAmount, 0) || s.DiscountAmount < 0 {
		return fmt.Errorf("%w: discountAmount must be >= 0, got %v", ErrInvalidSetting, s.DiscountAmount)
	}
	if math.IsNaN(s.MaxDiscountPercent) || s.MaxDiscountPercent < 0 || s.MaxDiscountPercent > 100 {
		return fmt.Errorf("%w: maxDiscountPercent must be within [0,100], got %v", ErrInvalidSetting, s.MaxDiscountPercent)
	}
	if !fontPattern.MatchString(s.CurrentFont) {
		return fmt.Errorf("%w: font %q", ErrInvalidSetting, s.CurrentFont)
	}
	if len([]rune(s.DiscountText)) > MaxDiscountTextLength {
		return fmt.Errorf("%w: discountText longer than %d", ErrInvalidSetting, MaxDiscountTextLength)
	}
	if !theme.ValidateSet(s.Themes) {
		return fmt.Errorf("%w: theme set", ErrInvalidSetting)
	}
	if s.DesignType != model.DesignTable {
		if _, ok := s.Themes[s.DesignType]; !ok {
			return fmt.Errorf("%w: designType %q", ErrInvalidSetting, s.DesignType)
		}
	}
	return nil
}
