package itemstore

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/hitoshi/pricetag/internal/model"
)

// Field はUpdateItemで更新できる商品フィールド名。
type Field string

const (
	FieldData        Field = "data"
	FieldPrice       Field = "price"
	FieldDesignType  Field = "designType"
	FieldHasDiscount Field = "hasDiscount"
	FieldPriceFor2   Field = "priceFor2"
	FieldPriceFrom3  Field = "priceFrom3"
)

// ParseField はフィールド名を検証してFieldに変換する。
func ParseField(name string) (Field, error) {
	switch f := Field(name); f {
	case FieldData, FieldPrice, FieldDesignType, FieldHasDiscount, FieldPriceFor2, FieldPriceFrom3:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidField, name)
	}
}

// applyField はvalueをフィールドの型に変換してitemに設定する。
// 数値フィールドは数値として、真偽値フィールドは真偽値として解釈する。
func applyField(item *model.Item, field Field, value any) error {
	switch field {
	case FieldData:
		s, err := toLabel(value)
		if err != nil {
			return invalidValue(field, err)
		}
		item.Data = s
	case FieldPrice:
		v, err := toNumber(value)
		if err != nil {
			return invalidValue(field, err)
		}
		if v <= 0 {
			return invalidValue(field, fmt.Errorf("price must be positive, got %v", v))
		}
		item.Price = v
	case FieldDesignType:
		if value == nil {
			item.DesignType = ""
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return invalidValue(field, fmt.Errorf("expected string, got %T", value))
		}
		item.DesignType = strings.TrimSpace(s)
	case FieldHasDiscount:
		if value == nil {
			item.HasDiscount = nil
			return nil
		}
		b := toBool(value)
		item.HasDiscount = &b
	case FieldPriceFor2, FieldPriceFrom3:
		p, err := toOptionalPrice(value)
		if err != nil {
			return invalidValue(field, err)
		}
		if field == FieldPriceFor2 {
			item.PriceFor2 = p
		} else {
			item.PriceFrom3 = p
		}
	default:
		return fmt.Errorf("%w: %s", ErrInvalidField, field)
	}
	return nil
}

func invalidValue(field Field, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrInvalidValue, field, err)
}

func toLabel(value any) (model.Label, error) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case model.Label:
		s = string(v)
	case float64:
		s = model.FormatPrice(v)
	case int:
		s = fmt.Sprint(v)
	case json.Number:
		s = v.String()
	default:
		return "", fmt.Errorf("expected string or number, got %T", value)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("label must not be empty")
	}
	return model.Label(s), nil
}

func toNumber(value any) (float64, error) {
	var v float64
	switch n := value.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		v = f
	case string:
		f, err := model.ParseNumber(n)
		if err != nil {
			return 0, fmt.Errorf("%q: %w", n, err)
		}
		v = f
	default:
		return 0, fmt.Errorf("expected number, got %T", value)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, model.ErrNotANumber
	}
	return v, nil
}

// toOptionalPrice はまとめ買い価格を解釈する。nil・空文字・0は未設定扱い。
func toOptionalPrice(value any) (*float64, error) {
	if value == nil {
		return nil, nil
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := toNumber(value)
	if err != nil {
		return nil, err
	}
	if v < 0 {
		return nil, fmt.Errorf("tier price must not be negative, got %v", v)
	}
	if v == 0 {
		return nil, nil
	}
	return &v, nil
}

// toBool は真偽値への変換を行う。
// 文字列はmodel.ParseFlagで解釈し、数値は0以外を真とする。
func toBool(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return model.ParseFlag(v)
	case float64:
		return v != 0
	case int:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	default:
		return value != nil
	}
}
