package model

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ErrNotANumber は数値として解釈できない入力を表す。
var ErrNotANumber = errors.New("not a number")

// ParseNumber は表計算ソフトやクリップボードから来た価格文字列を数値にする。
// "1 299,90 ₽"、"1,299.90"、"$15" のような桁区切り・通貨記号付きの表記を受け付ける。
func ParseNumber(raw string) (float64, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r), r == '.', r == ',', r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r), r == ' ', r == '\'':
			// 桁区切り
		case unicode.IsLetter(r), unicode.Is(unicode.Sc, r):
			// 通貨記号・単位
		default:
			return 0, ErrNotANumber
		}
	}

	s := b.String()
	if s == "" {
		return 0, ErrNotANumber
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		// 後ろにある方を小数点とみなす
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, ErrNotANumber
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotANumber
	}
	return v, nil
}

// ParseFlag は表計算ソフト由来の真偽値表記を解釈する。
// "true"、"1"、"yes"、"да"、"+" などを真とし、それ以外は偽とする。
func ParseFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "y", "on", "да", "+", "✓":
		return true
	default:
		return false
	}
}
