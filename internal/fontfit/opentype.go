package fontfit

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// OpenTypeMeasurer はOpenTypeフォントのメトリクスで、単語単位の折り返しを計算して判定する。
// サイズごとのFaceをキャッシュし、複数のゴルーチンから使える。
type OpenTypeMeasurer struct {
	font *opentype.Font

	mu    sync.Mutex
	faces map[float64]font.Face
}

// NewOpenTypeMeasurer はフォントデータを読み込んでMeasurerを生成する。
func NewOpenTypeMeasurer(data []byte) (*OpenTypeMeasurer, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &OpenTypeMeasurer{font: f, faces: make(map[float64]font.Face)}, nil
}

// NewDefaultMeasurer は同梱のGo Regularフォントを使うMeasurerを生成する。
func NewDefaultMeasurer() (*OpenTypeMeasurer, error) {
	return NewOpenTypeMeasurer(goregular.TTF)
}

// Ready はフォントが読み込まれているかを返す。
func (m *OpenTypeMeasurer) Ready() bool {
	return m != nil && m.font != nil
}

// Overflows はtextを単語単位で折り返したときに、幅か高さがboxを超えるかを返す。
// 1単語が枠の幅より長い場合もはみ出しとみなす。
func (m *OpenTypeMeasurer) Overflows(text string, box Box, size float64) (bool, error) {
	face, err := m.face(size)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	maxWidth := fixed.Int26_6(box.Width * 64)
	space := font.MeasureString(face, " ")
	lineHeight := face.Metrics().Height

	lines := 0
	for _, paragraph := range strings.Split(text, "\n") {
		lines++
		var lineWidth fixed.Int26_6
		for i, word := range strings.Fields(paragraph) {
			w := font.MeasureString(face, word)
			if w > maxWidth {
				return true, nil
			}
			switch {
			case i == 0:
				lineWidth = w
			case lineWidth+space+w <= maxWidth:
				lineWidth += space + w
			default:
				lines++
				lineWidth = w
			}
		}
	}

	height := lineHeight.Mul(fixed.I(lines))
	return height.Ceil() > int(box.Height), nil
}

// Close はキャッシュしたFaceを解放する。
func (m *OpenTypeMeasurer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for size, f := range m.faces {
		f.Close()
		delete(m.faces, size)
	}
	return nil
}

func (m *OpenTypeMeasurer) face(size float64) (font.Face, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(m.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face at %v: %w", size, err)
	}
	m.faces[size] = f
	return f, nil
}
