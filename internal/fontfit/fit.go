// Package fontfit は商品名を固定サイズの枠に収めるためのフォントサイズを求める。
//
// 計測は Measurer に任せ、このパッケージは上限付きの縮小ループだけを持つ。
// 同じ文字列・枠・設定に対しては常に同じサイズに収束する。
package fontfit

import (
	"context"
	"fmt"
)

// Box は商品名を表示する枠の大きさ（px）。
type Box struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero は枠がまだ描画サイズを持たないかを返す。
func (b Box) IsZero() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Measurer は実際のフォントメトリクスで文字列のはみ出しを判定する。
type Measurer interface {
	// Ready はフォントが読み込まれ、計測できる状態かを返す。
	Ready() bool
	// Overflows はsizeで描画したtextがboxからはみ出すかを返す。
	Overflows(text string, box Box, size float64) (bool, error)
}

// Options は縮小ループの設定。
type Options struct {
	InitialSize float64
	MinSize     float64
	Step        float64
	MaxSteps    int
}

// DefaultOptions は既定の縮小設定を返す。
func DefaultOptions() Options {
	return Options{InitialSize: 20, MinSize: 10, Step: 0.5, MaxSteps: 40}
}

// Validate は設定値の整合性を検証する。
func (o Options) Validate() error {
	if o.InitialSize <= 0 || o.MinSize <= 0 || o.Step <= 0 || o.MaxSteps <= 0 {
		return fmt.Errorf("font-fit options must be positive: %+v", o)
	}
	if o.MinSize > o.InitialSize {
		return fmt.Errorf("font-fit min size %v exceeds initial size %v", o.MinSize, o.InitialSize)
	}
	return nil
}

// Request は1回の調整対象。
type Request struct {
	Text string
	Box  Box
	// Discount は割引行を表示するレイアウトか。表示できる高さが変わるため別の結果になる。
	Discount bool
}

// Result は調整結果。
type Result struct {
	Size  float64 `json:"size"`
	Steps int     `json:"steps"`
	// Overflow は最小サイズでも収まらず、はみ出しを許容したことを表す。
	Overflow bool `json:"overflow"`
	// Degraded は計測できず初期サイズを使ったことを表す。
	Degraded bool `json:"degraded"`
}

// Fit はtextがboxに収まるまでStepずつフォントサイズを縮める。
// 最小サイズでも収まらない場合はそこで止めてはみ出しを許容する。
// 枠のサイズが0、フォント未読み込み、計測エラーの場合は初期サイズを返す。
// 縮小の途中でctxが取り消された場合はctxのエラーを返す。
func Fit(ctx context.Context, m Measurer, req Request, opts Options) (Result, error) {
	fallback := Result{Size: opts.InitialSize, Degraded: true}
	if req.Box.IsZero() || m == nil || !m.Ready() {
		return fallback, nil
	}
	if req.Text == "" {
		return Result{Size: opts.InitialSize}, nil
	}

	size := opts.InitialSize
	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		over, err := m.Overflows(req.Text, req.Box, size)
		if err != nil {
			return fallback, nil
		}
		if !over {
			return Result{Size: size, Steps: step}, nil
		}
		if size <= opts.MinSize || step >= opts.MaxSteps {
			return Result{Size: size, Steps: step, Overflow: true}, nil
		}
		size = max(size-opts.Step, opts.MinSize)
	}
}
