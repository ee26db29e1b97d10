package fontfit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeMeasurer はsizeがfitsAt以下なら収まるとみなす。
type fakeMeasurer struct {
	ready  bool
	fitsAt float64
	err    error

	mu    sync.Mutex
	calls int
	// block が設定されている場合、計測ごとに値を受け取るまで待つ
	block chan struct{}
}

func (f *fakeMeasurer) Ready() bool { return f.ready }

func (f *fakeMeasurer) Overflows(text string, box Box, size float64) (bool, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return false, f.err
	}
	return size > f.fitsAt, nil
}

func (f *fakeMeasurer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var testBox = Box{Width: 100, Height: 40}

func TestFit(t *testing.T) {
	opts := Options{InitialSize: 20, MinSize: 10, Step: 0.5, MaxSteps: 40}

	tests := []struct {
		name string
		m    *fakeMeasurer
		box  Box
		want Result
	}{
		{
			name: "最初から収まる",
			m:    &fakeMeasurer{ready: true, fitsAt: 30},
			box:  testBox,
			want: Result{Size: 20},
		},
		{
			name: "縮小して収まる",
			m:    &fakeMeasurer{ready: true, fitsAt: 18},
			box:  testBox,
			want: Result{Size: 18, Steps: 4},
		},
		{
			name: "最小サイズでも収まらない",
			m:    &fakeMeasurer{ready: true, fitsAt: 5},
			box:  testBox,
			want: Result{Size: 10, Steps: 20, Overflow: true},
		},
		{
			name: "フォント未読み込みは初期サイズ",
			m:    &fakeMeasurer{ready: false, fitsAt: 5},
			box:  testBox,
			want: Result{Size: 20, Degraded: true},
		},
		{
			name: "枠のサイズが0なら初期サイズ",
			m:    &fakeMeasurer{ready: true, fitsAt: 5},
			box:  Box{},
			want: Result{Size: 20, Degraded: true},
		},
		{
			name: "計測エラーは初期サイズ",
			m:    &fakeMeasurer{ready: true, err: errors.New("boom")},
			box:  testBox,
			want: Result{Size: 20, Degraded: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fit(context.Background(), tt.m, Request{Text: "Milk", Box: tt.box}, opts)
			if err != nil {
				t.Fatalf("Fit() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Fit() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestFit_StepCapBoundsIterations(t *testing.T) {
	m := &fakeMeasurer{ready: true, fitsAt: 0}
	opts := Options{InitialSize: 100, MinSize: 1, Step: 0.1, MaxSteps: 5}

	got, err := Fit(context.Background(), m, Request{Text: "x", Box: testBox}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Overflow || got.Steps != 5 {
		t.Errorf("Fit() = %+v, want overflow after 5 steps", got)
	}
	if m.callCount() != 6 {
		t.Errorf("計測回数 = %d, want 6", m.callCount())
	}
}

func TestFit_Idempotent(t *testing.T) {
	m := &fakeMeasurer{ready: true, fitsAt: 13.2}
	opts := DefaultOptions()
	req := Request{Text: "Chocolate", Box: testBox}

	first, _ := Fit(context.Background(), m, req, opts)
	for i := 0; i < 3; i++ {
		again, _ := Fit(context.Background(), m, req, opts)
		if again != first {
			t.Fatalf("2回目以降の結果 = %+v, want %+v", again, first)
		}
	}
}

func TestFit_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Fit(ctx, &fakeMeasurer{ready: true, fitsAt: 5}, Request{Text: "x", Box: testBox}, DefaultOptions())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestController_CachesConvergedResult(t *testing.T) {
	m := &fakeMeasurer{ready: true, fitsAt: 15}
	c := NewController(m, DefaultOptions())
	req := Request{Text: "Bread", Box: testBox}

	first, err := c.Adjust(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	calls := m.callCount()

	second, err := c.Adjust(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Errorf("キャッシュ結果 = %+v, want %+v", second, first)
	}
	if m.callCount() != calls {
		t.Error("キャッシュ済みの調整で再計測した")
	}

	// 割引表示の有無でキャッシュは分かれる
	req.Discount = true
	if _, err := c.Adjust(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if c.CacheLen() != 2 {
		t.Errorf("CacheLen() = %d, want 2", c.CacheLen())
	}
}

func TestController_NewCycleSupersedesPrevious(t *testing.T) {
	block := make(chan struct{})
	m := &fakeMeasurer{ready: true, fitsAt: 1, block: block}
	c := NewController(m, DefaultOptions())

	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Adjust(context.Background(), Request{Text: "first", Box: testBox})
		firstErr <- err
	}()

	// 最初のサイクルが計測に入るのを待つ
	deadline := time.Now().Add(2 * time.Second)
	for m.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("最初のサイクルが開始しない")
		}
		time.Sleep(time.Millisecond)
	}

	secondDone := make(chan struct{})
	go func() {
		defer close(secondDone)
		m2 := &fakeMeasurer{ready: true, fitsAt: 30}
		c.m = m2
		if _, err := c.Adjust(context.Background(), Request{Text: "second", Box: testBox}); err != nil {
			t.Errorf("2回目の調整 error = %v", err)
		}
	}()
	<-secondDone
	close(block)

	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("前のサイクルのerror = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("前のサイクルが終了しない")
	}
}

func TestController_Close(t *testing.T) {
	c := NewController(&fakeMeasurer{ready: true, fitsAt: 30}, DefaultOptions())
	if _, err := c.Adjust(context.Background(), Request{Text: "a", Box: testBox}); err != nil {
		t.Fatal(err)
	}

	c.Close()

	if c.CacheLen() != 0 {
		t.Error("Close後はキャッシュが空であるべき")
	}
	if _, err := c.Adjust(context.Background(), Request{Text: "a", Box: testBox}); !errors.Is(err, ErrClosed) {
		t.Errorf("Close後のAdjust error = %v, want ErrClosed", err)
	}
}

func TestOpenTypeMeasurer(t *testing.T) {
	m, err := NewDefaultMeasurer()
	if err != nil {
		t.Fatalf("NewDefaultMeasurer() error = %v", err)
	}
	defer m.Close()

	if !m.Ready() {
		t.Fatal("Ready() = false")
	}

	box := Box{Width: 200, Height: 60}
	short, err := m.Overflows("Milk", box, 20)
	if err != nil {
		t.Fatal(err)
	}
	if short {
		t.Error("短い名前ははみ出さないべき")
	}

	long := strings.Repeat("Chocolate ", 20)
	over, err := m.Overflows(long, box, 20)
	if err != nil {
		t.Fatal(err)
	}
	if !over {
		t.Error("長い名前ははみ出すべき")
	}

	res, err := Fit(context.Background(), m, Request{Text: "Organic whole milk 1L", Box: box}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Size < 10 || res.Size > 20 || res.Degraded {
		t.Errorf("Fit() = %+v", res)
	}
}
