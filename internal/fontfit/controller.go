package fontfit

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed はClose後のControllerに調整を依頼したことを表す。
var ErrClosed = errors.New("font-fit controller closed")

type cacheKey struct {
	text     string
	box      Box
	discount bool
}

// Controller は調整サイクルを1つずつ実行する。
// 前のサイクルが終わる前に新しいサイクルを始めると、前のサイクルは取り消される。
// 収束した結果は (text, box, discount) ごとにキャッシュする。
type Controller struct {
	m    Measurer
	opts Options

	mu      sync.Mutex
	cancel  context.CancelFunc
	cycle   uint64
	cache   map[cacheKey]Result
	closed  bool
	onCycle func(Result, error)
}

// NewController はControllerを生成する。
func NewController(m Measurer, opts Options) *Controller {
	return &Controller{
		m:     m,
		opts:  opts,
		cache: make(map[cacheKey]Result),
	}
}

// OnCycle はサイクル完了ごとに呼ばれる関数を設定する。メトリクス記録に使う。
func (c *Controller) OnCycle(fn func(Result, error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCycle = fn
}

// Adjust はreqのフォントサイズを調整する。
// 実行中の前回サイクルは取り消され、context.Canceledで終わる。
func (c *Controller) Adjust(ctx context.Context, req Request) (Result, error) {
	key := cacheKey{text: req.Text, box: req.Box, discount: req.Discount}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Result{}, ErrClosed
	}
	if c.cancel != nil {
		c.cancel()
	}
	if r, ok := c.cache[key]; ok {
		c.cancel = nil
		c.mu.Unlock()
		return r, nil
	}
	cycleCtx, cancel := context.WithCancel(ctx)
	c.cycle++
	cycle := c.cycle
	c.cancel = cancel
	onCycle := c.onCycle
	c.mu.Unlock()

	res, err := Fit(cycleCtx, c.m, req, c.opts)

	c.mu.Lock()
	if c.cycle == cycle {
		c.cancel = nil
		if err == nil && !res.Degraded && !c.closed {
			c.cache[key] = res
		}
	}
	c.mu.Unlock()
	cancel()

	if onCycle != nil {
		onCycle(res, err)
	}
	return res, err
}

// Close は実行中のサイクルを取り消し、キャッシュを破棄する。
// 以降のAdjustはErrClosedを返す。
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.cache = make(map[cacheKey]Result)
	c.closed = true
}

// CacheLen はキャッシュ済みの結果数を返す。
func (c *Controller) CacheLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cache)
}
