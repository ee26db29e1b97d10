// Package itemstore は値札にする商品の並びと、その線形なUndo/Redo履歴を管理する。
//
// 変更操作（set/add/update/delete/duplicate/clear）は1回ごとにコレクション全体の
// スナップショットを履歴に追加する。スナップショットは追加後に変更されない。
// Storeはゴルーチンセーフではない。複数のリクエストから使う場合は
// 呼び出し側（workspace）で排他制御する。
package itemstore

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"

	"github.com/hitoshi/pricetag/internal/model"
)

var (
	// ErrInvalidField は更新できないフィールド名が指定されたことを表す。
	ErrInvalidField = errors.New("invalid field")
	// ErrInvalidValue はフィールドの型に変換できない値、または0以下の価格を表す。
	ErrInvalidValue = errors.New("invalid value")
)

// DefaultHistoryLimit は保持するスナップショット数の既定値。
const DefaultHistoryLimit = 100

// Pricer は商品一覧の discountPrice を現在の設定で再計算する関数。
// 入力を変更せず、新しいスライスを返さなければならない。
type Pricer func([]model.Item) []model.Item

// Op はStoreの状態遷移の種類。
type Op string

const (
	OpSet       Op = "set"
	OpAdd       Op = "add"
	OpUpdate    Op = "update"
	OpDelete    Op = "delete"
	OpDuplicate Op = "duplicate"
	OpClear     Op = "clear"
	OpUndo      Op = "undo"
	OpRedo      Op = "redo"
	OpReprice   Op = "reprice"
	OpRestore   Op = "restore"
)

// Event は状態遷移の完了後に購読者へ通知される。
type Event struct {
	Op      Op
	Count   int // 操作の対象になった商品数
	History HistoryState
}

// HistoryState は履歴カーソルの状態。
type HistoryState struct {
	Index   int  `json:"index"`
	Length  int  `json:"length"`
	CanUndo bool `json:"canUndo"`
	CanRedo bool `json:"canRedo"`
}

// Store は商品コレクションと履歴を保持する。
type Store struct {
	items        []model.Item
	history      [][]model.Item
	historyIndex int
	historyLimit int

	ids    IDGenerator
	pricer Pricer

	subscribers map[int]func(Event)
	nextSubID   int
}

// Option はStoreの生成オプション。
type Option func(*Store)

// WithPricer は書き込みとUndo/Redoのたびに適用するPricerを設定する。
func WithPricer(p Pricer) Option {
	return func(s *Store) {
		s.pricer = p
	}
}

// WithHistoryLimit は保持するスナップショット数の上限を設定する。
// 0以下の場合はDefaultHistoryLimitを使う。
func WithHistoryLimit(limit int) Option {
	return func(s *Store) {
		if limit > 0 {
			s.historyLimit = limit
		}
	}
}

// New は空のコレクションと、空スナップショット1件の履歴を持つStoreを生成する。
func New(ids IDGenerator, opts ...Option) *Store {
	s := &Store{
		items:        []model.Item{},
		history:      [][]model.Item{{}},
		historyLimit: DefaultHistoryLimit,
		ids:          ids,
		subscribers:  make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetPricer はPricerを差し替える。既存の商品は再計算しない（Repriceを使う）。
func (s *Store) SetPricer(p Pricer) {
	s.pricer = p
}

// Subscribe は状態遷移の通知を受け取る関数を登録し、解除関数を返す。
func (s *Store) Subscribe(fn func(Event)) func() {
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn
	return func() {
		delete(s.subscribers, id)
	}
}

// Items は現在の商品一覧のコピーを返す。
func (s *Store) Items() []model.Item {
	return model.CloneItems(s.items)
}

// Len は現在の商品数を返す。
func (s *Store) Len() int {
	return len(s.items)
}

// Find は指定IDの商品のコピーを返す。
func (s *Store) Find(id snowflake.ID) (model.Item, bool) {
	i := s.indexOf(id)
	if i < 0 {
		return model.Item{}, false
	}
	return s.items[i].Clone(), true
}

// HistoryState は履歴カーソルの状態を返す。
func (s *Store) HistoryState() HistoryState {
	return HistoryState{
		Index:   s.historyIndex,
		Length:  len(s.history),
		CanUndo: s.historyIndex > 0,
		CanRedo: s.historyIndex < len(s.history)-1,
	}
}

// SetItems はコレクション全体を置き換える。
// IDが未設定または重複している商品には新しいIDを発行する。
func (s *Store) SetItems(items []model.Item) {
	next := model.CloneItems(items)
	seen := make(map[snowflake.ID]struct{}, len(next))
	for i := range next {
		if _, dup := seen[next[i].ID]; next[i].ID == 0 || dup {
			next[i].ID = s.ids.Generate()
		}
		seen[next[i].ID] = struct{}{}
	}
	s.commit(OpSet, next, len(next))
}

// AddItem は新しいIDを発行して商品を末尾に追加する。
// 呼び出し側が指定したIDは衝突回避のため無視する。
func (s *Store) AddItem(item model.Item) snowflake.ID {
	ids := s.AddItems([]model.Item{item})
	return ids[0]
}

// AddItems は複数の商品を1回の履歴スナップショットで末尾に追加する。
// インポートの追記モードで使う。
func (s *Store) AddItems(items []model.Item) []snowflake.ID {
	next := model.CloneItems(s.items)
	ids := make([]snowflake.ID, 0, len(items))
	for _, it := range items {
		c := it.Clone()
		c.ID = s.ids.Generate()
		next = append(next, c)
		ids = append(ids, c.ID)
	}
	s.commit(OpAdd, next, len(items))
	return ids
}

// UpdateItem は指定IDの商品の1フィールドを更新する。
// 商品が見つからない場合は何もせず (false, nil) を返す。
// フィールド名や値が不正な場合はErrInvalidField/ErrInvalidValueを返し、状態は変えない。
func (s *Store) UpdateItem(id snowflake.ID, field Field, value any) (bool, error) {
	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}

	next := model.CloneItems(s.items)
	if err := applyField(&next[i], field, value); err != nil {
		return false, err
	}
	s.commit(OpUpdate, next, 1)
	return true, nil
}

// DeleteItem は指定IDの商品を削除する。
// 削除した場合のみ履歴スナップショットを追加する。
func (s *Store) DeleteItem(id snowflake.ID) bool {
	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	next := make([]model.Item, 0, len(s.items)-1)
	for j, it := range s.items {
		if j != i {
			next = append(next, it.Clone())
		}
	}
	s.commit(OpDelete, next, 1)
	return true
}

// DuplicateItems は指定IDの商品を複製して末尾に追加する。
// 存在しないIDは無視し、一致した順に追加する。
// 複製はID以外の全フィールドを引き継ぎ、バッチ全体で1つの履歴スナップショットになる。
func (s *Store) DuplicateItems(ids []snowflake.ID) []snowflake.ID {
	want := make(map[snowflake.ID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	next := model.CloneItems(s.items)
	var created []snowflake.ID
	for _, it := range s.items {
		if _, ok := want[it.ID]; !ok {
			continue
		}
		c := it.Clone()
		c.ID = s.ids.Generate()
		next = append(next, c)
		created = append(created, c.ID)
	}
	if len(created) == 0 {
		return nil
	}
	s.commit(OpDuplicate, next, len(created))
	return created
}

// ClearItems はコレクションを空にし、履歴を空スナップショット1件にリセットする。
func (s *Store) ClearItems() {
	s.items = []model.Item{}
	s.history = [][]model.Item{{}}
	s.historyIndex = 0
	s.notify(OpClear, 0)
}

// Undo は履歴カーソルを1つ戻す。先頭では何もしない。
func (s *Store) Undo() bool {
	if s.historyIndex == 0 {
		return false
	}
	s.historyIndex--
	s.items = s.price(model.CloneItems(s.history[s.historyIndex]))
	s.notify(OpUndo, len(s.items))
	return true
}

// Redo は履歴カーソルを1つ進める。末尾では何もしない。
func (s *Store) Redo() bool {
	if s.historyIndex >= len(s.history)-1 {
		return false
	}
	s.historyIndex++
	s.items = s.price(model.CloneItems(s.history[s.historyIndex]))
	s.notify(OpRedo, len(s.items))
	return true
}

// Reprice は現在の商品にPricerを適用し直す。設定変更後に呼ぶ。
// 履歴スナップショットは追加しない。
func (s *Store) Reprice() {
	s.items = s.price(s.items)
	s.notify(OpReprice, len(s.items))
}

// History は永続化用に履歴のコピーとカーソル位置を返す。
func (s *Store) History() ([][]model.Item, int) {
	out := make([][]model.Item, len(s.history))
	for i, snap := range s.history {
		out[i] = model.CloneItems(snap)
	}
	return out, s.historyIndex
}

// Restore は永続化された状態を読み込む。
// 履歴が空の場合は現在の商品だけを持つ履歴を作る。
func (s *Store) Restore(items []model.Item, history [][]model.Item, index int) error {
	if len(history) == 0 {
		history = [][]model.Item{items}
		index = 0
	}
	if index < 0 || index >= len(history) {
		return fmt.Errorf("history index %d out of range [0,%d)", index, len(history))
	}
	s.history = make([][]model.Item, len(history))
	for i, snap := range history {
		s.history[i] = model.CloneItems(snap)
	}
	s.historyIndex = index
	s.items = s.price(model.CloneItems(items))
	s.notify(OpRestore, len(s.items))
	return nil
}

// commit は次の状態を確定し、未来の履歴を切り捨ててスナップショットを追加する。
func (s *Store) commit(op Op, next []model.Item, count int) {
	next = s.price(next)
	s.items = next

	s.history = append(s.history[:s.historyIndex+1], model.CloneItems(next))
	if over := len(s.history) - s.historyLimit; over > 0 {
		s.history = s.history[over:]
	}
	s.historyIndex = len(s.history) - 1

	s.notify(op, count)
}

func (s *Store) price(items []model.Item) []model.Item {
	if s.pricer == nil {
		return items
	}
	return s.pricer(items)
}

func (s *Store) notify(op Op, count int) {
	ev := Event{Op: op, Count: count, History: s.HistoryState()}
	for _, fn := range s.subscribers {
		fn(ev)
	}
}

func (s *Store) indexOf(id snowflake.ID) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
