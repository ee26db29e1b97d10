package itemstore

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bwmarrin/snowflake"

	"github.com/hitoshi/pricetag/internal/model"
)

// sequenceIDs はテスト用の連番IDGenerator。
type sequenceIDs struct {
	next snowflake.ID
}

func (g *sequenceIDs) Generate() snowflake.ID {
	g.next++
	return g.next
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	gen, err := NewSnowflakeGenerator(1)
	if err != nil {
		t.Fatalf("NewSnowflakeGenerator: %v", err)
	}
	return New(gen, opts...)
}

func sampleItem(label string, price float64) model.Item {
	return model.Item{Data: model.Label(label), Price: price}
}

func TestNew_EmptyWithSingleSnapshot(t *testing.T) {
	s := newTestStore(t)

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	h := s.HistoryState()
	if h.Index != 0 || h.Length != 1 || h.CanUndo || h.CanRedo {
		t.Errorf("HistoryState() = %+v, want index 0 length 1 without undo/redo", h)
	}
}

func TestAddItem_AssignsFreshID(t *testing.T) {
	s := newTestStore(t)

	item := sampleItem("Apple", 100)
	item.ID = 42
	id := s.AddItem(item)

	if id == 42 || id == 0 {
		t.Errorf("AddItem() id = %d, want freshly generated id", id)
	}
	got, ok := s.Find(id)
	if !ok {
		t.Fatal("追加した商品が見つからない")
	}
	if got.Data != "Apple" || got.Price != 100 {
		t.Errorf("Find() = %+v", got)
	}
	if h := s.HistoryState(); h.Index != 1 || h.Length != 2 {
		t.Errorf("HistoryState() = %+v, want index 1 length 2", h)
	}
}

func TestDuplicateItems_UniqueIDsAcrossRapidBatches(t *testing.T) {
	s := newTestStore(t)
	base := s.AddItems([]model.Item{
		sampleItem("A", 100),
		sampleItem("B", 200),
		sampleItem("C", 300),
	})

	for i := 0; i < 5; i++ {
		created := s.DuplicateItems(base)
		if len(created) != 3 {
			t.Fatalf("DuplicateItems() created %d items, want 3", len(created))
		}
	}

	items := s.Items()
	if len(items) != 18 {
		t.Fatalf("len(Items()) = %d, want 18", len(items))
	}
	seen := make(map[snowflake.ID]bool, len(items))
	for _, it := range items {
		if seen[it.ID] {
			t.Fatalf("重複したID %d が存在する", it.ID)
		}
		seen[it.ID] = true
	}
}

func TestDuplicateItems_CopiesFieldsAndSkipsUnknown(t *testing.T) {
	s := newTestStore(t)
	src := model.Item{
		Data:        "Cheese",
		Price:       500,
		DesignType:  model.DesignSale,
		HasDiscount: model.BoolPtr(true),
		PriceFor2:   model.Float64Ptr(900),
	}
	id := s.AddItem(src)
	before := s.HistoryState().Length

	created := s.DuplicateItems([]snowflake.ID{id, 999999})
	if len(created) != 1 {
		t.Fatalf("DuplicateItems() = %v, want 1 id", created)
	}
	if s.HistoryState().Length != before+1 {
		t.Errorf("複製は1回のスナップショットであるべき")
	}

	dup, _ := s.Find(created[0])
	orig, _ := s.Find(id)
	dup.ID = orig.ID
	if !reflect.DeepEqual(dup, orig) {
		t.Errorf("複製 = %+v, want %+v", dup, orig)
	}

	if got := s.DuplicateItems([]snowflake.ID{123}); got != nil {
		t.Errorf("未知のIDのみの複製は何もしないべき: %v", got)
	}
	if s.HistoryState().Length != before+1 {
		t.Error("何も複製しない場合はスナップショットを追加しないべき")
	}
}

func TestSetItems_RegeneratesMissingAndDuplicateIDs(t *testing.T) {
	s := New(&sequenceIDs{next: 100})

	s.SetItems([]model.Item{
		{ID: 5, Data: "A", Price: 1},
		{ID: 0, Data: "B", Price: 2},
		{ID: 5, Data: "C", Price: 3},
	})

	items := s.Items()
	if items[0].ID != 5 {
		t.Errorf("一意なIDは維持されるべき: got %d", items[0].ID)
	}
	if items[1].ID != 101 || items[2].ID != 102 {
		t.Errorf("IDs = %d, %d, want 101, 102", items[1].ID, items[2].ID)
	}
}

func TestUpdateItem(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		value   any
		check   func(t *testing.T, it model.Item)
		wantErr error
	}{
		{
			name:  "価格を数値で更新",
			field: FieldPrice,
			value: 250.0,
			check: func(t *testing.T, it model.Item) {
				if it.Price != 250 {
					t.Errorf("Price = %v, want 250", it.Price)
				}
			},
		},
		{
			name:  "価格を文字列で更新",
			field: FieldPrice,
			value: "1 299,50",
			check: func(t *testing.T, it model.Item) {
				if it.Price != 1299.5 {
					t.Errorf("Price = %v, want 1299.5", it.Price)
				}
			},
		},
		{
			name:    "0の価格は拒否",
			field:   FieldPrice,
			value:   0.0,
			wantErr: ErrInvalidValue,
		},
		{
			name:    "数値でない価格は拒否",
			field:   FieldPrice,
			value:   "abc",
			wantErr: ErrInvalidValue,
		},
		{
			name:    "空のラベルは拒否",
			field:   FieldData,
			value:   "  ",
			wantErr: ErrInvalidValue,
		},
		{
			name:  "割引フラグを文字列で更新",
			field: FieldHasDiscount,
			value: "yes",
			check: func(t *testing.T, it model.Item) {
				if it.HasDiscount == nil || !*it.HasDiscount {
					t.Errorf("HasDiscount = %v, want true", it.HasDiscount)
				}
			},
		},
		{
			name:  "まとめ買い価格の0は未設定",
			field: FieldPriceFor2,
			value: 0.0,
			check: func(t *testing.T, it model.Item) {
				if it.PriceFor2 != nil {
					t.Errorf("PriceFor2 = %v, want nil", *it.PriceFor2)
				}
			},
		},
		{
			name:  "デザイン種別を設定",
			field: FieldDesignType,
			value: "new",
			check: func(t *testing.T, it model.Item) {
				if it.DesignType != model.DesignNew {
					t.Errorf("DesignType = %q, want new", it.DesignType)
				}
			},
		},
		{
			name:    "不明なフィールドは拒否",
			field:   Field("color"),
			value:   "red",
			wantErr: ErrInvalidField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			id := s.AddItem(sampleItem("Milk", 100))
			before := s.Items()

			ok, err := s.UpdateItem(id, tt.field, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if ok {
					t.Error("エラー時はfalseを返すべき")
				}
				if !reflect.DeepEqual(s.Items(), before) {
					t.Error("エラー時は状態を変えないべき")
				}
				return
			}
			if err != nil || !ok {
				t.Fatalf("UpdateItem() = %v, %v", ok, err)
			}
			got, _ := s.Find(id)
			tt.check(t, got)
		})
	}
}

func TestUpdateItem_UnknownIDIsNoop(t *testing.T) {
	s := newTestStore(t)
	s.AddItem(sampleItem("Milk", 100))
	before := s.HistoryState()

	ok, err := s.UpdateItem(12345, FieldPrice, 10.0)
	if ok || err != nil {
		t.Errorf("UpdateItem() = %v, %v, want false, nil", ok, err)
	}
	if s.HistoryState() != before {
		t.Error("存在しないIDの更新は履歴を変えないべき")
	}
}

func TestDeleteItem(t *testing.T) {
	s := newTestStore(t)
	a := s.AddItem(sampleItem("A", 1))
	s.AddItem(sampleItem("B", 2))

	if !s.DeleteItem(a) {
		t.Fatal("DeleteItem() = false, want true")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
	before := s.HistoryState()
	if s.DeleteItem(a) {
		t.Error("削除済みIDの削除はfalseを返すべき")
	}
	if s.HistoryState() != before {
		t.Error("何も削除しない場合はスナップショットを追加しないべき")
	}
}

func TestUndoRedo_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	s.AddItem(sampleItem("A", 100))
	id := s.AddItem(sampleItem("B", 200))
	if _, err := s.UpdateItem(id, FieldPrice, 250.0); err != nil {
		t.Fatal(err)
	}
	after := s.Items()

	// 変更の数だけ戻して進めると元に戻る
	for i := 0; i < 3; i++ {
		if !s.Undo() {
			t.Fatalf("Undo() #%d = false", i)
		}
	}
	if s.Len() != 0 {
		t.Errorf("全てUndo後のLen() = %d, want 0", s.Len())
	}
	if s.Undo() {
		t.Error("履歴の先頭でのUndo()はfalseを返すべき")
	}
	for i := 0; i < 3; i++ {
		if !s.Redo() {
			t.Fatalf("Redo() #%d = false", i)
		}
	}
	if s.Redo() {
		t.Error("履歴の末尾でのRedo()はfalseを返すべき")
	}
	if !reflect.DeepEqual(s.Items(), after) {
		t.Errorf("Items() = %+v, want %+v", s.Items(), after)
	}
}

func TestUndo_ThenWriteTruncatesFuture(t *testing.T) {
	s := newTestStore(t)
	s.AddItem(sampleItem("A", 1))
	s.AddItem(sampleItem("B", 2))
	s.Undo()

	s.AddItem(sampleItem("C", 3))

	h := s.HistoryState()
	if h.CanRedo {
		t.Error("書き込み後はRedoできないべき")
	}
	if h.Length != 3 || h.Index != 2 {
		t.Errorf("HistoryState() = %+v, want index 2 length 3", h)
	}
	items := s.Items()
	if len(items) != 2 || items[1].Data != "C" {
		t.Errorf("Items() = %+v", items)
	}
}

func TestHistoryLimit(t *testing.T) {
	s := newTestStore(t, WithHistoryLimit(3))
	for i := 0; i < 10; i++ {
		s.AddItem(sampleItem("X", float64(i+1)))
	}
	h := s.HistoryState()
	if h.Length != 3 || h.Index != 2 {
		t.Errorf("HistoryState() = %+v, want length 3 index 2", h)
	}
}

func TestClearItems_ResetsHistory(t *testing.T) {
	s := newTestStore(t)
	s.AddItem(sampleItem("A", 1))
	s.AddItem(sampleItem("B", 2))

	s.ClearItems()

	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	if h := s.HistoryState(); h.Length != 1 || h.Index != 0 {
		t.Errorf("HistoryState() = %+v, want single snapshot", h)
	}
}

func TestPricer_AppliedOnWriteAndUndo(t *testing.T) {
	half := func(items []model.Item) []model.Item {
		out := model.CloneItems(items)
		for i := range out {
			out[i].DiscountPrice = out[i].Price / 2
		}
		return out
	}
	s := newTestStore(t, WithPricer(half))

	s.AddItem(sampleItem("A", 100))
	if got := s.Items()[0].DiscountPrice; got != 50 {
		t.Errorf("DiscountPrice = %v, want 50", got)
	}

	s.SetPricer(func(items []model.Item) []model.Item {
		out := model.CloneItems(items)
		for i := range out {
			out[i].DiscountPrice = out[i].Price
		}
		return out
	})
	s.AddItem(sampleItem("B", 10))
	s.Undo()

	if got := s.Items()[0].DiscountPrice; got != 100 {
		t.Errorf("Undo後は現在のPricerで再計算されるべき: DiscountPrice = %v, want 100", got)
	}
}

func TestItems_ReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	item := sampleItem("A", 1)
	item.PriceFor2 = model.Float64Ptr(2)
	s.AddItem(item)

	got := s.Items()
	got[0].Data = "changed"
	*got[0].PriceFor2 = 99

	again := s.Items()
	if again[0].Data != "A" || *again[0].PriceFor2 != 2 {
		t.Errorf("Items()の戻り値の変更が内部状態に影響した: %+v", again[0])
	}
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t)
	var events []Event
	unsubscribe := s.Subscribe(func(ev Event) {
		events = append(events, ev)
	})

	s.AddItem(sampleItem("A", 1))
	s.Undo()
	unsubscribe()
	s.Redo()

	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Op != OpAdd || events[1].Op != OpUndo {
		t.Errorf("events = %+v", events)
	}
	if events[1].History.CanUndo || !events[1].History.CanRedo {
		t.Errorf("Undo後の履歴状態 = %+v", events[1].History)
	}
}

func TestRestore(t *testing.T) {
	s := newTestStore(t)
	snap0 := []model.Item{}
	snap1 := []model.Item{{ID: 1, Data: "A", Price: 1}}

	if err := s.Restore(snap1, [][]model.Item{snap0, snap1}, 1); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if s.Len() != 1 || !s.HistoryState().CanUndo {
		t.Errorf("復元後の状態が不正: len=%d history=%+v", s.Len(), s.HistoryState())
	}

	if err := s.Restore(snap1, [][]model.Item{snap0}, 5); err == nil {
		t.Error("範囲外のカーソルはエラーになるべき")
	}
}
