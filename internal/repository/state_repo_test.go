package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/hitoshi/pricetag/internal/database"
)

// PostgresStateRepoはStateRepositoryインターフェースを満たすことを検証
func TestPostgresStateRepo_ImplementsInterface(t *testing.T) {
	var _ StateRepository = (*PostgresStateRepo)(nil)
}

// MemoryStateRepoはStateRepositoryインターフェースを満たすことを検証
func TestMemoryStateRepo_ImplementsInterface(t *testing.T) {
	var _ StateRepository = (*MemoryStateRepo)(nil)
}

func TestNewPostgresStateRepo_Initializes(t *testing.T) {
	if NewPostgresStateRepo(nil) == nil {
		t.Fatal("expected non-nil repo")
	}
}

// exerciseRepository は実装に依存しない振る舞いを検証する。
func exerciseRepository(t *testing.T, repo StateRepository) {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()

	t.Run("未作成のワークスペースはnil", func(t *testing.T) {
		state, err := repo.Load(ctx, id)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if state != nil {
			t.Errorf("state = %v, want nil", state)
		}
	})

	t.Run("作成直後は空の状態", func(t *testing.T) {
		if err := repo.Save(ctx, id, nil); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		state, err := repo.Load(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if state == nil || len(state) != 0 {
			t.Errorf("state = %v, want empty", state)
		}
	})

	t.Run("キー単位で上書きされる", func(t *testing.T) {
		err := repo.Save(ctx, id, State{
			KeyItems:    json.RawMessage(`[{"id":1}]`),
			KeySettings: json.RawMessage(`{"design":true}`),
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := repo.Save(ctx, id, State{KeyItems: json.RawMessage(`[]`)}); err != nil {
			t.Fatal(err)
		}

		state, err := repo.Load(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if string(state[KeyItems]) != `[]` {
			t.Errorf("items = %s, want []", state[KeyItems])
		}
		var settings map[string]bool
		if err := json.Unmarshal(state[KeySettings], &settings); err != nil || !settings["design"] {
			t.Errorf("settings = %s, 保存されていないキーは維持されるべき", state[KeySettings])
		}
	})

	t.Run("削除", func(t *testing.T) {
		if err := repo.Delete(ctx, id); err != nil {
			t.Fatal(err)
		}
		state, err := repo.Load(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if state != nil {
			t.Errorf("削除後は nil であるべき: %v", state)
		}
	})
}

func TestMemoryStateRepo(t *testing.T) {
	exerciseRepository(t, NewMemoryStateRepo())
}

func TestMemoryStateRepo_LoadReturnsCopy(t *testing.T) {
	repo := NewMemoryStateRepo()
	ctx := context.Background()
	if err := repo.Save(ctx, "ws", State{KeyItems: json.RawMessage(`[1]`)}); err != nil {
		t.Fatal(err)
	}

	state, _ := repo.Load(ctx, "ws")
	state[KeyItems][1] = '9'

	again, _ := repo.Load(ctx, "ws")
	if string(again[KeyItems]) != `[1]` {
		t.Errorf("Loadの結果を変更しても保存値は変わらないべき: %s", again[KeyItems])
	}
}

func TestMemoryStateRepo_DeleteOlderThan(t *testing.T) {
	repo := NewMemoryStateRepo()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	repo.now = func() time.Time { return base }
	_ = repo.Save(ctx, "old", nil)
	repo.now = func() time.Time { return base.Add(48 * time.Hour) }
	_ = repo.Save(ctx, "new", nil)

	n, err := repo.DeleteOlderThan(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if s, _ := repo.Load(ctx, "old"); s != nil {
		t.Error("古いワークスペースは削除されるべき")
	}
	if s, _ := repo.Load(ctx, "new"); s == nil {
		t.Error("新しいワークスペースは残るべき")
	}
}

// TestPostgresStateRepo は TEST_DATABASE_URL のデータベースで検証する。
// 接続できない場合はスキップする。
func TestPostgresStateRepo(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL が未設定のためスキップ")
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	repo := NewPostgresStateRepo(db)
	exerciseRepository(t, repo)

	ctx := context.Background()
	id := uuid.NewString()
	if err := repo.Save(ctx, id, nil); err != nil {
		t.Fatal(err)
	}
	n, err := repo.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if n < 1 {
		t.Errorf("deleted = %d, want >= 1", n)
	}
}
