package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	state     State
	updatedAt time.Time
}

// MemoryStateRepo はプロセス内メモリにワークスペース状態を保持するリポジトリ。
// STORAGE_DRIVER=memory の場合とテストで使う。
type MemoryStateRepo struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStateRepo はMemoryStateRepoを生成する。
func NewMemoryStateRepo() *MemoryStateRepo {
	return &MemoryStateRepo{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Load は保存済み状態のコピーを返す。
func (r *MemoryStateRepo) Load(_ context.Context, workspaceID string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[workspaceID]
	if !ok {
		return nil, nil
	}
	return copyState(e.state), nil
}

// Save は渡されたキーだけを上書きする。
func (r *MemoryStateRepo) Save(_ context.Context, workspaceID string, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[workspaceID]
	if !ok {
		e = &memoryEntry{state: State{}}
		r.entries[workspaceID] = e
	}
	for k, v := range state {
		e.state[k] = json.RawMessage(bytes.Clone(v))
	}
	e.updatedAt = r.now()
	return nil
}

// Delete はワークスペースを削除する。存在しない場合も成功する。
func (r *MemoryStateRepo) Delete(_ context.Context, workspaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, workspaceID)
	return nil
}

// DeleteOlderThan は最終更新がcutoffより前のワークスペースを削除する。
func (r *MemoryStateRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, e := range r.entries {
		if e.updatedAt.Before(cutoff) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}

func copyState(s State) State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = json.RawMessage(bytes.Clone(v))
	}
	return out
}
