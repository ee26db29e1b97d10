package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/pricetag/internal/fontfit"
	"github.com/hitoshi/pricetag/internal/itemstore"
	"github.com/hitoshi/pricetag/internal/metrics"
	"github.com/hitoshi/pricetag/internal/repository"
	"github.com/hitoshi/pricetag/internal/settings"
)

// ErrNotFound はワークスペースが存在しないことを表す。
var ErrNotFound = errors.New("workspace not found")

// Manager はワークスペースの作成・読み込み・削除を管理する。
// 読み込んだワークスペースはプロセス内にキャッシュする。
type Manager struct {
	cfg  Config
	deps deps

	mu     sync.Mutex
	loaded map[string]*Workspace
	// epoch は削除のたびに進む。読み込み中に削除があった結果をキャッシュしないために使う。
	epoch uint64
}

// NewManager はManagerを生成する。measurerがnilの場合、フォント調整は常に初期サイズになる。
func NewManager(
	repo repository.StateRepository,
	ids itemstore.IDGenerator,
	measurer fontfit.Measurer,
	cfg Config,
	mc metrics.MetricsCollector,
	logger *slog.Logger,
) *Manager {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Manager{
		cfg: cfg,
		deps: deps{
			repo:     repo,
			ids:      ids,
			measurer: measurer,
			metrics:  mc,
			logger:   logger,
			now:      time.Now,
		},
		loaded: make(map[string]*Workspace),
	}
}

// Create は既定の設定で新しいワークスペースを作成し、保存する。
func (m *Manager) Create(ctx context.Context) (*Workspace, error) {
	id := uuid.NewString()
	ws, err := newWorkspace(id, m.cfg, m.deps, settings.Defaults())
	if err != nil {
		return nil, err
	}

	state, err := encodeState(ws.store, ws.settings.Snapshot(), ws.updatedAt)
	if err != nil {
		return nil, err
	}
	if err := m.deps.repo.Save(ctx, id, state); err != nil {
		m.deps.metrics.RecordPersistenceFailure("create")
		return nil, fmt.Errorf("ワークスペースの作成に失敗しました: %w", err)
	}

	m.mu.Lock()
	m.loaded[id] = ws
	m.deps.metrics.SetActiveWorkspaces(len(m.loaded))
	m.mu.Unlock()

	m.deps.logger.Info("workspace created", slog.String("workspace_id", id))
	return ws, nil
}

// Get はワークスペースを返す。未読み込みの場合はリポジトリから復元する。
// IDがUUIDとして不正な場合や存在しない場合はErrNotFoundを返す。
// リポジトリの読み込みはロックの外で行い、他のワークスペースの取得を待たせない。
func (m *Manager) Get(ctx context.Context, id string) (*Workspace, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}
	id = parsed.String()

	for {
		m.mu.Lock()
		if ws, ok := m.loaded[id]; ok {
			m.mu.Unlock()
			return ws, nil
		}
		epoch := m.epoch
		m.mu.Unlock()

		state, err := m.deps.repo.Load(ctx, id)
		if err != nil {
			m.deps.metrics.RecordPersistenceFailure("load")
			return nil, fmt.Errorf("ワークスペースの読み込みに失敗しました: %w", err)
		}
		if state == nil {
			return nil, ErrNotFound
		}
		ws, err := m.restore(id, state)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if existing, ok := m.loaded[id]; ok {
			// 同時に読み込んだ側が先に登録した
			m.mu.Unlock()
			ws.close()
			return existing, nil
		}
		if m.epoch != epoch {
			// 読み込み中に削除が走った。リポジトリの状態を読み直す
			m.mu.Unlock()
			ws.close()
			continue
		}
		m.loaded[id] = ws
		m.deps.metrics.SetActiveWorkspaces(len(m.loaded))
		m.mu.Unlock()
		return ws, nil
	}
}

// restore は保存状態からワークスペースを組み立てる。
// 壊れたキーは既定値で補い、警告ログを出す。
func (m *Manager) restore(id string, state repository.State) (*Workspace, error) {
	d := decodeState(state)
	logger := m.deps.logger.With(slog.String("workspace_id", id))
	if len(d.damaged) > 0 {
		logger.Warn("workspace state partially unreadable", slog.Any("keys", d.damaged))
	}

	ws, err := newWorkspace(id, m.cfg, m.deps, d.settings)
	if err != nil {
		logger.Warn("stored settings invalid, using defaults", slog.String("error", err.Error()))
		if ws, err = newWorkspace(id, m.cfg, m.deps, settings.Defaults()); err != nil {
			return nil, err
		}
	}

	if d.items == nil {
		d.items = d.history.current()
	}
	if err := ws.store.Restore(d.items, d.history.Snapshots, d.history.Index); err != nil {
		logger.Warn("stored history invalid, keeping items only", slog.String("error", err.Error()))
		if err := ws.store.Restore(d.items, nil, 0); err != nil {
			return nil, err
		}
	}
	ws.changed = false
	return ws, nil
}

// Delete はワークスペースを削除する。存在しない場合もエラーにしない。
func (m *Manager) Delete(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return ErrNotFound
	}
	id = parsed.String()

	if err := m.deps.repo.Delete(ctx, id); err != nil {
		m.deps.metrics.RecordPersistenceFailure("delete")
		return fmt.Errorf("ワークスペースの削除に失敗しました: %w", err)
	}

	m.mu.Lock()
	m.epoch++
	if ws, ok := m.loaded[id]; ok {
		ws.close()
		delete(m.loaded, id)
	}
	m.deps.metrics.SetActiveWorkspaces(len(m.loaded))
	m.mu.Unlock()

	m.deps.logger.Info("workspace deleted", slog.String("workspace_id", id))
	return nil
}

// DeleteOlderThan は最終更新がcutoffより前のワークスペースをメモリと
// リポジトリの両方から削除する。クリーンアップジョブから呼ばれる。
func (m *Manager) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	for id, ws := range m.loaded {
		if ws.lastUpdated().Before(cutoff) {
			ws.close()
			delete(m.loaded, id)
		}
	}
	m.deps.metrics.SetActiveWorkspaces(len(m.loaded))
	m.mu.Unlock()

	n, err := m.deps.repo.DeleteOlderThan(ctx, cutoff)

	m.mu.Lock()
	m.epoch++
	m.mu.Unlock()
	return n, err
}

// Close は読み込み済みのワークスペースをすべて閉じる。
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ws := range m.loaded {
		ws.close()
		delete(m.loaded, id)
	}
	m.deps.metrics.SetActiveWorkspaces(0)
}
