package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStateRepo はPostgreSQLを使用したワークスペース状態リポジトリ。
type PostgresStateRepo struct {
	db *sql.DB
}

// NewPostgresStateRepo はPostgresStateRepoを生成する。
func NewPostgresStateRepo(db *sql.DB) *PostgresStateRepo {
	return &PostgresStateRepo{db: db}
}

// Load はワークスペースと保存済みのキーをまとめて取得する。
// LEFT JOINのため、状態が未保存のワークスペースはkeyがNULLの1行になる。
func (r *PostgresStateRepo) Load(ctx context.Context, workspaceID string) (State, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.key, s.value
		 FROM workspaces w
		 LEFT JOIN workspace_state s ON s.workspace_id = w.id
		 WHERE w.id = $1`,
		workspaceID,
	)
	if err != nil {
		return nil, fmt.Errorf("ワークスペース状態の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var state State
	for rows.Next() {
		var key sql.NullString
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("ワークスペース状態のスキャンに失敗しました: %w", err)
		}
		if state == nil {
			state = State{}
		}
		if key.Valid {
			state[key.String] = json.RawMessage(value)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ワークスペース状態の取得に失敗しました: %w", err)
	}

	return state, nil
}

// Save はworkspacesの更新日時とworkspace_stateの各キーを同一トランザクションで書き込む。
func (r *PostgresStateRepo) Save(ctx context.Context, workspaceID string, state State) error {
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO workspaces (id, created_at, updated_at)
		 VALUES ($1, $2, $2)
		 ON CONFLICT (id) DO UPDATE SET updated_at = EXCLUDED.updated_at`,
		workspaceID, now,
	)
	if err != nil {
		return fmt.Errorf("ワークスペースの保存に失敗しました: %w", err)
	}

	for key, value := range state {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO workspace_state (workspace_id, key, value, updated_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (workspace_id, key) DO UPDATE SET
			     value = EXCLUDED.value,
			     updated_at = EXCLUDED.updated_at`,
			workspaceID, key, []byte(value), now,
		)
		if err != nil {
			return fmt.Errorf("ワークスペース状態 %s の保存に失敗しました: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// Delete はワークスペースを削除する。workspace_stateはCASCADE削除される。
func (r *PostgresStateRepo) Delete(ctx context.Context, workspaceID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = $1`, workspaceID)
	if err != nil {
		return fmt.Errorf("ワークスペースの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteOlderThan は最終更新がcutoffより前のワークスペースを削除する。
func (r *PostgresStateRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workspaces WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("古いワークスペースの削除に失敗しました: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return n, nil
}
