// Package repository はワークスペース状態の永続化インターフェースを定義する。
package repository

import (
	"context"
	"encoding/json"
	"time"
)

// 状態を保存するキー。値の形式を変える場合はバージョンを上げる。
const (
	KeyItems    = "items/v1"
	KeyHistory  = "history/v1"
	KeySettings = "settings/v1"
	KeyThemes   = "themes/v1"
)

// State はワークスペースの状態をキーごとのJSONとして保持する。
type State map[string]json.RawMessage

// StateRepository はワークスペース状態の永続化インターフェース。
type StateRepository interface {
	// Load は指定ワークスペースの状態を取得する。
	// ワークスペースが存在しない場合はnilを返す。状態が未保存なら空のStateを返す。
	Load(ctx context.Context, workspaceID string) (State, error)

	// Save はワークスペースを作成または更新し、渡されたキーの値を同一トランザクションでUPSERTする。
	// 渡されなかったキーは変更しない。
	Save(ctx context.Context, workspaceID string, state State) error

	// Delete は指定ワークスペースと状態をすべて削除する。
	Delete(ctx context.Context, workspaceID string) error

	// DeleteOlderThan は最終更新がcutoffより前のワークスペースを削除し、削除数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
