package workspace

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/pricetag/internal/itemstore"
	"github.com/hitoshi/pricetag/internal/model"
	"github.com/hitoshi/pricetag/internal/repository"
	"github.com/hitoshi/pricetag/internal/settings"
	"github.com/hitoshi/pricetag/internal/theme"
)

// historyBlob は history/v1 キーの形式。
type historyBlob struct {
	Snapshots [][]model.Item `json:"snapshots"`
	Index     int            `json:"index"`
}

// encodeState はストアと設定を保存キーごとのJSONにする。
// テーマ表は settings/v1 には含めず、themes/v1 にエンベロープとして保存する。
func encodeState(store *itemstore.Store, s model.Settings, now time.Time) (repository.State, error) {
	items, err := json.Marshal(store.Items())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal items: %w", err)
	}

	snapshots, index := store.History()
	history, err := json.Marshal(historyBlob{Snapshots: snapshots, Index: index})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}

	themes, err := theme.Export(s.Themes, now)
	if err != nil {
		return nil, err
	}

	s.Themes = nil
	settingsJSON, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	return repository.State{
		repository.KeyItems:    items,
		repository.KeyHistory:  history,
		repository.KeySettings: settingsJSON,
		repository.KeyThemes:   themes,
	}, nil
}

// current は履歴カーソル位置のスナップショットを返す。
func (h historyBlob) current() []model.Item {
	if h.Index < 0 || h.Index >= len(h.Snapshots) {
		return nil
	}
	return h.Snapshots[h.Index]
}

// decodedState は保存状態から復元した値。
type decodedState struct {
	items    []model.Item
	history  historyBlob
	settings model.Settings
	damaged  []string // 読めなかったキー
}

// decodeState は保存状態を読み込む。
// 欠けているキーは既定値で補う。壊れているキーも既定値で補い、damagedに記録する。
func decodeState(state repository.State) decodedState {
	d := decodedState{settings: settings.Defaults()}

	if raw, ok := state[repository.KeyItems]; ok {
		if err := json.Unmarshal(raw, &d.items); err != nil {
			d.items = nil
			d.damaged = append(d.damaged, repository.KeyItems)
		}
	}
	if raw, ok := state[repository.KeyHistory]; ok {
		if err := json.Unmarshal(raw, &d.history); err != nil {
			d.history = historyBlob{}
			d.damaged = append(d.damaged, repository.KeyHistory)
		}
	}
	if raw, ok := state[repository.KeySettings]; ok {
		s := settings.Defaults()
		if err := json.Unmarshal(raw, &s); err == nil {
			d.settings = s
		} else {
			d.damaged = append(d.damaged, repository.KeySettings)
		}
	}

	d.settings.Themes = theme.GetAllThemes()
	if raw, ok := state[repository.KeyThemes]; ok {
		var valid bool
		if d.settings.Themes, valid = theme.Import(raw); !valid {
			d.damaged = append(d.damaged, repository.KeyThemes)
		}
	}
	return d
}
