// Package cleanup は放置されたワークスペースの自動削除ジョブを提供する。
// 最終更新から保持期間（デフォルト30日）を超えたワークスペースを
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetentionDays はワークスペースの既定の保持日数。
const DefaultRetentionDays = 30

// Deleter は最終更新が指定時刻より前のワークスペースを削除する。
// repository.StateRepository と workspace.Manager が満たす。
type Deleter interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob は保持期間を超過したワークスペースの削除ジョブ。
// 削除対象がなくてもエラーにしないため、何度実行してもよい。
type CleanupJob struct {
	deleter       Deleter
	logger        *slog.Logger
	RetentionDays int
	now           func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(deleter Deleter, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		deleter:       deleter,
		logger:        logger,
		RetentionDays: DefaultRetentionDays,
		now:           time.Now,
	}
}

// Cutoff は削除の基準時刻を返す。これより前に更新されたワークスペースが対象。
func (j *CleanupJob) Cutoff() time.Time {
	return j.now().AddDate(0, 0, -j.RetentionDays)
}

// Run は保持期間を超過したワークスペースを1回削除し、削除件数を返す。
// RetentionDaysが0以下の場合は何もしない。
func (j *CleanupJob) Run(ctx context.Context) (int64, error) {
	if j.RetentionDays <= 0 {
		j.logger.Info("保持日数が0以下のためクリーンアップをスキップしました",
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, nil
	}

	start := j.now()
	cutoff := j.Cutoff()

	deleted, err := j.deleter.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("ワークスペースのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return 0, fmt.Errorf("ワークスペースのクリーンアップに失敗: %w", err)
	}

	j.logger.Info("ワークスペースのクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(j.now().Sub(start).Milliseconds())),
	)
	return deleted, nil
}

// Start は起動直後に1回実行し、以降はinterval間隔で実行する。
// コンテキストがキャンセルされるまで戻らない。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("retention_days", j.RetentionDays),
	)

	// エラーはRun内で記録済み
	_, _ = j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップスケジューラを停止しました")
			return
		case <-ticker.C:
			_, _ = j.Run(ctx)
		}
	}
}
