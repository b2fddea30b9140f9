// Package cleanup は期限切れ招待の自動削除ジョブを提供する。
// 有効期限を過ぎた未使用の招待を定期バッチで削除する。
// 使用済みの招待は登録の監査証跡として残す。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/timecard/internal/repository"
)

// CleanupJob は期限切れ招待の自動削除ジョブ。
// 冪等な削除処理で、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	inviteRepo repository.InviteRepository
	logger     *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(inviteRepo repository.InviteRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		inviteRepo: inviteRepo,
		logger:     logger,
	}
}

// Run は期限切れかつ未使用の招待を削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.inviteRepo.DeleteExpired(ctx, time.Now())
	if err != nil {
		j.logger.Error("招待クリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return err
	}

	j.logger.Info("招待クリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は指定間隔でクリーンアップジョブを繰り返し実行する。
// 起動直後に1回実行し、コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("招待クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	if err := j.Run(ctx); err != nil {
		j.logger.Error("招待クリーンアップに失敗しました", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("招待クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("招待クリーンアップに失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
