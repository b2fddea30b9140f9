// Package reconcile は旧ポイント台帳打刻から勤務セッションへの変換処理を提供する。
// START/STOPペアを完了済みセッションに変換し、変換済み打刻には
// migrated_atマーカーを付けて再変換を防ぐ。
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/timecard/internal/duration"
	"github.com/hitoshi/timecard/internal/metrics"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
)

// orphanNote は要確認として変換されたセッションに付けるメモ。
const orphanNote = "要確認: ペアの見つからない打刻から変換されました"

// Reconciler は旧台帳打刻の一括変換ジョブ。
// ユーザーごとに独立したトランザクションで処理するため、
// あるユーザーの失敗が他のユーザーの変換を妨げることはない。
type Reconciler struct {
	entryRepo repository.TimeEntryRepository
	logger    *slog.Logger
	collector metrics.MetricsCollector
}

// NewReconciler はReconcilerの新しいインスタンスを生成する。
// collectorはnilでもよい（メトリクス記録をスキップする）。
func NewReconciler(
	entryRepo repository.TimeEntryRepository,
	logger *slog.Logger,
	collector metrics.MetricsCollector,
) *Reconciler {
	return &Reconciler{
		entryRepo: entryRepo,
		logger:    logger,
		collector: collector,
	}
}

// Result は変換実行の集計を表す。
type Result struct {
	UsersProcessed int
	UsersFailed    int
	Sessions       int // 作成されたセッション数
	Reconciled     int // 変換された打刻数
	Orphaned       int // 要確認として変換された打刻数
}

// Run は未移行の打刻を持つ全ユーザーを順番に変換する。
// 冪等: 変換済みの打刻は対象外のため、再実行しても重複セッションは生成されない。
func (r *Reconciler) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	userIDs, err := r.entryRepo.ListUnmigratedUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	if len(userIDs) == 0 {
		r.logger.Info("変換対象の打刻はありません")
		return &Result{}, nil
	}

	r.logger.Info("台帳変換を開始します",
		slog.Int("user_count", len(userIDs)),
	)

	result := &Result{}
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		sessions, reconciled, orphaned, err := r.reconcileUser(ctx, userID)
		if err != nil {
			// ユーザー単位で失敗を隔離し、残りのユーザーを処理する
			result.UsersFailed++
			r.logger.Error("ユーザーの台帳変換に失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
			continue
		}

		result.UsersProcessed++
		result.Sessions += sessions
		result.Reconciled += reconciled
		result.Orphaned += orphaned
	}

	if r.collector != nil {
		r.collector.RecordEntriesReconciled(result.Reconciled)
		r.collector.RecordEntriesOrphaned(result.Orphaned)
	}

	r.logger.Info("台帳変換が完了しました",
		slog.Int("users_processed", result.UsersProcessed),
		slog.Int("users_failed", result.UsersFailed),
		slog.Int("sessions_created", result.Sessions),
		slog.Int("entries_reconciled", result.Reconciled),
		slog.Int("entries_orphaned", result.Orphaned),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return result, nil
}

// reconcileUser は1ユーザー分の未移行打刻をセッションに変換する。
// セッションの作成と打刻の移行済みマークは同一トランザクションで行う。
func (r *Reconciler) reconcileUser(ctx context.Context, userID string) (sessions, reconciled, orphaned int, err error) {
	entries, err := r.entryRepo.ListUnmigratedByUser(ctx, userID)
	if err != nil {
		return 0, 0, 0, err
	}

	converted, entryIDs, orphanCount := PairEntries(entries)
	if len(entryIDs) == 0 {
		return 0, 0, 0, nil
	}

	if err := r.entryRepo.SaveReconciled(ctx, converted, entryIDs); err != nil {
		return 0, 0, 0, err
	}

	return len(converted), len(entryIDs), orphanCount, nil
}

// PairEntries は時刻昇順の打刻列をSTART/STOPペアリングでセッションに変換する。
// 戻り値は作成するセッション、移行済みマークを付ける打刻ID、要確認件数。
//
// ペアリング規則:
//   - STARTに続く最初のSTOPがペアになり、完了済みセッションに変換される。
//   - STARTの直後に別のSTARTが来た場合、前のSTARTは要確認セッションになる。
//   - 先行するSTARTのないSTOPは要確認セッションになる。
//   - 末尾の未ペアSTARTも要確認セッションになる（旧台帳は新規書き込みのない
//     凍結済みデータのため、対応するSTOPが後から来ることはない）。
func PairEntries(entries []*model.TimeEntry) ([]*model.WorkSession, []string, int) {
	var sessions []*model.WorkSession
	var entryIDs []string
	orphaned := 0

	var pending *model.TimeEntry // 未ペアのSTART
	for _, entry := range entries {
		switch entry.Type {
		case model.EntryTypeStart:
			if pending != nil {
				// 前のSTARTにSTOPが来なかった
				sessions = append(sessions, orphanSession(pending))
				entryIDs = append(entryIDs, pending.ID)
				orphaned++
			}
			pending = entry

		case model.EntryTypeStop:
			if pending == nil {
				sessions = append(sessions, orphanSession(entry))
				entryIDs = append(entryIDs, entry.ID)
				orphaned++
				continue
			}
			sessions = append(sessions, pairedSession(pending, entry))
			entryIDs = append(entryIDs, pending.ID, entry.ID)
			pending = nil
		}
	}

	if pending != nil {
		sessions = append(sessions, orphanSession(pending))
		entryIDs = append(entryIDs, pending.ID)
		orphaned++
	}

	return sessions, entryIDs, orphaned
}

// pairedSession はSTART/STOPペアから完了済みセッションを生成する。
// 旧台帳には休憩の概念がないため、正味時間は総時間と等しい。
func pairedSession(start, stop *model.TimeEntry) *model.WorkSession {
	total, _ := duration.ElapsedHours(start.Time, stop.Time)
	net := duration.NetDuration(total, 0)
	breakTotal := 0.0

	now := time.Now()
	stopTime := stop.Time
	return &model.WorkSession{
		ID:            uuid.NewString(),
		UserID:        start.UserID,
		StartTime:     start.Time,
		EndTime:       &stopTime,
		Status:        model.SessionStatusCompleted,
		TotalDuration: &total,
		BreakDuration: &breakTotal,
		NetDuration:   &net,
		Note:          start.Note,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// orphanSession はペアの見つからない打刻から長さ0の要確認セッションを生成する。
func orphanSession(entry *model.TimeEntry) *model.WorkSession {
	zero := 0.0
	now := time.Now()
	at := entry.Time
	return &model.WorkSession{
		ID:            uuid.NewString(),
		UserID:        entry.UserID,
		StartTime:     entry.Time,
		EndTime:       &at,
		Status:        model.SessionStatusCompleted,
		TotalDuration: &zero,
		BreakDuration: &zero,
		NetDuration:   &zero,
		Note:          orphanNote,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
