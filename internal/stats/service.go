// Package stats は勤務時間の集計ロジックを提供する。
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/timecard/internal/authz"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
)

// WeekStat は1週間分の勤務時間集計を表す。
type WeekStat struct {
	WeekStart   time.Time // 週の開始日（月曜 00:00、ローカルタイム）
	TotalHours  float64   // 完了セッションの正味勤務時間の合計
	BreakHours  float64   // 休憩時間の合計
	TargetHours float64   // ユーザーの週間目標時間
	Sessions    int       // 完了セッション数
}

// Service は勤務時間集計のサービス層。
type Service struct {
	sessionRepo repository.WorkSessionRepository
	userRepo    repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	sessionRepo repository.WorkSessionRepository,
	userRepo repository.UserRepository,
) *Service {
	return &Service{
		sessionRepo: sessionRepo,
		userRepo:    userRepo,
	}
}

// Weekly は直近weeks週分の週次集計を古い週から順に返す。
// 週は月曜始まりで、進行中のセッションは集計に含めない。
func (s *Service) Weekly(ctx context.Context, actor *model.User, targetUserID string, weeks int) ([]WeekStat, error) {
	owner, err := s.userRepo.FindByID(ctx, targetUserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if owner == nil {
		return nil, model.NewUserNotFoundError()
	}
	if err := authz.Authorize(actor, owner); err != nil {
		return nil, err
	}

	if weeks <= 0 || weeks > 52 {
		weeks = 4
	}

	now := time.Now()
	currentWeekStart := WeekStartOf(now)
	since := currentWeekStart.AddDate(0, 0, -7*(weeks-1))

	sessions, err := s.sessionRepo.ListByUserSince(ctx, targetUserID, since)
	if err != nil {
		return nil, fmt.Errorf("セッション一覧の取得に失敗しました: %w", err)
	}

	// 週ごとのバケツを古い順に用意する
	stats := make([]WeekStat, weeks)
	for i := range stats {
		stats[i] = WeekStat{
			WeekStart:   since.AddDate(0, 0, 7*i),
			TargetHours: owner.WeeklyHoursTarget,
		}
	}

	for _, session := range sessions {
		if session.Status != model.SessionStatusCompleted {
			continue
		}
		weekStart := WeekStartOf(session.StartTime)
		idx := weekIndex(since, weekStart, weeks)
		if idx < 0 {
			continue
		}
		if session.NetDuration != nil {
			stats[idx].TotalHours += *session.NetDuration
		}
		if session.BreakDuration != nil {
			stats[idx].BreakHours += *session.BreakDuration
		}
		stats[idx].Sessions++
	}

	return stats, nil
}

// weekIndex はsinceから7日刻みでweeks個並ぶバケツのうち、weekStartを含む
// 位置を返す。範囲外の場合は-1。時間数の割り算ではなく暦上の7日ステップで
// 境界を求めるため、夏時間切り替えで週の実時間が168時間からずれても
// バケツを取り違えない。
func weekIndex(since, weekStart time.Time, weeks int) int {
	for i := weeks - 1; i >= 0; i-- {
		if !weekStart.Before(since.AddDate(0, 0, 7*i)) {
			return i
		}
	}
	return -1
}

// WeekStartOf は指定時刻が属する週の開始（月曜 00:00）を返す。
func WeekStartOf(t time.Time) time.Time {
	// time.WeekdayはSunday=0のため月曜始まりに変換する
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}
