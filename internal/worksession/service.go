// Package worksession は勤務セッションのドメインロジックを提供する。
// セッションのライフサイクル（開始・休憩・終了）と完了後の監査付き編集を扱う。
package worksession

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/timecard/internal/audit"
	"github.com/hitoshi/timecard/internal/authz"
	"github.com/hitoshi/timecard/internal/duration"
	"github.com/hitoshi/timecard/internal/metrics"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
)

// SessionDetail はセッションと関連データを結合したドメインオブジェクト。
type SessionDetail struct {
	Session *model.WorkSession
	Breaks  []*model.Break
	Edits   []*model.WorkSessionEdit
}

// EditInput は完了済みセッションの編集リクエストを表す。
// nilのフィールドは変更しないことを意味する。
type EditInput struct {
	StartTime *time.Time
	EndTime   *time.Time
	Note      *string
	Project   *string
	Reason    string
}

// Service は勤務セッションのサービス層。
type Service struct {
	sessionRepo repository.WorkSessionRepository
	breakRepo   repository.BreakRepository
	editRepo    repository.WorkSessionEditRepository
	userRepo    repository.UserRepository
	collector   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorはnilでもよい（メトリクス記録をスキップする）。
func NewService(
	sessionRepo repository.WorkSessionRepository,
	breakRepo repository.BreakRepository,
	editRepo repository.WorkSessionEditRepository,
	userRepo repository.UserRepository,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		sessionRepo: sessionRepo,
		breakRepo:   breakRepo,
		editRepo:    editRepo,
		userRepo:    userRepo,
		collector:   collector,
	}
}

// Start は新しい勤務セッションを開始する。
// 進行中のセッションが既に存在する場合はAlreadyActiveエラーを返す。
// 同時リクエストの片方はDBの部分一意インデックスで弾かれる。
func (s *Service) Start(ctx context.Context, userID, note, project string) (*model.WorkSession, error) {
	now := time.Now()
	session := &model.WorkSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		StartTime: now,
		Status:    model.SessionStatusOngoing,
		Note:      note,
		Project:   project,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	if s.collector != nil {
		s.collector.RecordSessionStarted()
	}

	return session, nil
}

// Stop は進行中のセッションを終了する。
// endTimeがnilの場合は現在時刻を終了時刻とする（管理者による締め忘れ修正用の上書き）。
// 未終了の休憩は終了時刻で強制終了され、Durationフィールドが確定する。
func (s *Service) Stop(ctx context.Context, actor *model.User, sessionID string, endTime *time.Time) (*model.WorkSession, error) {
	session, err := s.authorizeSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	stopTime := time.Now()
	if endTime != nil {
		if endTime.Before(session.StartTime) {
			return nil, model.NewInvalidRangeError()
		}
		// 上書き時刻は未終了休憩の開始より後でなければならない。
		// そうでなければ強制終了する休憩の長さが負になってしまう。
		breaks, err := s.breakRepo.ListBySession(ctx, session.ID)
		if err != nil {
			return nil, err
		}
		for _, br := range breaks {
			if br.EndTime == nil && endTime.Before(br.StartTime) {
				return nil, model.NewInvalidRangeError()
			}
		}
		stopTime = *endTime
	}

	stopped, err := s.sessionRepo.Stop(ctx, session.ID, stopTime)
	if err != nil {
		return nil, err
	}

	if s.collector != nil && stopped.NetDuration != nil {
		s.collector.RecordSessionStopped(*stopped.NetDuration)
	}

	return stopped, nil
}

// StartBreak は進行中のセッションで休憩を開始し、セッションをPAUSEDに遷移させる。
// 種別未指定時はUNPAIDとして扱う。
func (s *Service) StartBreak(ctx context.Context, actor *model.User, sessionID string, breakType model.BreakType, note string) (*model.Break, error) {
	session, err := s.authorizeSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	if breakType == "" {
		breakType = model.BreakTypeUnpaid
	}
	if breakType != model.BreakTypePaid && breakType != model.BreakTypeUnpaid {
		return nil, model.NewInvalidStateError("不明な種別での休憩の開始")
	}

	now := time.Now()
	br := &model.Break{
		ID:            uuid.NewString(),
		WorkSessionID: session.ID,
		StartTime:     now,
		Type:          breakType,
		Note:          note,
		CreatedAt:     now,
	}

	if err := s.breakRepo.StartBreak(ctx, br); err != nil {
		return nil, err
	}

	if s.collector != nil {
		s.collector.RecordBreakStarted()
	}

	return br, nil
}

// EndBreak は未終了の休憩を終了し、セッションをONGOINGに戻す。
func (s *Service) EndBreak(ctx context.Context, actor *model.User, sessionID string) (*model.Break, error) {
	session, err := s.authorizeSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	return s.breakRepo.EndOpenBreak(ctx, session.ID, time.Now())
}

// Current はユーザーの進行中セッションを休憩付きで返す。
// 進行中セッションがない場合はnilを返す（エラーではない）。
func (s *Service) Current(ctx context.Context, userID string) (*SessionDetail, error) {
	session, err := s.sessionRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("進行中セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	breaks, err := s.breakRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("休憩一覧の取得に失敗しました: %w", err)
	}

	return &SessionDetail{Session: session, Breaks: breaks}, nil
}

// Get はセッションを休憩と監査履歴付きで返す。
func (s *Service) Get(ctx context.Context, actor *model.User, sessionID string) (*SessionDetail, error) {
	session, err := s.authorizeSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	breaks, err := s.breakRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("休憩一覧の取得に失敗しました: %w", err)
	}

	edits, err := s.editRepo.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("監査履歴の取得に失敗しました: %w", err)
	}

	return &SessionDetail{Session: session, Breaks: breaks, Edits: edits}, nil
}

// List は指定ユーザーのセッション一覧を開始時刻の降順で返す。
// 他人のセッションは管理者が同一会社内のユーザーに対してのみ閲覧できる。
func (s *Service) List(ctx context.Context, actor *model.User, targetUserID string, limit, offset int) ([]*model.WorkSession, error) {
	owner, err := s.resolveOwner(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, owner); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	return s.sessionRepo.ListByUser(ctx, targetUserID, limit, offset)
}

// History はセッションの監査レコードを新しい順で返す。
func (s *Service) History(ctx context.Context, actor *model.User, sessionID string) ([]*model.WorkSessionEdit, error) {
	session, err := s.authorizeSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	return s.editRepo.ListBySession(ctx, session.ID)
}

// Edit は完了済みセッションを監査付きで編集する。
// 編集理由は必須で、変更がない場合は監査レコードを残さずそのまま返す。
// 時刻が変更された場合はDurationフィールドを再計算する。
func (s *Service) Edit(ctx context.Context, actor *model.User, sessionID string, input EditInput) (*model.WorkSession, error) {
	if input.Reason == "" {
		return nil, model.NewReasonRequiredError()
	}

	before, err := s.authorizeSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if before.Status != model.SessionStatusCompleted {
		return nil, model.NewNotCompletedError()
	}

	after := *before
	if input.StartTime != nil {
		after.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		endTime := *input.EndTime
		after.EndTime = &endTime
	}
	if input.Note != nil {
		after.Note = *input.Note
	}
	if input.Project != nil {
		after.Project = *input.Project
	}

	changes := audit.DiffSession(before, &after)
	if len(changes) == 0 {
		return before, nil
	}

	// 時刻変更時はDurationを再計算する。休憩合計は編集対象外のためそのまま使う。
	if after.EndTime != nil {
		total, err := duration.ElapsedHours(after.StartTime, *after.EndTime)
		if err != nil {
			return nil, err
		}
		var breakTotal float64
		if after.BreakDuration != nil {
			breakTotal = *after.BreakDuration
		}
		net := duration.NetDuration(total, breakTotal)
		after.TotalDuration = &total
		after.NetDuration = &net
	}

	edit := audit.NewSessionEdit(sessionID, actor.ID, input.Reason, changes)
	if err := s.sessionRepo.EditCompleted(ctx, &after, edit); err != nil {
		return nil, err
	}

	if s.collector != nil {
		s.collector.RecordSessionEdited()
	}

	return &after, nil
}

// Delete はセッションを削除する。関連する休憩と監査レコードも削除される。
func (s *Service) Delete(ctx context.Context, actor *model.User, sessionID string) error {
	session, err := s.authorizeSession(ctx, actor, sessionID)
	if err != nil {
		return err
	}

	return s.sessionRepo.DeleteByID(ctx, session.ID)
}

// authorizeSession はセッションを取得し、actorのアクセス権を検証する。
// 存在しない場合はSessionNotFound、他社のリソースの場合はForbiddenを返す。
func (s *Service) authorizeSession(ctx context.Context, actor *model.User, sessionID string) (*model.WorkSession, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if session == nil {
		return nil, model.NewSessionNotFoundError(sessionID)
	}

	owner, err := s.resolveOwner(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, owner); err != nil {
		return nil, err
	}

	return session, nil
}

func (s *Service) resolveOwner(ctx context.Context, userID string) (*model.User, error) {
	owner, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if owner == nil {
		return nil, model.NewUserNotFoundError()
	}
	return owner, nil
}
