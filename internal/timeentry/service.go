// Package timeentry は旧ポイント台帳打刻のドメインロジックを提供する。
// 打刻の記録、ペアリング検証、監査付き編集を扱う。
package timeentry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/timecard/internal/audit"
	"github.com/hitoshi/timecard/internal/authz"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
)

// EditInput は打刻の編集リクエストを表す。
// nilのフィールドは変更しないことを意味する。種別は編集できない。
type EditInput struct {
	Time   *time.Time
	Note   *string
	Type   *string
	Reason string
}

// Service は旧台帳打刻のサービス層。
type Service struct {
	entryRepo repository.TimeEntryRepository
	editRepo  repository.TimeEntryEditRepository
	userRepo  repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	entryRepo repository.TimeEntryRepository,
	editRepo repository.TimeEntryEditRepository,
	userRepo repository.UserRepository,
) *Service {
	return &Service{
		entryRepo: entryRepo,
		editRepo:  editRepo,
		userRepo:  userRepo,
	}
}

// CanStart はユーザーが次にSTART打刻を記録できるかどうかを返す。
// 直前の打刻がSTARTのままの場合はfalseを返す。
func (s *Service) CanStart(ctx context.Context, userID string) (bool, error) {
	last, err := s.entryRepo.FindLastByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("直前の打刻の取得に失敗しました: %w", err)
	}
	return last == nil || last.Type == model.EntryTypeStop, nil
}

// Create は打刻を記録する。
// START/STOPの交互順序を検証し、違反する打刻はCannotStart/CannotStopで拒否する。
func (s *Service) Create(ctx context.Context, userID, entryType string, at time.Time, note string) (*model.TimeEntry, error) {
	var typ model.EntryType
	switch entryType {
	case string(model.EntryTypeStart):
		typ = model.EntryTypeStart
	case string(model.EntryTypeStop):
		typ = model.EntryTypeStop
	default:
		return nil, model.NewInvalidEntryTypeError(entryType)
	}

	canStart, err := s.CanStart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if typ == model.EntryTypeStart && !canStart {
		return nil, model.NewCannotStartError()
	}
	if typ == model.EntryTypeStop && canStart {
		return nil, model.NewCannotStopError()
	}

	if at.IsZero() {
		at = time.Now()
	}
	entry := &model.TimeEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Time:      at,
		Type:      typ,
		Note:      note,
		CreatedAt: time.Now(),
	}

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	return entry, nil
}

// List は指定ユーザーの打刻一覧を時刻の降順で返す。
func (s *Service) List(ctx context.Context, actor *model.User, targetUserID string) ([]*model.TimeEntry, error) {
	owner, err := s.resolveOwner(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, owner); err != nil {
		return nil, err
	}

	return s.entryRepo.ListByUser(ctx, targetUserID)
}

// ListCompany は会社全体の打刻一覧を返す。管理者のみ実行できる。
func (s *Service) ListCompany(ctx context.Context, actor *model.User) ([]*model.TimeEntry, error) {
	if actor == nil || actor.Role != model.RoleAdmin {
		return nil, model.NewForbiddenError()
	}
	return s.entryRepo.ListByCompany(ctx, actor.CompanyID)
}

// Edit は打刻を監査付きで編集する。
// 種別（START/STOP）の変更はペアリングを反転させるためTypeImmutableで拒否する。
// 編集理由は必須で、変更がない場合は監査レコードを残さない。
func (s *Service) Edit(ctx context.Context, actor *model.User, entryID string, input EditInput) (*model.TimeEntry, error) {
	if input.Reason == "" {
		return nil, model.NewReasonRequiredError()
	}

	before, err := s.authorizeEntry(ctx, actor, entryID)
	if err != nil {
		return nil, err
	}

	if input.Type != nil && *input.Type != string(before.Type) {
		return nil, model.NewTypeImmutableError()
	}

	after := *before
	if input.Time != nil {
		after.Time = *input.Time
	}
	if input.Note != nil {
		after.Note = *input.Note
	}

	changes := audit.DiffEntry(before, &after)
	if len(changes) == 0 {
		return before, nil
	}

	edit := audit.NewEntryEdit(entryID, actor.ID, input.Reason, changes)
	if err := s.entryRepo.EditWithAudit(ctx, &after, edit); err != nil {
		return nil, err
	}

	return &after, nil
}

// History は打刻の監査レコードを新しい順で返す。
func (s *Service) History(ctx context.Context, actor *model.User, entryID string) ([]*model.TimeEntryEdit, error) {
	entry, err := s.authorizeEntry(ctx, actor, entryID)
	if err != nil {
		return nil, err
	}

	return s.editRepo.ListByEntry(ctx, entry.ID)
}

// Delete は打刻を削除する。
func (s *Service) Delete(ctx context.Context, actor *model.User, entryID string) error {
	entry, err := s.authorizeEntry(ctx, actor, entryID)
	if err != nil {
		return err
	}

	return s.entryRepo.DeleteByID(ctx, entry.ID)
}

// authorizeEntry は打刻を取得し、actorのアクセス権を検証する。
// 存在しない場合はEntryNotFound、他社のリソースの場合はForbiddenを返す。
func (s *Service) authorizeEntry(ctx context.Context, actor *model.User, entryID string) (*model.TimeEntry, error) {
	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("打刻の取得に失敗しました: %w", err)
	}
	if entry == nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}

	owner, err := s.resolveOwner(ctx, entry.UserID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, owner); err != nil {
		return nil, err
	}

	return entry, nil
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
