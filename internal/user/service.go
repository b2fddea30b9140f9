// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/timecard/internal/authz"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
)

// UpdateInput はユーザー属性の更新リクエストを表す。
// nilのフィールドは変更しないことを意味する。
type UpdateInput struct {
	FirstName         *string
	LastName          *string
	Role              *model.Role
	WeeklyHoursTarget *float64
}

// OnlineUser は進行中セッションを持つユーザーを表す。
type OnlineUser struct {
	User    *model.User
	Session *model.WorkSession
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.WorkSessionRepository
	bcryptCost  int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.WorkSessionRepository,
	bcryptCost int,
) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		bcryptCost:  bcryptCost,
	}
}

// Get は指定ユーザーを返す。
func (s *Service) Get(ctx context.Context, actor *model.User, userID string) (*model.User, error) {
	target, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, target); err != nil {
		return nil, err
	}
	return target, nil
}

// Update はユーザー属性を更新する。
// 名前と週間目標時間は本人または管理者が、役割は管理者のみが変更できる。
func (s *Service) Update(ctx context.Context, actor *model.User, userID string, input UpdateInput) (*model.User, error) {
	target, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, target); err != nil {
		return nil, err
	}

	if input.Role != nil && *input.Role != target.Role {
		if !authz.CanAdminister(actor, target) {
			return nil, model.NewForbiddenError()
		}
		target.Role = *input.Role
	}
	if input.FirstName != nil {
		target.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		target.LastName = *input.LastName
	}
	if input.WeeklyHoursTarget != nil {
		target.WeeklyHoursTarget = *input.WeeklyHoursTarget
	}

	if err := s.userRepo.Update(ctx, target); err != nil {
		return nil, err
	}

	return target, nil
}

// ResetPassword はパスワードを再設定する。本人または管理者が実行できる。
func (s *Service) ResetPassword(ctx context.Context, actor *model.User, userID, newPassword string) error {
	if len(newPassword) < 8 {
		return model.NewPasswordTooShortError()
	}

	target, err := s.resolveUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := authz.Authorize(actor, target); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("パスワードハッシュの生成に失敗しました: %w", err)
	}

	return s.userRepo.UpdatePasswordHash(ctx, userID, string(hash))
}

// Delete はユーザーを削除する。管理者のみ実行できる。
// セッション、休憩、打刻、監査レコードはCASCADE削除される。
func (s *Service) Delete(ctx context.Context, actor *model.User, userID string) error {
	target, err := s.resolveUser(ctx, userID)
	if err != nil {
		return err
	}
	if !authz.CanAdminister(actor, target) {
		return model.NewForbiddenError()
	}
	if actor.ID == target.ID {
		return model.NewForbiddenError()
	}

	slog.Info("ユーザーを削除します",
		slog.String("user_id", userID),
		slog.String("deleted_by", actor.ID),
	)

	return s.userRepo.DeleteByID(ctx, userID)
}

// ListCompany は自社の全ユーザーを返す。管理者のみ実行できる。
func (s *Service) ListCompany(ctx context.Context, actor *model.User) ([]*model.User, error) {
	if actor == nil || actor.Role != model.RoleAdmin {
		return nil, model.NewForbiddenError()
	}
	return s.userRepo.ListByCompany(ctx, actor.CompanyID)
}

// Online は自社で進行中セッションを持つユーザーの一覧を返す。管理者のみ実行できる。
func (s *Service) Online(ctx context.Context, actor *model.User) ([]*OnlineUser, error) {
	if actor == nil || actor.Role != model.RoleAdmin {
		return nil, model.NewForbiddenError()
	}

	users, err := s.userRepo.ListByCompany(ctx, actor.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	var online []*OnlineUser
	for _, u := range users {
		session, err := s.sessionRepo.FindActiveByUser(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("進行中セッションの取得に失敗しました: %w", err)
		}
		if session != nil {
			online = append(online, &OnlineUser{User: u, Session: session})
		}
	}

	return online, nil
}

func (s *Service) resolveUser(ctx context.Context, userID string) (*model.User, error) {
	target, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return nil, model.NewUserNotFoundError()
	}
	return target, nil
}
