// Package invite は招待管理のドメインロジックを提供する。
package invite

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
)

// ServiceConfig はServiceの設定。
type ServiceConfig struct {
	TTL time.Duration // 招待トークンの有効期間
}

// Service は招待管理のサービス層。
type Service struct {
	inviteRepo repository.InviteRepository
	userRepo   repository.UserRepository
	cfg        ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	inviteRepo repository.InviteRepository,
	userRepo repository.UserRepository,
	cfg ServiceConfig,
) *Service {
	if cfg.TTL == 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &Service{
		inviteRepo: inviteRepo,
		userRepo:   userRepo,
		cfg:        cfg,
	}
}

// Create は新しい招待を発行する。管理者のみ実行できる。
// 招待先のメールアドレスが既に登録済みの場合はEmailTakenを返す。
func (s *Service) Create(ctx context.Context, actor *model.User, email string, role model.Role) (*model.Invite, error) {
	if actor == nil || actor.Role != model.RoleAdmin {
		return nil, model.NewForbiddenError()
	}
	if role != model.RoleAdmin && role != model.RoleUser {
		role = model.RoleUser
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	invite := &model.Invite{
		ID:        uuid.NewString(),
		Email:     email,
		Token:     token,
		CompanyID: actor.CompanyID,
		Role:      role,
		ExpiresAt: now.Add(s.cfg.TTL),
		CreatedAt: now,
	}

	if err := s.inviteRepo.Create(ctx, invite); err != nil {
		return nil, err
	}

	return invite, nil
}

// List は自社の招待一覧を返す。管理者のみ実行できる。
func (s *Service) List(ctx context.Context, actor *model.User) ([]*model.Invite, error) {
	if actor == nil || actor.Role != model.RoleAdmin {
		return nil, model.NewForbiddenError()
	}
	return s.inviteRepo.ListByCompany(ctx, actor.CompanyID)
}

// Validate はトークンに対応する有効な招待を返す。
// 登録フォームの事前検証に使う（トークンは消費しない）。
func (s *Service) Validate(ctx context.Context, token string) (*model.Invite, error) {
	invite, err := s.inviteRepo.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("招待の取得に失敗しました: %w", err)
	}
	if invite == nil {
		return nil, model.NewInviteNotFoundError()
	}
	if invite.UsedAt != nil {
		return nil, model.NewInviteUsedError()
	}
	if time.Now().After(invite.ExpiresAt) {
		return nil, model.NewInviteExpiredError()
	}
	return invite, nil
}

// CleanupExpired は期限切れかつ未使用の招待を削除し、削除件数を返す。
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.inviteRepo.DeleteExpired(ctx, time.Now())
}

// generateToken は32バイトのランダムトークンを16進文字列で生成する。
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("トークンの生成に失敗しました: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
