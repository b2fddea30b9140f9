// Package auth は認証のドメインロジックを提供する。
// 招待ベースの登録、パスワード認証、JWTの発行と検証を扱う。
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
)

// ServiceConfig はServiceの設定。
type ServiceConfig struct {
	JWTSecret   string
	TokenMaxAge int // JWTの有効期間（秒）
	BcryptCost  int
}

// RegisterInput は招待ベースの登録リクエストを表す。
type RegisterInput struct {
	Token     string
	Password  string
	FirstName string
	LastName  string
}

// Service は認証のサービス層。
type Service struct {
	userRepo   repository.UserRepository
	inviteRepo repository.InviteRepository
	cfg        ServiceConfig
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	inviteRepo repository.InviteRepository,
	cfg ServiceConfig,
) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:   userRepo,
		inviteRepo: inviteRepo,
		cfg:        cfg,
	}
}

// Register は招待トークンからユーザーを登録する。
// トークンの検証（存在・期限・未使用）の後、ユーザー作成とトークン消費を
// 同一トランザクションで行う。同じトークンの同時リクエストは片方が
// InviteUsedで失敗する。
func (s *Service) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	if len(input.Password) < 8 {
		return nil, model.NewPasswordTooShortError()
	}

	invite, err := s.inviteRepo.FindByToken(ctx, input.Token)
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

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードハッシュの生成に失敗しました: %w", err)
	}

	now := time.Now()
	user := &model.User{
		ID:           uuid.NewString(),
		Email:        invite.Email,
		PasswordHash: string(hash),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         invite.Role,
		CompanyID:    invite.CompanyID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.CreateFromInvite(ctx, user, invite.Token); err != nil {
		return nil, err
	}

	return user, nil
}

// Login はメールアドレスとパスワードで認証し、ユーザーとJWTを返す。
// ユーザーが存在しない場合もパスワード不一致と同じエラーを返す
// （存在の推測を防ぐ）。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, "", model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", model.NewInvalidCredentialsError()
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// IssueToken は指定ユーザーのJWT（HS256）を発行する。
func (s *Service) IssueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.TokenMaxAge) * time.Second)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}

	return signed, nil
}

// VerifyToken はJWTを検証し、ユーザーIDを返す。
// 署名不正、期限切れ、アルゴリズム不一致はすべてInvalidCredentialsになる。
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return []byte(s.cfg.JWTSecret), nil
		},
	)
	if err != nil || !token.Valid {
		return "", model.NewInvalidCredentialsError()
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", model.NewInvalidCredentialsError()
	}

	return claims.Subject, nil
}

// ResolveUser はJWTを検証し、対応するユーザーを返す。
// ユーザーが削除済みの場合はInvalidCredentialsを返す。
func (s *Service) ResolveUser(ctx context.Context, tokenString string) (*model.User, error) {
	userID, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	return user, nil
}
