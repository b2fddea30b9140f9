// Package company は会社（テナント）管理のドメインロジックを提供する。
package company

import (
	"context"
	"fmt"

	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/repository"
)

// UpdateInput は会社情報の更新リクエストを表す。
// nilのフィールドは変更しないことを意味する。
type UpdateInput struct {
	Name    *string
	Address *string
	Country *string
}

// Service は会社管理のサービス層。
type Service struct {
	companyRepo repository.CompanyRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(companyRepo repository.CompanyRepository) *Service {
	return &Service{companyRepo: companyRepo}
}

// Get はactorの所属する会社を返す。
// 他社の情報は取得できない（actorのCompanyIDに固定される）。
func (s *Service) Get(ctx context.Context, actor *model.User) (*model.Company, error) {
	company, err := s.companyRepo.FindByID(ctx, actor.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("会社の取得に失敗しました: %w", err)
	}
	if company == nil {
		return nil, model.NewCompanyNotFoundError()
	}
	return company, nil
}

// Update は会社情報を更新する。管理者のみ実行できる。
func (s *Service) Update(ctx context.Context, actor *model.User, input UpdateInput) (*model.Company, error) {
	if actor == nil || actor.Role != model.RoleAdmin {
		return nil, model.NewForbiddenError()
	}

	company, err := s.Get(ctx, actor)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		company.Name = *input.Name
	}
	if input.Address != nil {
		company.Address = *input.Address
	}
	if input.Country != nil {
		company.Country = *input.Country
	}

	if err := s.companyRepo.Update(ctx, company); err != nil {
		return nil, err
	}

	return company, nil
}
