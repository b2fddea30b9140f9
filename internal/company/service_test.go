package company

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/timecard/internal/model"
)

type mockCompanyRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Company, error)
	updateFn   func(ctx context.Context, company *model.Company) error
}

func (m *mockCompanyRepo) FindByID(ctx context.Context, id string) (*model.Company, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockCompanyRepo) Create(ctx context.Context, company *model.Company) error { return nil }
func (m *mockCompanyRepo) Update(ctx context.Context, company *model.Company) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, company)
	}
	return nil
}

// TestService_Get はactorの所属会社が返ることを検証する。
func TestService_Get(t *testing.T) {
	actor := &model.User{ID: "user-1", CompanyID: "company-a", Role: model.RoleUser}
	repo := &mockCompanyRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Company, error) {
			if id == "company-a" {
				return &model.Company{ID: id, Name: "Acme"}, nil
			}
			return nil, nil
		},
	}

	svc := NewService(repo)

	company, err := svc.Get(context.Background(), actor)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if company.Name != "Acme" {
		t.Errorf("name = %q, want Acme", company.Name)
	}
}

// TestService_Get_NotFound は会社が存在しない場合にCompanyNotFoundになることを検証する。
func TestService_Get_NotFound(t *testing.T) {
	actor := &model.User{ID: "user-1", CompanyID: "missing", Role: model.RoleUser}
	svc := NewService(&mockCompanyRepo{})

	_, err := svc.Get(context.Background(), actor)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeCompanyNotFound {
		t.Errorf("expected CompanyNotFound, got %v", err)
	}
}

// TestService_Update_RequiresAdmin は一般ユーザーの会社情報更新が拒否されることを検証する。
func TestService_Update_RequiresAdmin(t *testing.T) {
	actor := &model.User{ID: "user-1", CompanyID: "company-a", Role: model.RoleUser}
	svc := NewService(&mockCompanyRepo{})

	name := "New Name"
	_, err := svc.Update(context.Background(), actor, UpdateInput{Name: &name})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("expected Forbidden, got %v", err)
	}
}

// TestService_Update は管理者が部分更新できることを検証する。
func TestService_Update(t *testing.T) {
	actor := &model.User{ID: "admin-1", CompanyID: "company-a", Role: model.RoleAdmin}
	var saved *model.Company
	repo := &mockCompanyRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Company, error) {
			return &model.Company{ID: id, Name: "Acme", Address: "旧住所", Country: "JP"}, nil
		},
		updateFn: func(ctx context.Context, company *model.Company) error {
			saved = company
			return nil
		},
	}

	svc := NewService(repo)

	address := "新住所"
	company, err := svc.Update(context.Background(), actor, UpdateInput{Address: &address})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if saved == nil {
		t.Fatal("expected Update to be called")
	}
	if company.Address != "新住所" {
		t.Errorf("address = %q, want 新住所", company.Address)
	}
	// 指定しなかったフィールドは維持される
	if company.Name != "Acme" || company.Country != "JP" {
		t.Errorf("unexpected field changes: %+v", company)
	}
}
