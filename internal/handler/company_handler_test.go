package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/timecard/internal/company"
	"github.com/hitoshi/timecard/internal/model"
)

// mockCompanyService はCompanyServiceInterfaceのモック実装。
type mockCompanyService struct {
	getFn    func(ctx context.Context, actor *model.User) (*model.Company, error)
	updateFn func(ctx context.Context, actor *model.User, input company.UpdateInput) (*model.Company, error)
}

func (m *mockCompanyService) Get(ctx context.Context, actor *model.User) (*model.Company, error) {
	if m.getFn != nil {
		return m.getFn(ctx, actor)
	}
	return nil, nil
}
func (m *mockCompanyService) Update(ctx context.Context, actor *model.User, input company.UpdateInput) (*model.Company, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, actor, input)
	}
	return nil, nil
}

func TestCompanyHandler_Get_Success(t *testing.T) {
	svc := &mockCompanyService{
		getFn: func(ctx context.Context, actor *model.User) (*model.Company, error) {
			return &model.Company{ID: actor.CompanyID, Name: "Acme GmbH", Country: "DE"}, nil
		},
	}

	h := NewCompanyHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/company", nil)
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.Get(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got companyResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Name != "Acme GmbH" {
		t.Errorf("name = %q, want Acme GmbH", got.Name)
	}
}

func TestCompanyHandler_Update_NonAdmin_Returns403(t *testing.T) {
	svc := &mockCompanyService{
		updateFn: func(ctx context.Context, actor *model.User, input company.UpdateInput) (*model.Company, error) {
			return nil, model.NewForbiddenError()
		},
	}

	h := NewCompanyHandler(svc)

	body := `{"name": "New Name"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/company", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.Update(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}
