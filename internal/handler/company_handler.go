package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/timecard/internal/company"
	"github.com/hitoshi/timecard/internal/middleware"
	"github.com/hitoshi/timecard/internal/model"
)

// CompanyServiceInterface は会社ハンドラーが必要とするサービスインターフェース。
type CompanyServiceInterface interface {
	// Get は自分の所属する会社情報を取得する。
	Get(ctx context.Context, actor *model.User) (*model.Company, error)
	// Update は会社情報を更新する（管理者のみ）。
	Update(ctx context.Context, actor *model.User, input company.UpdateInput) (*model.Company, error)
}

// CompanyHandler は会社管理のHTTPハンドラー。
type CompanyHandler struct {
	service CompanyServiceInterface
}

// NewCompanyHandler はCompanyHandlerを生成する。
func NewCompanyHandler(service CompanyServiceInterface) *CompanyHandler {
	return &CompanyHandler{service: service}
}

// updateCompanyRequest は会社更新リクエストのボディ。
// nilのフィールドは変更しない。
type updateCompanyRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Country *string `json:"country"`
}

// companyResponse は会社情報のAPIレスポンス。
type companyResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Country string `json:"country"`
}

// Get は自分の会社情報を取得する。
// GET /api/company
func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	c, err := h.service.Get(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toCompanyResponse(c))
}

// Update は会社情報を更新する。
// PATCH /api/company
func (h *CompanyHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	var req updateCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	c, err := h.service.Update(r.Context(), actor, company.UpdateInput{
		Name:    req.Name,
		Address: req.Address,
		Country: req.Country,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toCompanyResponse(c))
}

// toCompanyResponse はmodel.CompanyからAPIレスポンスに変換する。
func toCompanyResponse(c *model.Company) companyResponse {
	return companyResponse{
		ID:      c.ID,
		Name:    c.Name,
		Address: c.Address,
		Country: c.Country,
	}
}
