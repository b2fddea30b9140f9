package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/timecard/internal/middleware"
	"github.com/hitoshi/timecard/internal/model"
)

// InviteServiceInterface は招待ハンドラーが必要とするサービスインターフェース。
type InviteServiceInterface interface {
	// Create は新しい招待を発行する（管理者のみ）。
	Create(ctx context.Context, actor *model.User, email string, role model.Role) (*model.Invite, error)
	// List は自社の招待一覧を返す（管理者のみ）。
	List(ctx context.Context, actor *model.User) ([]*model.Invite, error)
	// Validate は招待トークンの有効性を検証する。トークンは消費しない。
	Validate(ctx context.Context, token string) (*model.Invite, error)
}

// InviteHandler は招待管理のHTTPハンドラー。
type InviteHandler struct {
	service InviteServiceInterface
}

// NewInviteHandler はInviteHandlerを生成する。
func NewInviteHandler(service InviteServiceInterface) *InviteHandler {
	return &InviteHandler{service: service}
}

// createInviteRequest は招待発行リクエストのボディ。
type createInviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// inviteResponse は招待のAPIレスポンス。
// トークンは発行時のレスポンスにのみ含まれる。
type inviteResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Token     string     `json:"token,omitempty"`
	Role      string     `json:"role"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
}

// Create は新しい招待を発行する。
// POST /api/invites
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	var req createInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	role := model.Role(req.Role)
	if role == "" {
		role = model.RoleUser
	}

	invite, err := h.service.Create(r.Context(), actor, req.Email, role)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toInviteResponse(invite, true))
}

// List は自社の招待一覧を返す。
// GET /api/invites
func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	invites, err := h.service.List(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]inviteResponse, 0, len(invites))
	for _, inv := range invites {
		resp = append(resp, toInviteResponse(inv, false))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Validate は招待トークンの有効性を検証する。
// 登録画面の表示前チェックに使用し、トークンは消費しない。
// GET /auth/invites/validate?token=xxx
func (h *InviteHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeInvalidRequestError(w)
		return
	}

	invite, err := h.service.Validate(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"email": invite.Email,
		"role":  string(invite.Role),
	})
}

// toInviteResponse はmodel.InviteからAPIレスポンスに変換する。
// includeTokenは発行直後のレスポンスでのみtrueにする。
func toInviteResponse(inv *model.Invite, includeToken bool) inviteResponse {
	resp := inviteResponse{
		ID:        inv.ID,
		Email:     inv.Email,
		Role:      string(inv.Role),
		ExpiresAt: inv.ExpiresAt,
		UsedAt:    inv.UsedAt,
	}
	if includeToken {
		resp.Token = inv.Token
	}
	return resp
}
