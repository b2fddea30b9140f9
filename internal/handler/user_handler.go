package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/timecard/internal/middleware"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Get はユーザー情報を取得する。
	Get(ctx context.Context, actor *model.User, userID string) (*model.User, error)
	// Update はユーザー属性を更新する。役割の変更は管理者のみ。
	Update(ctx context.Context, actor *model.User, userID string, input user.UpdateInput) (*model.User, error)
	// ResetPassword はパスワードを再設定する。
	ResetPassword(ctx context.Context, actor *model.User, userID, newPassword string) error
	// Delete はユーザーを削除する（管理者のみ、自分自身は不可）。
	Delete(ctx context.Context, actor *model.User, userID string) error
	// ListCompany は同一会社のユーザー一覧を返す（管理者のみ）。
	ListCompany(ctx context.Context, actor *model.User) ([]*model.User, error)
	// Online は進行中セッションを持つユーザー一覧を返す（管理者のみ）。
	Online(ctx context.Context, actor *model.User) ([]*user.OnlineUser, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// updateUserRequest はユーザー更新リクエストのボディ。
// nilのフィールドは変更しない。
type updateUserRequest struct {
	FirstName         *string  `json:"first_name"`
	LastName          *string  `json:"last_name"`
	Role              *string  `json:"role"`
	WeeklyHoursTarget *float64 `json:"weekly_hours_target"`
}

// resetPasswordRequest はパスワード再設定リクエストのボディ。
type resetPasswordRequest struct {
	Password string `json:"password"`
}

// onlineUserResponse は勤務中ユーザーのAPIレスポンス。
type onlineUserResponse struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

// Get はユーザー情報を取得する。
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	userID := chi.URLParam(r, "id")

	u, err := h.service.Get(r.Context(), actor, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(u))
}

// Update はユーザー属性を更新する。
// PATCH /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	userID := chi.URLParam(r, "id")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	input := user.UpdateInput{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		WeeklyHoursTarget: req.WeeklyHoursTarget,
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		input.Role = &role
	}

	u, err := h.service.Update(r.Context(), actor, userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(u))
}

// ResetPassword はパスワードを再設定する。
// PUT /api/users/{id}/password
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	userID := chi.URLParam(r, "id")

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	if err := h.service.ResetPassword(r.Context(), actor, userID, req.Password); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Delete はユーザーを削除する。
// DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	userID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), actor, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// List は同一会社のユーザー一覧を返す（管理者のみ）。
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	users, err := h.service.ListCompany(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Online は勤務中のユーザー一覧を返す（管理者のみ）。
// GET /api/users/online
func (h *UserHandler) Online(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	online, err := h.service.Online(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]onlineUserResponse, 0, len(online))
	for _, o := range online {
		resp = append(resp, onlineUserResponse{
			User:    toUserResponse(o.User),
			Session: toSessionResponse(o.Session),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
