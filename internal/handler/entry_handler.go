package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/timecard/internal/middleware"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/timeentry"
)

// EntryServiceInterface は打刻ハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	// CanStart はユーザーが次にSTART打刻を記録できるかどうかを返す。
	CanStart(ctx context.Context, userID string) (bool, error)
	// Create は打刻を記録する。
	Create(ctx context.Context, userID, entryType string, at time.Time, note string) (*model.TimeEntry, error)
	// List は対象ユーザーの打刻一覧を返す。
	List(ctx context.Context, actor *model.User, targetUserID string) ([]*model.TimeEntry, error)
	// ListCompany は会社全体の打刻一覧を返す（管理者のみ）。
	ListCompany(ctx context.Context, actor *model.User) ([]*model.TimeEntry, error)
	// Edit は打刻を監査付きで編集する。
	Edit(ctx context.Context, actor *model.User, entryID string, input timeentry.EditInput) (*model.TimeEntry, error)
	// History は打刻の編集履歴を新しい順で返す。
	History(ctx context.Context, actor *model.User, entryID string) ([]*model.TimeEntryEdit, error)
	// Delete は打刻を削除する。
	Delete(ctx context.Context, actor *model.User, entryID string) error
}

// EntryHandler は旧台帳打刻のHTTPハンドラー。
type EntryHandler struct {
	service EntryServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface) *EntryHandler {
	return &EntryHandler{service: service}
}

// createEntryRequest は打刻記録リクエストのボディ。
// Timeを省略した場合は現在時刻で記録する。
type createEntryRequest struct {
	Type string     `json:"type"`
	Time *time.Time `json:"time"`
	Note string     `json:"note"`
}

// editEntryRequest は打刻編集リクエストのボディ。
// nilのフィールドは変更しない。
type editEntryRequest struct {
	Time   *time.Time `json:"time"`
	Note   *string    `json:"note"`
	Type   *string    `json:"type"`
	Reason string     `json:"reason"`
}

// entryResponse は打刻のAPIレスポンス。
type entryResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Time       time.Time  `json:"time"`
	Type       string     `json:"type"`
	Note       string     `json:"note"`
	MigratedAt *time.Time `json:"migrated_at"`
}

// entryEditResponse は打刻編集履歴のAPIレスポンス。
type entryEditResponse struct {
	ID       string                       `json:"id"`
	EditedBy string                       `json:"edited_by"`
	Changes  map[string]model.FieldChange `json:"changes"`
	Reason   string                       `json:"reason"`
	EditedAt time.Time                    `json:"edited_at"`
}

// canStartResponse はSTART可否のAPIレスポンス。
type canStartResponse struct {
	CanStart bool `json:"can_start"`
}

// Create は打刻を記録する。
// POST /api/entries
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	var req createEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	at := time.Now()
	if req.Time != nil {
		at = *req.Time
	}

	entry, err := h.service.Create(r.Context(), actor.ID, req.Type, at, req.Note)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toEntryResponse(entry))
}

// CanStart は次にSTART打刻を記録できるかどうかを返す。
// GET /api/entries/can-start
func (h *EntryHandler) CanStart(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	ok, err := h.service.CanStart(r.Context(), actor.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(canStartResponse{CanStart: ok})
}

// List は打刻一覧を返す。
// クエリパラメータ: user_id（省略時は自分）
// GET /api/entries
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	targetUserID := r.URL.Query().Get("user_id")
	if targetUserID == "" {
		targetUserID = actor.ID
	}

	entries, err := h.service.List(r.Context(), actor, targetUserID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeEntryList(w, entries)
}

// ListCompany は会社全体の打刻一覧を返す（管理者のみ）。
// GET /api/entries/company
func (h *EntryHandler) ListCompany(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	entries, err := h.service.ListCompany(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeEntryList(w, entries)
}

// Edit は打刻の監査付き編集を処理する。
// PATCH /api/entries/{id}
func (h *EntryHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	entryID := chi.URLParam(r, "id")

	var req editEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	entry, err := h.service.Edit(r.Context(), actor, entryID, timeentry.EditInput{
		Time:   req.Time,
		Note:   req.Note,
		Type:   req.Type,
		Reason: req.Reason,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEntryResponse(entry))
}

// History は打刻の編集履歴を新しい順で返す。
// GET /api/entries/{id}/history
func (h *EntryHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	entryID := chi.URLParam(r, "id")

	edits, err := h.service.History(r.Context(), actor, entryID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]entryEditResponse, 0, len(edits))
	for _, e := range edits {
		resp = append(resp, entryEditResponse{
			ID:       e.ID,
			EditedBy: e.EditedBy,
			Changes:  e.Changes,
			Reason:   e.Reason,
			EditedAt: e.EditedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Delete は打刻を削除する。
// DELETE /api/entries/{id}
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	entryID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), actor, entryID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toEntryResponse はmodel.TimeEntryからAPIレスポンスに変換する。
func toEntryResponse(e *model.TimeEntry) entryResponse {
	return entryResponse{
		ID:         e.ID,
		UserID:     e.UserID,
		Time:       e.Time,
		Type:       string(e.Type),
		Note:       e.Note,
		MigratedAt: e.MigratedAt,
	}
}

// writeEntryList は打刻一覧をJSONで書き込む。
func writeEntryList(w http.ResponseWriter, entries []*model.TimeEntry) {
	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toEntryResponse(e))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
