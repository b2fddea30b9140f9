package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/timecard/internal/middleware"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/worksession"
)

// SessionServiceInterface はセッションハンドラーが必要とするサービスインターフェース。
type SessionServiceInterface interface {
	// Start は新しい勤務セッションを開始する。
	Start(ctx context.Context, userID, note, project string) (*model.WorkSession, error)
	// Stop はセッションを終了し、勤務時間を確定する。endTimeがnilなら現在時刻を使う。
	Stop(ctx context.Context, actor *model.User, sessionID string, endTime *time.Time) (*model.WorkSession, error)
	// StartBreak はセッション内で休憩を開始する。
	StartBreak(ctx context.Context, actor *model.User, sessionID string, breakType model.BreakType, note string) (*model.Break, error)
	// EndBreak は進行中の休憩を終了する。
	EndBreak(ctx context.Context, actor *model.User, sessionID string) (*model.Break, error)
	// Current は進行中セッションの詳細を返す。存在しない場合は(nil, nil)。
	Current(ctx context.Context, userID string) (*worksession.SessionDetail, error)
	// Get はセッション詳細を取得する。
	Get(ctx context.Context, actor *model.User, sessionID string) (*worksession.SessionDetail, error)
	// List は対象ユーザーのセッション一覧を新しい順で返す。
	List(ctx context.Context, actor *model.User, targetUserID string, limit, offset int) ([]*model.WorkSession, error)
	// History はセッションの編集履歴を新しい順で返す。
	History(ctx context.Context, actor *model.User, sessionID string) ([]*model.WorkSessionEdit, error)
	// Edit は完了済みセッションを監査付きで編集する。
	Edit(ctx context.Context, actor *model.User, sessionID string, input worksession.EditInput) (*model.WorkSession, error)
	// Delete はセッションを削除する。
	Delete(ctx context.Context, actor *model.User, sessionID string) error
}

// SessionHandler は勤務セッション管理のHTTPハンドラー。
type SessionHandler struct {
	service SessionServiceInterface
}

// NewSessionHandler はSessionHandlerを生成する。
func NewSessionHandler(service SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

// startSessionRequest はセッション開始リクエストのボディ。
type startSessionRequest struct {
	Note    string `json:"note"`
	Project string `json:"project"`
}

// stopSessionRequest はセッション終了リクエストのボディ。
// end_time省略時はサーバー時刻で終了する。
type stopSessionRequest struct {
	EndTime *time.Time `json:"end_time"`
}

// startBreakRequest は休憩開始リクエストのボディ。
type startBreakRequest struct {
	Type string `json:"type"`
	Note string `json:"note"`
}

// editSessionRequest は完了済みセッション編集リクエストのボディ。
// nilのフィールドは変更しない。
type editSessionRequest struct {
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Note      *string    `json:"note"`
	Project   *string    `json:"project"`
	Reason    string     `json:"reason"`
}

// sessionResponse は勤務セッションのAPIレスポンス。
type sessionResponse struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	Status        string     `json:"status"`
	TotalDuration *float64   `json:"total_duration"`
	BreakDuration *float64   `json:"break_duration"`
	NetDuration   *float64   `json:"net_duration"`
	Note          string     `json:"note"`
	Project       string     `json:"project"`
}

// breakResponse は休憩のAPIレスポンス。
type breakResponse struct {
	ID        string     `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Duration  *float64   `json:"duration"`
	Type      string     `json:"type"`
	Note      string     `json:"note"`
}

// sessionEditResponse はセッション編集履歴のAPIレスポンス。
type sessionEditResponse struct {
	ID       string                       `json:"id"`
	EditedBy string                       `json:"edited_by"`
	Changes  map[string]model.FieldChange `json:"changes"`
	Reason   string                       `json:"reason"`
	EditedAt time.Time                    `json:"edited_at"`
}

// sessionDetailResponse はセッションと関連データを結合したAPIレスポンス。
type sessionDetailResponse struct {
	Session sessionResponse       `json:"session"`
	Breaks  []breakResponse       `json:"breaks"`
	Edits   []sessionEditResponse `json:"edits"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// Start はセッション開始を処理する。
// POST /api/sessions/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	var req startSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeInvalidRequestError(w)
			return
		}
	}

	session, err := h.service.Start(r.Context(), actor.ID, req.Note, req.Project)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toSessionResponse(session))
}

// Stop はセッション終了を処理する。
// POST /api/sessions/{id}/stop
func (h *SessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	sessionID := chi.URLParam(r, "id")

	var req stopSessionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeInvalidRequestError(w)
			return
		}
	}

	session, err := h.service.Stop(r.Context(), actor, sessionID, req.EndTime)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSessionResponse(session))
}

// StartBreak は休憩開始を処理する。
// POST /api/sessions/{id}/breaks/start
func (h *SessionHandler) StartBreak(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	sessionID := chi.URLParam(r, "id")

	var req startBreakRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeInvalidRequestError(w)
			return
		}
	}

	brk, err := h.service.StartBreak(r.Context(), actor, sessionID, model.BreakType(req.Type), req.Note)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toBreakResponse(brk))
}

// EndBreak は休憩終了を処理する。
// POST /api/sessions/{id}/breaks/end
func (h *SessionHandler) EndBreak(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	sessionID := chi.URLParam(r, "id")

	brk, err := h.service.EndBreak(r.Context(), actor, sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toBreakResponse(brk))
}

// Current は自分の進行中セッションを返す。
// 進行中セッションがない場合は204 No Contentを返す。
// GET /api/sessions/current
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	detail, err := h.service.Current(r.Context(), actor.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if detail == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSessionDetailResponse(detail))
}

// Get はセッション詳細を取得する。
// GET /api/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	sessionID := chi.URLParam(r, "id")

	detail, err := h.service.Get(r.Context(), actor, sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSessionDetailResponse(detail))
}

// List はセッション一覧を新しい順で返す。
// クエリパラメータ: user_id（省略時は自分）、limit、offset
// GET /api/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	targetUserID := r.URL.Query().Get("user_id")
	if targetUserID == "" {
		targetUserID = actor.ID
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	sessions, err := h.service.List(r.Context(), actor, targetUserID, limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, toSessionResponse(s))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// History はセッションの編集履歴を新しい順で返す。
// GET /api/sessions/{id}/history
func (h *SessionHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	sessionID := chi.URLParam(r, "id")

	edits, err := h.service.History(r.Context(), actor, sessionID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]sessionEditResponse, 0, len(edits))
	for _, e := range edits {
		resp = append(resp, toSessionEditResponse(e))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Edit は完了済みセッションの監査付き編集を処理する。
// PATCH /api/sessions/{id}
func (h *SessionHandler) Edit(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	sessionID := chi.URLParam(r, "id")

	var req editSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestError(w)
		return
	}

	session, err := h.service.Edit(r.Context(), actor, sessionID, worksession.EditInput{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Note:      req.Note,
		Project:   req.Project,
		Reason:    req.Reason,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toSessionResponse(session))
}

// Delete はセッションを削除する。
// DELETE /api/sessions/{id}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeUnauthorizedError(w)
		return
	}

	sessionID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), actor, sessionID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toSessionResponse はmodel.WorkSessionからAPIレスポンスに変換する。
func toSessionResponse(s *model.WorkSession) sessionResponse {
	return sessionResponse{
		ID:            s.ID,
		UserID:        s.UserID,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Status:        string(s.Status),
		TotalDuration: s.TotalDuration,
		BreakDuration: s.BreakDuration,
		NetDuration:   s.NetDuration,
		Note:          s.Note,
		Project:       s.Project,
	}
}

// toBreakResponse はmodel.BreakからAPIレスポンスに変換する。
func toBreakResponse(b *model.Break) breakResponse {
	return breakResponse{
		ID:        b.ID,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Duration:  b.Duration,
		Type:      string(b.Type),
		Note:      b.Note,
	}
}

// toSessionEditResponse はmodel.WorkSessionEditからAPIレスポンスに変換する。
func toSessionEditResponse(e *model.WorkSessionEdit) sessionEditResponse {
	return sessionEditResponse{
		ID:       e.ID,
		EditedBy: e.EditedBy,
		Changes:  e.Changes,
		Reason:   e.Reason,
		EditedAt: e.EditedAt,
	}
}

// toSessionDetailResponse はworksession.SessionDetailからAPIレスポンスに変換する。
func toSessionDetailResponse(d *worksession.SessionDetail) sessionDetailResponse {
	breaks := make([]breakResponse, 0, len(d.Breaks))
	for _, b := range d.Breaks {
		breaks = append(breaks, toBreakResponse(b))
	}
	edits := make([]sessionEditResponse, 0, len(d.Edits))
	for _, e := range d.Edits {
		edits = append(edits, toSessionEditResponse(e))
	}
	return sessionDetailResponse{
		Session: toSessionResponse(d.Session),
		Breaks:  breaks,
		Edits:   edits,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorizedError は401レスポンスを書き込む。
func writeUnauthorizedError(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeInvalidRequestError はリクエストボディ解析失敗の400レスポンスを書き込む。
func writeInvalidRequestError(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeReasonRequired,
		model.ErrCodeInvalidRange,
		model.ErrCodePasswordTooShort,
		model.ErrCodeInvalidEntryType:
		return http.StatusBadRequest
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeSessionNotFound,
		model.ErrCodeEntryNotFound,
		model.ErrCodeUserNotFound,
		model.ErrCodeCompanyNotFound,
		model.ErrCodeInviteNotFound:
		return http.StatusNotFound
	case model.ErrCodeAlreadyActive,
		model.ErrCodeAlreadyCompleted,
		model.ErrCodeNotCompleted,
		model.ErrCodeInvalidState,
		model.ErrCodeBreakInProgress,
		model.ErrCodeNoOpenBreak,
		model.ErrCodeTypeImmutable,
		model.ErrCodeEmailTaken,
		model.ErrCodeCannotStart,
		model.ErrCodeCannotStop,
		model.ErrCodeInviteExpired,
		model.ErrCodeInviteUsed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
