package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/timecard/internal/middleware"
	"github.com/hitoshi/timecard/internal/model"
	"github.com/hitoshi/timecard/internal/worksession"
)

// --- モック定義 ---

// mockSessionService はSessionServiceInterfaceのモック実装。
type mockSessionService struct {
	startFn      func(ctx context.Context, userID, note, project string) (*model.WorkSession, error)
	stopFn       func(ctx context.Context, actor *model.User, sessionID string, endTime *time.Time) (*model.WorkSession, error)
	startBreakFn func(ctx context.Context, actor *model.User, sessionID string, breakType model.BreakType, note string) (*model.Break, error)
	endBreakFn   func(ctx context.Context, actor *model.User, sessionID string) (*model.Break, error)
	currentFn    func(ctx context.Context, userID string) (*worksession.SessionDetail, error)
	getFn        func(ctx context.Context, actor *model.User, sessionID string) (*worksession.SessionDetail, error)
	listFn       func(ctx context.Context, actor *model.User, targetUserID string, limit, offset int) ([]*model.WorkSession, error)
	historyFn    func(ctx context.Context, actor *model.User, sessionID string) ([]*model.WorkSessionEdit, error)
	editFn       func(ctx context.Context, actor *model.User, sessionID string, input worksession.EditInput) (*model.WorkSession, error)
	deleteFn     func(ctx context.Context, actor *model.User, sessionID string) error
}

func (m *mockSessionService) Start(ctx context.Context, userID, note, project string) (*model.WorkSession, error) {
	if m.startFn != nil {
		return m.startFn(ctx, userID, note, project)
	}
	return nil, nil
}
func (m *mockSessionService) Stop(ctx context.Context, actor *model.User, sessionID string, endTime *time.Time) (*model.WorkSession, error) {
	if m.stopFn != nil {
		return m.stopFn(ctx, actor, sessionID, endTime)
	}
	return nil, nil
}
func (m *mockSessionService) StartBreak(ctx context.Context, actor *model.User, sessionID string, breakType model.BreakType, note string) (*model.Break, error) {
	if m.startBreakFn != nil {
		return m.startBreakFn(ctx, actor, sessionID, breakType, note)
	}
	return nil, nil
}
func (m *mockSessionService) EndBreak(ctx context.Context, actor *model.User, sessionID string) (*model.Break, error) {
	if m.endBreakFn != nil {
		return m.endBreakFn(ctx, actor, sessionID)
	}
	return nil, nil
}
func (m *mockSessionService) Current(ctx context.Context, userID string) (*worksession.SessionDetail, error) {
	if m.currentFn != nil {
		return m.currentFn(ctx, userID)
	}
	return nil, nil
}
func (m *mockSessionService) Get(ctx context.Context, actor *model.User, sessionID string) (*worksession.SessionDetail, error) {
	if m.getFn != nil {
		return m.getFn(ctx, actor, sessionID)
	}
	return nil, nil
}
func (m *mockSessionService) List(ctx context.Context, actor *model.User, targetUserID string, limit, offset int) ([]*model.WorkSession, error) {
	if m.listFn != nil {
		return m.listFn(ctx, actor, targetUserID, limit, offset)
	}
	return nil, nil
}
func (m *mockSessionService) History(ctx context.Context, actor *model.User, sessionID string) ([]*model.WorkSessionEdit, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, actor, sessionID)
	}
	return nil, nil
}
func (m *mockSessionService) Edit(ctx context.Context, actor *model.User, sessionID string, input worksession.EditInput) (*model.WorkSession, error) {
	if m.editFn != nil {
		return m.editFn(ctx, actor, sessionID, input)
	}
	return nil, nil
}
func (m *mockSessionService) Delete(ctx context.Context, actor *model.User, sessionID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, actor, sessionID)
	}
	return nil
}

// --- テストヘルパー ---

// withUser はテスト用にリクエストコンテキストに認証済みユーザーを注入するヘルパー。
func withUser(r *http.Request, user *model.User) *http.Request {
	ctx := middleware.ContextWithUser(r.Context(), user)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func testActor() *model.User {
	return &model.User{ID: "user-123", CompanyID: "company-a", Role: model.RoleUser}
}

// --- POST /api/sessions/start テスト ---

func TestSessionHandler_Start_Success(t *testing.T) {
	svc := &mockSessionService{
		startFn: func(ctx context.Context, userID, note, project string) (*model.WorkSession, error) {
			if userID != "user-123" {
				t.Errorf("userID = %q, want user-123", userID)
			}
			if project != "backend" {
				t.Errorf("project = %q, want backend", project)
			}
			return &model.WorkSession{
				ID:        "session-1",
				UserID:    userID,
				StartTime: time.Now(),
				Status:    model.SessionStatusOngoing,
				Note:      note,
				Project:   project,
			}, nil
		},
	}

	h := NewSessionHandler(svc)

	body := `{"note": "morning shift", "project": "backend"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/start", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.Start(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != "session-1" {
		t.Errorf("id = %q, want session-1", got.ID)
	}
	if got.Status != string(model.SessionStatusOngoing) {
		t.Errorf("status = %q, want ONGOING", got.Status)
	}
}

func TestSessionHandler_Start_EmptyBody_Succeeds(t *testing.T) {
	svc := &mockSessionService{
		startFn: func(ctx context.Context, userID, note, project string) (*model.WorkSession, error) {
			return &model.WorkSession{ID: "session-1", UserID: userID, Status: model.SessionStatusOngoing}, nil
		},
	}

	h := NewSessionHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/start", nil)
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
}

func TestSessionHandler_Start_AlreadyActive_Returns409(t *testing.T) {
	svc := &mockSessionService{
		startFn: func(ctx context.Context, userID, note, project string) (*model.WorkSession, error) {
			return nil, model.NewAlreadyActiveError()
		},
	}

	h := NewSessionHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/start", nil)
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeAlreadyActive {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeAlreadyActive)
	}
}

func TestSessionHandler_Start_NoUser_Returns401(t *testing.T) {
	h := NewSessionHandler(&mockSessionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/start", nil)
	w := httptest.NewRecorder()

	h.Start(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- POST /api/sessions/{id}/stop テスト ---

func TestSessionHandler_Stop_Success(t *testing.T) {
	end := time.Now()
	total, brk, net := 8.5, 0.5, 8.0
	svc := &mockSessionService{
		stopFn: func(ctx context.Context, actor *model.User, sessionID string, endTime *time.Time) (*model.WorkSession, error) {
			if sessionID != "session-1" {
				t.Errorf("sessionID = %q, want session-1", sessionID)
			}
			if endTime != nil {
				t.Errorf("endTime = %v, want nil for empty body", endTime)
			}
			return &model.WorkSession{
				ID:            sessionID,
				UserID:        actor.ID,
				EndTime:       &end,
				Status:        model.SessionStatusCompleted,
				TotalDuration: &total,
				BreakDuration: &brk,
				NetDuration:   &net,
			}, nil
		},
	}

	h := NewSessionHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/session-1/stop", nil)
	req = withUser(req, testActor())
	req = withChiURLParam(req, "id", "session-1")
	w := httptest.NewRecorder()

	h.Stop(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Status != string(model.SessionStatusCompleted) {
		t.Errorf("status = %q, want COMPLETED", got.Status)
	}
	if got.NetDuration == nil || *got.NetDuration != 8.0 {
		t.Errorf("netDuration = %v, want 8.0", got.NetDuration)
	}
}

func TestSessionHandler_Stop_WithEndTimeOverride(t *testing.T) {
	override := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	svc := &mockSessionService{
		stopFn: func(ctx context.Context, actor *model.User, sessionID string, endTime *time.Time) (*model.WorkSession, error) {
			if endTime == nil || !endTime.Equal(override) {
				t.Errorf("endTime = %v, want %v", endTime, override)
			}
			return &model.WorkSession{ID: sessionID, UserID: actor.ID, EndTime: endTime, Status: model.SessionStatusCompleted}, nil
		},
	}

	h := NewSessionHandler(svc)

	body := `{"end_time": "2026-03-02T17:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/session-1/stop", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, testActor())
	req = withChiURLParam(req, "id", "session-1")
	w := httptest.NewRecorder()

	h.Stop(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestSessionHandler_Stop_AlreadyCompleted_Returns409(t *testing.T) {
	svc := &mockSessionService{
		stopFn: func(ctx context.Context, actor *model.User, sessionID string, endTime *time.Time) (*model.WorkSession, error) {
			return nil, model.NewAlreadyCompletedError()
		},
	}

	h := NewSessionHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/session-1/stop", nil)
	req = withUser(req, testActor())
	req = withChiURLParam(req, "id", "session-1")
	w := httptest.NewRecorder()

	h.Stop(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}
}

// --- GET /api/sessions/current テスト ---

func TestSessionHandler_Current_NoActiveSession_Returns204(t *testing.T) {
	h := NewSessionHandler(&mockSessionService{})

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/current", nil)
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.Current(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

func TestSessionHandler_Current_ReturnsDetail(t *testing.T) {
	svc := &mockSessionService{
		currentFn: func(ctx context.Context, userID string) (*worksession.SessionDetail, error) {
			return &worksession.SessionDetail{
				Session: &model.WorkSession{ID: "session-1", UserID: userID, Status: model.SessionStatusPaused},
				Breaks:  []*model.Break{{ID: "break-1", WorkSessionID: "session-1", Type: model.BreakTypeUnpaid}},
			}, nil
		},
	}

	h := NewSessionHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/current", nil)
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.Current(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got sessionDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Session.Status != string(model.SessionStatusPaused) {
		t.Errorf("status = %q, want PAUSED", got.Session.Status)
	}
	if len(got.Breaks) != 1 {
		t.Errorf("breaks = %d, want 1", len(got.Breaks))
	}
}

// --- GET /api/sessions/{id} テスト ---

func TestSessionHandler_Get_NotFound_Returns404(t *testing.T) {
	svc := &mockSessionService{
		getFn: func(ctx context.Context, actor *model.User, sessionID string) (*worksession.SessionDetail, error) {
			return nil, model.NewSessionNotFoundError(sessionID)
		},
	}

	h := NewSessionHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil)
	req = withUser(req, testActor())
	req = withChiURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

func TestSessionHandler_Get_CrossCompany_Returns403(t *testing.T) {
	svc := &mockSessionService{
		getFn: func(ctx context.Context, actor *model.User, sessionID string) (*worksession.SessionDetail, error) {
			return nil, model.NewForbiddenError()
		},
	}

	h := NewSessionHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/other", nil)
	req = withUser(req, testActor())
	req = withChiURLParam(req, "id", "other")
	w := httptest.NewRecorder()

	h.Get(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

// --- PATCH /api/sessions/{id} テスト ---

func TestSessionHandler_Edit_Success(t *testing.T) {
	svc := &mockSessionService{
		editFn: func(ctx context.Context, actor *model.User, sessionID string, input worksession.EditInput) (*model.WorkSession, error) {
			if input.Reason != "forgot to stop" {
				t.Errorf("reason = %q, want %q", input.Reason, "forgot to stop")
			}
			if input.EndTime == nil {
				t.Error("expected endTime to be set")
			}
			return &model.WorkSession{ID: sessionID, Status: model.SessionStatusCompleted}, nil
		},
	}

	h := NewSessionHandler(svc)

	body := `{"end_time": "2026-03-02T18:00:00Z", "reason": "forgot to stop"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/sessions/session-1", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, testActor())
	req = withChiURLParam(req, "id", "session-1")
	w := httptest.NewRecorder()

	h.Edit(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestSessionHandler_Edit_MissingReason_Returns400(t *testing.T) {
	svc := &mockSessionService{
		editFn: func(ctx context.Context, actor *model.User, sessionID string, input worksession.EditInput) (*model.WorkSession, error) {
			return nil, model.NewReasonRequiredError()
		},
	}

	h := NewSessionHandler(svc)

	body := `{"note": "edited"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/sessions/session-1", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req = withUser(req, testActor())
	req = withChiURLParam(req, "id", "session-1")
	w := httptest.NewRecorder()

	h.Edit(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}

	errResp := parseAPIErrorResponse(t, w)
	if errResp["code"] != model.ErrCodeReasonRequired {
		t.Errorf("code = %q, want %q", errResp["code"], model.ErrCodeReasonRequired)
	}
}

// --- DELETE /api/sessions/{id} テスト ---

func TestSessionHandler_Delete_Success(t *testing.T) {
	called := false
	svc := &mockSessionService{
		deleteFn: func(ctx context.Context, actor *model.User, sessionID string) error {
			called = true
			return nil
		},
	}

	h := NewSessionHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/session-1", nil)
	req = withUser(req, testActor())
	req = withChiURLParam(req, "id", "session-1")
	w := httptest.NewRecorder()

	h.Delete(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if !called {
		t.Error("expected Delete to be called")
	}
}

// --- GET /api/sessions テスト ---

func TestSessionHandler_List_DefaultsToSelf(t *testing.T) {
	svc := &mockSessionService{
		listFn: func(ctx context.Context, actor *model.User, targetUserID string, limit, offset int) ([]*model.WorkSession, error) {
			if targetUserID != actor.ID {
				t.Errorf("targetUserID = %q, want %q", targetUserID, actor.ID)
			}
			return []*model.WorkSession{{ID: "session-1"}, {ID: "session-2"}}, nil
		},
	}

	h := NewSessionHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req = withUser(req, testActor())
	w := httptest.NewRecorder()

	h.List(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got []sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("sessions = %d, want 2", len(got))
	}
}
